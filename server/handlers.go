package server

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/Luismorlan/zsxqintel/model"
	"github.com/Luismorlan/zsxqintel/pipeline"
	"github.com/Luismorlan/zsxqintel/server/middlewares"
	"github.com/Luismorlan/zsxqintel/store"
	"github.com/Luismorlan/zsxqintel/utils"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	previewRunes     = 200
)

// CycleStatusProvider exposes the most recent pipeline cycle, nil when no
// cycle has finished in this process.
type CycleStatusProvider interface {
	LastCycle() *pipeline.CycleSummary
}

// PostView is the JSON shape of a stored post.
type PostView struct {
	Id          string `json:"id"`
	Author      string `json:"author"`
	CreateTime  string `json:"create_time"`
	Url         string `json:"url"`
	SectionName string `json:"section_name"`
	Content     string `json:"content"`
	IsAnalyzed  bool   `json:"is_analyzed" copier:"-"`
	Ticker      string `json:"ticker,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
	Logic       string `json:"logic,omitempty"`
	AiSummary   string `json:"ai_summary,omitempty"`
}

func NewPostView(post *model.Post, preview bool) (*PostView, error) {
	view := &PostView{}
	if err := copier.Copy(view, post); err != nil {
		return nil, errors.Wrapf(err, "fail to build view of post %s", post.Id)
	}
	view.IsAnalyzed = post.IsAnalyzed == model.Analyzed
	if preview {
		view.Content = utils.TruncateRunes(view.Content, previewRunes)
	}
	return view, nil
}

type StatsResponse struct {
	Store      string                 `json:"store"`
	Total      int64                  `json:"total"`
	Unanalyzed int64                  `json:"unanalyzed"`
	Analyzed   int64                  `json:"analyzed"`
	LastCycle  *pipeline.CycleSummary `json:"last_cycle,omitempty"`
}

type Handler struct {
	Store  *store.PostStore
	Cycles CycleStatusProvider
}

// NewRouter registers every status route on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger())
	router.Use(cors.Default())

	api := router.Group("/api")
	api.GET("/healthcheck", h.Healthcheck)
	api.GET("/posts/stats", h.Stats)
	api.GET("/posts/unanalyzed", h.ListUnanalyzed)
	api.GET("/posts/:id", h.GetPost)
	return router
}

func (h *Handler) Healthcheck(c *gin.Context) {
	sqlDB, err := h.Store.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Stats(c *gin.Context) {
	total, err := h.Store.CountAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	unanalyzed, err := h.Store.CountUnanalyzed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := StatsResponse{
		Store:      "sqlite",
		Total:      total,
		Unanalyzed: unanalyzed,
		Analyzed:   total - unanalyzed,
	}
	if utils.IsPostgres(h.Store.DB) {
		resp.Store = "postgres"
	}
	if h.Cycles != nil {
		resp.LastCycle = h.Cycles.LastCycle()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListUnanalyzed(c *gin.Context) {
	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	posts, err := h.Store.ListUnanalyzed(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]*PostView, 0, len(posts))
	for i := range posts {
		view, err := NewPostView(&posts[i], true)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.Store.Get(c.Param("id"))
	if errors.Is(err, store.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	view, err := NewPostView(post, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}
