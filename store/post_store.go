package store

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Luismorlan/zsxqintel/model"
)

var ErrPostNotFound = errors.New("post not found")

// PostStore persists posts and their analysis outcome keyed by post id.
// The underlying gorm.DB is a pool, every method is safe for concurrent use.
type PostStore struct {
	DB *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{DB: db}
}

func (s *PostStore) Exists(id string) (bool, error) {
	var count int64
	if err := s.DB.Model(&model.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "fail to check existence of post %s", id)
	}
	return count > 0, nil
}

// Insert stores a new post as unanalyzed. Returns false without error when a
// post with the same id is already stored, the existing row is left untouched.
func (s *PostStore) Insert(post *model.Post) (bool, error) {
	row := *post
	row.IsAnalyzed = model.Unanalyzed
	row.Ticker, row.Suggestion, row.Logic, row.AiSummary = "", "", "", ""

	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "fail to insert post %s", post.Id)
	}
	return res.RowsAffected > 0, nil
}

func (s *PostStore) Get(id string) (*model.Post, error) {
	var post model.Post
	err := s.DB.Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to get post %s", id)
	}
	return &post, nil
}

// ListUnanalyzed returns up to limit unanalyzed posts, newest create_time
// first. Ties are broken by id so the order is stable across calls.
func (s *PostStore) ListUnanalyzed(limit int) ([]model.Post, error) {
	var posts []model.Post
	query := s.DB.Where("is_analyzed = ?", model.Unanalyzed).
		Order("create_time DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "fail to list unanalyzed posts")
	}
	return posts, nil
}

func (s *PostStore) CountUnanalyzed() (int64, error) {
	var count int64
	err := s.DB.Model(&model.Post{}).Where("is_analyzed = ?", model.Unanalyzed).Count(&count).Error
	return count, errors.Wrap(err, "fail to count unanalyzed posts")
}

func (s *PostStore) CountAll() (int64, error) {
	var count int64
	err := s.DB.Model(&model.Post{}).Count(&count).Error
	return count, errors.Wrap(err, "fail to count posts")
}

// RecordAnalysis writes the analysis fields and flips the post to analyzed in
// one transaction. Empty fields are stored as the none sentinel.
func (s *PostStore) RecordAnalysis(id string, result *model.AnalysisResult) error {
	filled := *result
	filled.ApplyDefaults()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Post{}).Where("id = ?", id).Updates(map[string]interface{}{
			"ticker":      filled.Ticker,
			"suggestion":  filled.Suggestion,
			"logic":       filled.Logic,
			"ai_summary":  filled.AiSummary,
			"is_analyzed": model.Analyzed,
		})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "fail to record analysis for post %s", id)
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
}

// UpdateContent replaces the stored content and resets the post to
// unanalyzed so it is picked up by the next analysis round. Returns false
// when no post has the id.
func (s *PostStore) UpdateContent(id string, content string) (bool, error) {
	res := s.DB.Model(&model.Post{}).Where("id = ?", id).Updates(map[string]interface{}{
		"content":     content,
		"is_analyzed": model.Unanalyzed,
	})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "fail to update content of post %s", id)
	}
	return res.RowsAffected > 0, nil
}
