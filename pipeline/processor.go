package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Luismorlan/zsxqintel/collector"
	"github.com/Luismorlan/zsxqintel/deduplicator"
	"github.com/Luismorlan/zsxqintel/filter"
	"github.com/Luismorlan/zsxqintel/model"
	"github.com/Luismorlan/zsxqintel/store"
	"github.com/Luismorlan/zsxqintel/utils"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const logicLogPreview = 100

var ErrGroupUnresolved = errors.New("unable to resolve group id")

// Source is the community API as the pipeline sees it.
type Source interface {
	FetchAll(ctx context.Context, groupId string) *collector.FetchResult
	GetUserGroups(ctx context.Context) ([]collector.ZsxqGroup, error)
}

type PostAnalyzer interface {
	Analyze(ctx context.Context, content string) (*model.AnalysisResult, error)
}

type Limiter interface {
	Wait(ctx context.Context) error
}

type ReportDispatcher interface {
	NotifyInvestmentReport(ctx context.Context, post *model.Post, result *model.AnalysisResult) error
	NotifyError(ctx context.Context, kind, message, hint string) error
	NotifyInfo(ctx context.Context, title, text string) error
}

type Config struct {
	GroupId        string
	GroupUrl       string
	MaxPostsPerRun int
	AutoAnalyze    bool
}

// Processor runs fetch, save, filter, analyze, record and notify strictly in
// sequence. Only one post is ever in flight. A failure on one post is logged
// and the next post is processed.
type Processor struct {
	Source     Source
	Store      *store.PostStore
	Analyzer   PostAnalyzer
	Limiter    Limiter
	Dispatcher ReportDispatcher
	SeenCache  deduplicator.SeenCache
	Config     Config

	resolvedGroupId string
}

type AnalysisSummary struct {
	Unanalyzed int64
	Selected   int
	Skipped    int
	Analyzed   int
	Valuable   int
	Notified   int
	Failed     int
}

// CycleSummary describes one crawl cycle, it is what the scheduler publishes.
type CycleSummary struct {
	RunId             string
	GroupId           string
	StartedAt         time.Time
	FinishedAt        time.Time
	Fetched           int
	New               int
	FailedFetches     int
	CredentialExpired bool
	AnalysisRan       bool
	Analysis          AnalysisSummary
	// Set by the caller when RunCycle returned an error.
	Error string `json:",omitempty"`
}

type BackfillSummary struct {
	Fetched   int
	Inserted  int
	Updated   int
	Unchanged int
	Failed    int
}

// ResolveGroupId picks the group to monitor: the configured id, then the id in
// the configured url, then the first joined group. The result is kept for the
// lifetime of the processor.
func (p *Processor) ResolveGroupId(ctx context.Context) (string, error) {
	if p.resolvedGroupId != "" {
		return p.resolvedGroupId, nil
	}
	if p.Config.GroupId != "" {
		Logger.Log.Infof("using configured group_id: %s", p.Config.GroupId)
		p.resolvedGroupId = p.Config.GroupId
		return p.resolvedGroupId, nil
	}

	if p.Config.GroupUrl != "" {
		groupId, ok := collector.ExtractGroupIdFromUrl(p.Config.GroupUrl)
		if !ok {
			msg := fmt.Sprintf("无法从 URL 中提取 group_id: %s", p.Config.GroupUrl)
			p.Dispatcher.NotifyError(ctx, "配置错误", msg,
				"请检查 ZSXQ_GROUP_URL 格式是否正确\n支持格式:\n- https://wx.zsxq.com/dweb2/index/group/[ID]\n- https://wx.zsxq.com/group/[ID]")
			return "", errors.Wrap(ErrGroupUnresolved, msg)
		}
		Logger.Log.Infof("group_id %s extracted from url", groupId)
		p.resolvedGroupId = groupId
		return groupId, nil
	}

	Logger.Log.Info("no group configured, using the first joined group")
	groups, err := p.Source.GetUserGroups(ctx)
	if err != nil || len(groups) == 0 {
		msg := "无法获取星球列表，可能是 Cookie 失效或网络问题"
		p.Dispatcher.NotifyError(ctx, "API错误", msg,
			"请检查:\n1. ZSXQ_COOKIE 是否有效\n2. 网络连接是否正常\n3. 是否至少加入了一个星球")
		if err == nil {
			err = errors.New("no joined group")
		}
		return "", errors.Wrapf(ErrGroupUnresolved, "%s: %v", msg, err)
	}

	group := groups[0]
	groupId := collector.FormatId(group.GroupID)
	Logger.Log.Infof("selected first group: %s (ID: %s)", group.Name, groupId)
	p.Dispatcher.NotifyInfo(ctx, "ℹ️ 知识星球监控启动", fmt.Sprintf(
		"### 自动选择星球\n\n**星球名称:** %s\n**Group ID:** %s\n\n如需监控其他星球，请配置 ZSXQ_GROUP_ID 或 ZSXQ_GROUP_URL",
		group.Name, groupId))
	p.resolvedGroupId = groupId
	return groupId, nil
}

// isPostStored reports whether the store already has id. Only ids the seen
// cache knows are looked up, and a cache hit is still confirmed against the
// store since the cache may outlive the database it was filled from.
func (p *Processor) isPostStored(ctx context.Context, id string) (bool, error) {
	if p.SeenCache == nil {
		return false, nil
	}
	seen, err := p.SeenCache.Seen(ctx, id)
	if err != nil {
		Logger.Log.Warnf("seen cache lookup failed, falling back to store: %v", err)
		return false, nil
	}
	if !seen {
		return false, nil
	}
	exists, err := p.Store.Exists(id)
	if err != nil {
		return false, err
	}
	if !exists {
		Logger.Log.WithField("post_id", id).Warn("seen cache is stale, post is missing from store")
	}
	return exists, nil
}

func (p *Processor) markSeen(ctx context.Context, id string) {
	if p.SeenCache == nil {
		return
	}
	if err := p.SeenCache.MarkSeen(ctx, id); err != nil {
		Logger.Log.Warnf("fail to mark %s as seen: %v", id, err)
	}
}

// SaveNewPosts inserts the posts the store does not have yet and returns how
// many were new. Insert is idempotent, so a cache miss goes straight to it.
func (p *Processor) SaveNewPosts(ctx context.Context, posts []model.Post) int {
	newCount := 0
	for i := range posts {
		post := &posts[i]
		stored, err := p.isPostStored(ctx, post.Id)
		if err != nil {
			Logger.Log.WithField("post_id", post.Id).Errorf("fail to check post existence: %v", err)
			continue
		}
		if stored {
			continue
		}
		inserted, err := p.Store.Insert(post)
		if err != nil {
			Logger.Log.WithField("post_id", post.Id).Errorf("fail to save post: %v", err)
			continue
		}
		p.markSeen(ctx, post.Id)
		if inserted {
			newCount++
		}
	}
	return newCount
}

// RunCycle is one crawl cycle, followed by an analysis round when new posts
// arrived and auto analysis is on.
func (p *Processor) RunCycle(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{RunId: uuid.New().String(), StartedAt: time.Now()}
	log := Logger.Log.WithField("run_id", summary.RunId)

	groupId, err := p.ResolveGroupId(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		return summary, err
	}
	summary.GroupId = groupId

	log.Info("starting crawl cycle")
	result := p.Source.FetchAll(ctx, groupId)
	summary.Fetched = len(result.Posts)
	summary.FailedFetches = result.FailedCalls
	summary.CredentialExpired = result.CredentialExpired

	summary.New = p.SaveNewPosts(ctx, result.Posts)
	log.WithFields(logrus.Fields{
		"fetched": summary.Fetched,
		"new":     summary.New,
	}).Info("crawl complete")

	switch {
	case summary.New == 0:
		log.Info("no new posts to analyze")
	case !p.Config.AutoAnalyze:
		log.Info("auto analyze disabled, skipping analysis")
	default:
		summary.AnalysisRan = true
		analysis, err := p.RunAnalysis(ctx)
		if analysis != nil {
			summary.Analysis = *analysis
		}
		if err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}
	}
	summary.FinishedAt = time.Now()
	return summary, nil
}

// RunAnalysis analyzes up to MaxPostsPerRun unanalyzed posts, newest first.
// Only a cancelled context stops the round early.
func (p *Processor) RunAnalysis(ctx context.Context) (*AnalysisSummary, error) {
	summary := &AnalysisSummary{}
	total, err := p.Store.CountUnanalyzed()
	if err != nil {
		return summary, err
	}
	summary.Unanalyzed = total
	if total == 0 {
		Logger.Log.Info("no posts to analyze")
		return summary, nil
	}

	posts, err := p.Store.ListUnanalyzed(p.Config.MaxPostsPerRun)
	if err != nil {
		return summary, err
	}
	summary.Selected = len(posts)
	Logger.Log.Infof("analyzing %d posts (max: %d, unanalyzed: %d)", len(posts), p.Config.MaxPostsPerRun, total)

	for i := range posts {
		Logger.Log.Infof("[%d/%d] processing post %s", i+1, len(posts), posts[i].Id)
		if err := p.analyzeOne(ctx, &posts[i], summary); err != nil {
			return summary, err
		}
	}

	Logger.Log.WithFields(logrus.Fields{
		"analyzed":  summary.Analyzed,
		"skipped":   summary.Skipped,
		"valuable":  summary.Valuable,
		"failed":    summary.Failed,
		"remaining": total - int64(summary.Analyzed+summary.Skipped),
	}).Info("analysis complete")
	return summary, nil
}

// analyzeOne only returns an error when the context is done.
func (p *Processor) analyzeOne(ctx context.Context, post *model.Post, summary *AnalysisSummary) error {
	log := Logger.Log.WithFields(logrus.Fields{
		"post_id": post.Id,
		"section": post.SectionName,
		"author":  post.Author,
	})

	if err := filter.Validate(post); err != nil {
		log.Warnf("skipped invalid post: %v", err)
		if err := p.Store.RecordAnalysis(post.Id, model.SkipAnalysisResult()); err != nil {
			log.Errorf("fail to record skip: %v", err)
			summary.Failed++
			return nil
		}
		summary.Skipped++
		return nil
	}

	if err := p.Limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "analysis interrupted")
	}

	log.WithField("length", utils.RuneLen(post.Content)).Info("sending to analyzer")
	result, err := p.Analyzer.Analyze(ctx, post.Content)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "analysis interrupted")
		}
		log.Warnf("fail to analyze post: %v", err)
		summary.Failed++
		return nil
	}

	log.WithFields(logrus.Fields{
		"is_valuable": bool(result.IsValuable),
		"ticker":      result.Ticker,
		"suggestion":  result.Suggestion,
		"logic":       utils.TruncateRunes(result.Logic, logicLogPreview),
	}).Info("analysis successful")

	if err := p.Store.RecordAnalysis(post.Id, result); err != nil {
		log.Errorf("fail to record analysis: %v", err)
		summary.Failed++
		return nil
	}
	summary.Analyzed++

	if !result.IsValuable {
		return nil
	}
	summary.Valuable++
	if err := p.Dispatcher.NotifyInvestmentReport(ctx, post, result); err != nil {
		return nil
	}
	summary.Notified++
	return nil
}

// RunBackfill re-fetches every source and reconciles with the store: unseen
// posts are inserted, posts whose content changed (typically new replies) are
// overwritten and reset to unanalyzed.
func (p *Processor) RunBackfill(ctx context.Context) (*BackfillSummary, error) {
	summary := &BackfillSummary{}
	groupId, err := p.ResolveGroupId(ctx)
	if err != nil {
		return summary, err
	}

	result := p.Source.FetchAll(ctx, groupId)
	summary.Fetched = len(result.Posts)
	if summary.Fetched == 0 {
		Logger.Log.Warn("no data fetched, nothing to backfill")
		return summary, nil
	}

	for i := range result.Posts {
		post := &result.Posts[i]
		log := Logger.Log.WithField("post_id", post.Id)

		existing, err := p.Store.Get(post.Id)
		switch {
		case errors.Is(err, store.ErrPostNotFound):
			inserted, err := p.Store.Insert(post)
			if err != nil {
				log.Errorf("fail to save post: %v", err)
				summary.Failed++
				continue
			}
			p.markSeen(ctx, post.Id)
			if inserted {
				summary.Inserted++
			}
		case err != nil:
			log.Errorf("fail to load post: %v", err)
			summary.Failed++
		case existing.Content == post.Content:
			summary.Unchanged++
		default:
			updated, err := p.Store.UpdateContent(post.Id, post.Content)
			if err != nil {
				log.Errorf("fail to update post content: %v", err)
				summary.Failed++
				continue
			}
			if updated {
				log.Info("content changed, reset to unanalyzed")
				summary.Updated++
			}
		}
	}

	Logger.Log.WithFields(logrus.Fields{
		"fetched":   summary.Fetched,
		"inserted":  summary.Inserted,
		"updated":   summary.Updated,
		"unchanged": summary.Unchanged,
		"failed":    summary.Failed,
	}).Info("backfill complete")
	return summary, nil
}
