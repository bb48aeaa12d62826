package pipeline

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Luismorlan/zsxqintel/analyzer"
	"github.com/Luismorlan/zsxqintel/app_config"
	"github.com/Luismorlan/zsxqintel/collector"
	"github.com/Luismorlan/zsxqintel/collector/file_store"
	"github.com/Luismorlan/zsxqintel/deduplicator"
	"github.com/Luismorlan/zsxqintel/notifier"
	"github.com/Luismorlan/zsxqintel/store"
	"github.com/Luismorlan/zsxqintel/utils"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// Components holds everything a binary needs. Close releases the database
// and redis connections.
type Components struct {
	DB         *gorm.DB
	Store      *store.PostStore
	Client     *collector.ZsxqClient
	Dispatcher *notifier.Dispatcher
	Processor  *Processor

	redis   *redis.Client
	archive file_store.CollectedFileStore
}

func (c *Components) Close() {
	if c.archive != nil {
		c.archive.CleanUp()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			Logger.Log.Warnf("fail to close redis: %v", err)
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// OpenStore connects and migrates the database only, for binaries that do not
// talk to the community API.
func OpenStore(cfg app_config.AppConfig) (*gorm.DB, *store.PostStore, error) {
	db, err := utils.GetDBConnection(cfg.DATABASE_URL, cfg.SQLITE_PATH)
	if err != nil {
		return nil, nil, err
	}
	if err := utils.DatabaseSetupAndMigration(db); err != nil {
		return nil, nil, err
	}
	return db, store.NewPostStore(db), nil
}

// NewClassifier returns the classifier for the configured provider. Gemini
// is wrapped with quota retry.
func NewClassifier(cfg app_config.AppConfig) (analyzer.Classifier, error) {
	switch cfg.AI_PROVIDER {
	case app_config.ProviderOpenAI:
		if cfg.AI_API_KEY == "" {
			return nil, errors.New("AI_API_KEY is required for the openai provider")
		}
		return analyzer.NewOpenAIClassifier(cfg.AI_API_KEY, cfg.AI_BASE_URL, cfg.AI_MODEL), nil
	case app_config.ProviderGemini:
		if cfg.GEMINI_API_KEY == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		gemini := analyzer.NewGeminiClassifier(cfg.GEMINI_API_KEY, cfg.GEMINI_MODEL, cfg.GEMINI_API_ENDPOINT)
		return analyzer.NewQuotaRetryClassifier(gemini, cfg.GEMINI_MAX_RETRIES, cfg.GeminiBaseBackoff()), nil
	}
	return nil, errors.Wrap(analyzer.ErrUnsupportedBackend, cfg.AI_PROVIDER)
}

func newArchive(cfg app_config.AppConfig) (file_store.CollectedFileStore, error) {
	switch {
	case cfg.ARCHIVE_S3_BUCKET != "":
		s, err := file_store.NewS3FileStore(cfg.ARCHIVE_S3_BUCKET, cfg.AWS_REGION)
		if err != nil {
			return nil, err
		}
		s.SetCustomizeFileNameFunc(file_store.RawPayloadFileName)
		return s, nil
	case cfg.ARCHIVE_DIR != "":
		s, err := file_store.NewLocalFileStore(cfg.ARCHIVE_DIR)
		if err != nil {
			return nil, err
		}
		s.SetCustomizeFileNameFunc(file_store.RawPayloadFileName)
		return s, nil
	}
	return nil, nil
}

// newSeenCache prefers redis and falls back to memory when redis is not
// configured or unreachable. The store stays the source of truth either way.
func newSeenCache(ctx context.Context, cfg app_config.AppConfig) (deduplicator.SeenCache, *redis.Client) {
	if !cfg.UseRedis() {
		return deduplicator.NewMemorySeenCache(), nil
	}
	client, err := utils.GetRedisClient(ctx, cfg.REDIS_HOST, cfg.REDIS_PORT, cfg.REDIS_PASSWD)
	if err != nil {
		Logger.Log.Warnf("redis unavailable, using in-memory seen cache: %v", err)
		return deduplicator.NewMemorySeenCache(), nil
	}
	return deduplicator.NewRedisSeenCache(client, deduplicator.DefaultRedisSeenKey), client
}

// BuildOptions selects the optional halves of a processor. Crawl-only and
// backfill runs skip the AI backend, analysis-only runs skip the community
// API and do not need a cookie.
type BuildOptions struct {
	Source   bool
	Analyzer bool
}

// BuildComponents wires a processor from config.
func BuildComponents(ctx context.Context, cfg app_config.AppConfig, opts BuildOptions) (*Components, error) {
	if opts.Source && cfg.ZSXQ_COOKIE == "" {
		return nil, errors.New("ZSXQ_COOKIE is required")
	}

	c := &Components{}
	var err error
	c.DB, c.Store, err = OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	c.Dispatcher = notifier.NewDispatcher(
		notifier.NewNotifier(cfg.DINGTALK_WEBHOOK, cfg.DINGTALK_SECRET, cfg.SLACK_WEBHOOK))

	var seen deduplicator.SeenCache
	seen, c.redis = newSeenCache(ctx, cfg)

	c.Processor = &Processor{
		Store:      c.Store,
		Dispatcher: c.Dispatcher,
		SeenCache:  seen,
		Limiter:    analyzer.NewRateLimiter(cfg.AI_REQUESTS_PER_MINUTE),
		Config: Config{
			GroupId:        cfg.ZSXQ_GROUP_ID,
			GroupUrl:       cfg.ZSXQ_GROUP_URL,
			MaxPostsPerRun: cfg.MAX_POSTS_PER_RUN,
			AutoAnalyze:    cfg.AUTO_ANALYZE_AFTER_CRAWL && opts.Analyzer,
		},
	}

	if opts.Source {
		c.archive, err = newArchive(cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		clientOpts := []collector.ZsxqClientOption{
			collector.WithApiBase(cfg.ZSXQ_API_BASE),
			collector.WithCountPerRequest(cfg.ZSXQ_COUNT_PER_REQUEST),
			collector.WithCredentialAlerter(c.Dispatcher),
		}
		if c.archive != nil {
			clientOpts = append(clientOpts, collector.WithRawArchive(c.archive))
		}
		c.Client = collector.NewZsxqClient(cfg.ZSXQ_COOKIE, clientOpts...)
		c.Processor.Source = c.Client
	}

	if opts.Analyzer {
		classifier, err := NewClassifier(cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Processor.Analyzer = analyzer.NewAnalyzer(classifier)
	}
	return c, nil
}
