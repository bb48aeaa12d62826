package app_config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AppConfig customizes binary startup. Values come from defaults, then the
// optional yaml file, then environment variables of the same name.
type AppConfig struct {
	// Browser cookie of a logged in zsxq account.
	ZSXQ_COOKIE string `yaml:"ZSXQ_COOKIE"`
	// Group to monitor. When both are empty, the first joined group is used.
	ZSXQ_GROUP_ID          string `yaml:"ZSXQ_GROUP_ID"`
	ZSXQ_GROUP_URL         string `yaml:"ZSXQ_GROUP_URL"`
	ZSXQ_COUNT_PER_REQUEST int    `yaml:"ZSXQ_COUNT_PER_REQUEST"`
	ZSXQ_API_BASE          string `yaml:"ZSXQ_API_BASE"`

	// Postgres DSN. Empty means a local SQLite file at SQLITE_PATH.
	DATABASE_URL string `yaml:"DATABASE_URL"`
	SQLITE_PATH  string `yaml:"SQLITE_PATH"`

	// openai (any OpenAI compatible endpoint, DeepSeek by default) or gemini.
	AI_PROVIDER                 string `yaml:"AI_PROVIDER"`
	AI_API_KEY                  string `yaml:"AI_API_KEY"`
	AI_BASE_URL                 string `yaml:"AI_BASE_URL"`
	AI_MODEL                    string `yaml:"AI_MODEL"`
	GEMINI_API_KEY              string `yaml:"GEMINI_API_KEY"`
	GEMINI_MODEL                string `yaml:"GEMINI_MODEL"`
	GEMINI_API_ENDPOINT         string `yaml:"GEMINI_API_ENDPOINT"`
	GEMINI_MAX_RETRIES          int    `yaml:"GEMINI_MAX_RETRIES"`
	GEMINI_BASE_BACKOFF_SECONDS int    `yaml:"GEMINI_BASE_BACKOFF_SECONDS"`

	AI_REQUESTS_PER_MINUTE   int  `yaml:"AI_REQUESTS_PER_MINUTE"`
	MAX_POSTS_PER_RUN        int  `yaml:"MAX_POSTS_PER_RUN"`
	AUTO_ANALYZE_AFTER_CRAWL bool `yaml:"AUTO_ANALYZE_AFTER_CRAWL"`
	// Run a single cycle and exit instead of looping.
	RUN_ONCE bool `yaml:"RUN_ONCE"`
	// Go duration, e.g. 2h or 30m.
	SCHEDULE_INTERVAL string `yaml:"SCHEDULE_INTERVAL"`

	DINGTALK_WEBHOOK string `yaml:"DINGTALK_WEBHOOK"`
	DINGTALK_SECRET  string `yaml:"DINGTALK_SECRET"`
	SLACK_WEBHOOK    string `yaml:"SLACK_WEBHOOK"`

	// Seen-id cache. Without REDIS_HOST an in-memory cache is used.
	REDIS_HOST   string `yaml:"REDIS_HOST"`
	REDIS_PORT   string `yaml:"REDIS_PORT"`
	REDIS_PASSWD string `yaml:"REDIS_PASSWD"`

	// Raw API responses are archived to S3 when a bucket is set, otherwise to
	// ARCHIVE_DIR when set.
	ARCHIVE_DIR       string `yaml:"ARCHIVE_DIR"`
	ARCHIVE_S3_BUCKET string `yaml:"ARCHIVE_S3_BUCKET"`
	AWS_REGION        string `yaml:"AWS_REGION"`

	STATSD_ADDR        string `yaml:"STATSD_ADDR"`
	STATUS_SERVER_ADDR string `yaml:"STATUS_SERVER_ADDR"`
}

func Default() AppConfig {
	return AppConfig{
		ZSXQ_COUNT_PER_REQUEST:      20,
		ZSXQ_API_BASE:               "https://api.zsxq.com/v2",
		SQLITE_PATH:                 "zsxq_investment.db",
		AI_PROVIDER:                 ProviderOpenAI,
		AI_BASE_URL:                 "https://api.deepseek.com",
		AI_MODEL:                    "deepseek-chat",
		GEMINI_MODEL:                "gemini-2.0-flash",
		GEMINI_API_ENDPOINT:         "https://generativelanguage.googleapis.com",
		GEMINI_MAX_RETRIES:          10,
		GEMINI_BASE_BACKOFF_SECONDS: 30,
		AI_REQUESTS_PER_MINUTE:      10,
		MAX_POSTS_PER_RUN:           10,
		AUTO_ANALYZE_AFTER_CRAWL:    true,
		RUN_ONCE:                    false,
		SCHEDULE_INTERVAL:           "2h",
		REDIS_PORT:                  "6379",
		STATUS_SERVER_ADDR:          ":8080",
	}
}

// Load builds the config. path may be empty, in which case only defaults and
// the environment are used.
func Load(path string) (AppConfig, error) {
	c := Default()
	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrapf(err, "fail to read app config %s", path)
		}
		if err := yaml.Unmarshal(yamlFile, &c); err != nil {
			return c, errors.Wrapf(err, "fail to unmarshal app config %s", path)
		}
	}
	if err := c.applyEnv(); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// applyEnv overrides every field whose yaml key is set in the environment.
func (c *AppConfig) applyEnv() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("yaml")
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int:
			if strings.TrimSpace(raw) == "" {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return errors.Wrapf(err, "env %s is not an integer", key)
			}
			field.SetInt(int64(n))
		case reflect.Bool:
			if strings.TrimSpace(raw) == "" {
				continue
			}
			b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
			if err != nil {
				return errors.Wrapf(err, "env %s is not a boolean", key)
			}
			field.SetBool(b)
		}
	}
	return nil
}

func (c *AppConfig) Validate() error {
	switch c.AI_PROVIDER {
	case ProviderOpenAI, ProviderGemini:
	default:
		return errors.Errorf("unknown AI_PROVIDER %q, expect openai or gemini", c.AI_PROVIDER)
	}
	if c.MAX_POSTS_PER_RUN <= 0 {
		return errors.Errorf("MAX_POSTS_PER_RUN must be positive, got %d", c.MAX_POSTS_PER_RUN)
	}
	if c.AI_REQUESTS_PER_MINUTE < 0 {
		return errors.Errorf("AI_REQUESTS_PER_MINUTE must not be negative, got %d", c.AI_REQUESTS_PER_MINUTE)
	}
	if _, err := c.ScheduleInterval(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) ScheduleInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.SCHEDULE_INTERVAL)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid SCHEDULE_INTERVAL %q", c.SCHEDULE_INTERVAL)
	}
	if d <= 0 {
		return 0, errors.Errorf("SCHEDULE_INTERVAL must be positive, got %s", d)
	}
	return d, nil
}

func (c *AppConfig) GeminiBaseBackoff() time.Duration {
	return time.Duration(c.GEMINI_BASE_BACKOFF_SECONDS) * time.Second
}

// UseRedis reports whether the seen-id cache should live in redis.
func (c *AppConfig) UseRedis() bool {
	return c.REDIS_HOST != ""
}
