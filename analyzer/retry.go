package analyzer

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const (
	DefaultMaxRetries  = 10
	DefaultBaseBackoff = 30 * time.Second

	minJitter = 0.8
	maxJitter = 1.2
)

// QuotaRetryClassifier retries the inner classifier while it reports quota
// exhaustion. Attempt n waits BaseBackoff * 2^(n-1) scaled by a jitter in
// [0.8, 1.2]. Any other error is returned right away.
type QuotaRetryClassifier struct {
	Inner       Classifier
	MaxRetries  int
	BaseBackoff time.Duration

	// Overridable in tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

func NewQuotaRetryClassifier(inner Classifier, maxRetries int, baseBackoff time.Duration) *QuotaRetryClassifier {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseBackoff <= 0 {
		baseBackoff = DefaultBaseBackoff
	}
	return &QuotaRetryClassifier{
		Inner:       inner,
		MaxRetries:  maxRetries,
		BaseBackoff: baseBackoff,
		Sleep:       SleepContext,
		Jitter:      UniformJitter,
	}
}

// UniformJitter draws from [0.8, 1.2].
func UniformJitter() float64 {
	return minJitter + rand.Float64()*(maxJitter-minJitter)
}

func (c *QuotaRetryClassifier) Classify(ctx context.Context, systemPrompt string, content string) (string, error) {
	backoff := c.BaseBackoff
	for attempt := 1; ; attempt++ {
		raw, err := c.Inner.Classify(ctx, systemPrompt, content)
		if err == nil {
			return raw, nil
		}
		if !IsQuotaExceeded(err) {
			return "", err
		}
		if attempt >= c.MaxRetries {
			Logger.Log.Errorf("classification failed after %d attempts due to quota", attempt)
			return "", errors.Wrapf(ErrQuotaExhausted, "after %d attempts, last error: %v", attempt, err)
		}

		wait := time.Duration(float64(backoff) * c.Jitter())
		Logger.Log.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     c.MaxRetries,
		}).Warnf("quota exceeded, retrying in %.1fs", wait.Seconds())
		if err := c.Sleep(ctx, wait); err != nil {
			return "", errors.Wrap(err, "interrupted while backing off")
		}
		backoff *= 2
	}
}
