package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var quotaErr = &APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}

type recordedSleeps struct {
	durations []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.durations = append(r.durations, d)
	return nil
}

func newRetryClassifier(inner Classifier, sleeps *recordedSleeps, jitter float64) *QuotaRetryClassifier {
	c := NewQuotaRetryClassifier(inner, DefaultMaxRetries, DefaultBaseBackoff)
	c.Sleep = sleeps.sleep
	c.Jitter = func() float64 { return jitter }
	return c
}

func TestQuotaRetryBackoffBounds(t *testing.T) {
	ctx := context.Background()
	for _, jitter := range []float64{0.8, 1.0, 1.2} {
		inner := &MockClassifier{}
		inner.On("Classify", ctx, "p", "c").Return("", quotaErr).Times(3)
		inner.On("Classify", ctx, "p", "c").Return(`{"is_valuable": true}`, nil).Once()

		sleeps := &recordedSleeps{}
		raw, err := newRetryClassifier(inner, sleeps, jitter).Classify(ctx, "p", "c")
		require.NoError(t, err)
		assert.Equal(t, `{"is_valuable": true}`, raw)

		require.Len(t, sleeps.durations, 3)
		for n, d := range sleeps.durations {
			base := 30 * time.Second * time.Duration(1<<n)
			assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.8))
			assert.LessOrEqual(t, d, time.Duration(float64(base)*1.2))
		}
	}
}

func TestQuotaRetryWithRealJitter(t *testing.T) {
	ctx := context.Background()
	inner := &MockClassifier{}
	inner.On("Classify", ctx, "p", "c").Return("", quotaErr).Times(3)
	inner.On("Classify", ctx, "p", "c").Return(`{}`, nil).Once()

	sleeps := &recordedSleeps{}
	c := NewQuotaRetryClassifier(inner, 10, 30*time.Second)
	c.Sleep = sleeps.sleep
	_, err := c.Classify(ctx, "p", "c")
	require.NoError(t, err)

	require.Len(t, sleeps.durations, 3)
	for n, d := range sleeps.durations {
		base := float64(30*time.Second) * float64(int(1)<<n)
		assert.GreaterOrEqual(t, float64(d), base*0.8)
		assert.LessOrEqual(t, float64(d), base*1.2)
	}
}

func TestQuotaRetryTerminates(t *testing.T) {
	ctx := context.Background()
	inner := &MockClassifier{}
	inner.On("Classify", ctx, "p", "c").Return("", quotaErr)

	sleeps := &recordedSleeps{}
	_, err := newRetryClassifier(inner, sleeps, 1.0).Classify(ctx, "p", "c")
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	inner.AssertNumberOfCalls(t, "Classify", DefaultMaxRetries)
	assert.Len(t, sleeps.durations, DefaultMaxRetries-1)

	t.Run("analyze reports absent", func(t *testing.T) {
		inner := &MockClassifier{}
		inner.On("Classify", ctx, SystemPrompt, "c").Return("", quotaErr)
		res, err := NewAnalyzer(newRetryClassifier(inner, &recordedSleeps{}, 1.0)).Analyze(ctx, "c")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrQuotaExhausted)
	})
}

func TestQuotaRetryDoesNotRetryOtherErrors(t *testing.T) {
	ctx := context.Background()
	inner := &MockClassifier{}
	inner.On("Classify", ctx, "p", "c").Return("", &APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "bad"}).Once()

	sleeps := &recordedSleeps{}
	_, err := newRetryClassifier(inner, sleeps, 1.0).Classify(ctx, "p", "c")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
	assert.Empty(t, sleeps.durations)
	inner.AssertNumberOfCalls(t, "Classify", 1)
}

func TestQuotaRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &MockClassifier{}
	inner.On("Classify", mock.Anything, "p", "c").Return("", quotaErr)
	c := NewQuotaRetryClassifier(inner, 10, time.Hour)
	_, err := c.Classify(ctx, "p", "c")
	assert.True(t, errors.Is(err, context.Canceled))
	inner.AssertNumberOfCalls(t, "Classify", 1)
}

func TestUniformJitter(t *testing.T) {
	for i := 0; i < 1000; i++ {
		j := UniformJitter()
		assert.GreaterOrEqual(t, j, 0.8)
		assert.LessOrEqual(t, j, 1.2)
	}
}
