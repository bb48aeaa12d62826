package analyzer

import (
	"context"
	"time"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// RateLimiter spaces calls at least 60/rpm seconds apart. Only the time of
// the last grant is kept, idle time never turns into burst credit. Not safe
// for concurrent use, one pipeline owns one limiter.
type RateLimiter struct {
	interval  time.Duration
	lastGrant time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter with rpm <= 0 never waits.
func NewRateLimiter(rpm int) *RateLimiter {
	var interval time.Duration
	if rpm > 0 {
		interval = time.Minute / time.Duration(rpm)
	}
	return &RateLimiter{interval: interval, now: time.Now, sleep: SleepContext}
}

func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}

// Wait blocks until the interval since the last grant has passed, then
// records a new grant.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.interval > 0 && !r.lastGrant.IsZero() {
		if wait := r.interval - r.now().Sub(r.lastGrant); wait > 0 {
			Logger.Log.Infof("rate limiting: waiting %.2fs", wait.Seconds())
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	r.lastGrant = r.now()
	return nil
}
