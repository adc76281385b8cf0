package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at perMinute/60 tokens
// per second, holding at most perMinute tokens.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	now       func() time.Time

	tokens     float64
	lastRefill time.Time

	consumed   int64
	waited     time.Duration
	last429    time.Time
	pauseUntil time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter that starts full.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute:  perMinute,
		now:        time.Now,
		tokens:     float64(perMinute),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := r.reserve()
		if delay == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			r.mu.Lock()
			r.waited += delay
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	return r.reserve() == 0
}

// reserve consumes a token and returns 0, or returns how long to wait.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Before(r.pauseUntil) {
		return r.pauseUntil.Sub(now)
	}
	r.refill(now)
	if r.tokens >= 1 {
		r.tokens--
		r.consumed++
		return 0
	}
	perSecond := float64(r.perMinute) / 60
	return time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
}

// Record429 drains the bucket and pauses callers for retryAfter.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.last429 = now
	if retryAfter > 0 {
		r.tokens = 0
		r.pauseUntil = now.Add(retryAfter)
	}
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(r.now())
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		Last429Time:     r.last429,
	}
}

// refill must be called with mu held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now
	if elapsed <= 0 {
		return
	}
	r.tokens += elapsed * float64(r.perMinute) / 60
	if limit := float64(r.perMinute); r.tokens > limit {
		r.tokens = limit
	}
}
