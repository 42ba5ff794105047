// Package ratelimit implements the global upstream call budget as a token
// bucket. Every upstream attempt consumes one token; tokens are never
// refunded for calls the upstream rejected, only for calls that never
// started.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cubelab/maple-proxy/pkg/apierr"
)

// Prometheus metrics for rate limit decisions.
var (
	rateLimitGrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maple_rate_limit_grants_total",
		Help: "Total number of upstream call tokens granted",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maple_rate_limit_blocks_total",
		Help: "Total number of requests blocked by the upstream call budget",
	})

	rateLimitTokensRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maple_rate_limit_tokens_remaining",
		Help: "Tokens remaining in the current rate limit window",
	})
)

// Limiter gates upstream calls. Acquire consumes one token or fails fast
// with a RateLimited error; Refund returns a token for a call that never
// reached the upstream.
type Limiter interface {
	Acquire(ctx context.Context) error
	Refund()
}

// Defaults for the upstream call budget.
const (
	DefaultCapacity = 500
	DefaultPeriod   = time.Minute
)

// Bucket is the process-wide token bucket. Grant instants are kept in a
// sliding log: a token is available while fewer than capacity grants fall
// inside the trailing period, so no rolling period ever observes more than
// capacity grants.
type Bucket struct {
	capacity int
	period   time.Duration

	mu     sync.Mutex
	grants []time.Time
	now    func() time.Time
}

// NewBucket creates a bucket with the given capacity per period.
// Non-positive values fall back to the defaults.
func NewBucket(capacity int, period time.Duration) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Bucket{
		capacity: capacity,
		period:   period,
		grants:   make([]time.Time, 0, capacity),
		now:      time.Now,
	}
}

// Acquire consumes one token. It fails fast: an exhausted budget yields a
// RateLimited error immediately, a done context yields its error.
func (b *Bucket) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ctxError(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.prune(now)
	if len(b.grants) >= b.capacity {
		rateLimitBlocksTotal.Inc()
		return apierr.New(apierr.KindRateLimited, "").WithDetail("upstream call budget exhausted")
	}

	b.grants = append(b.grants, now)
	rateLimitGrantsTotal.Inc()
	rateLimitTokensRemaining.Set(float64(b.capacity - len(b.grants)))
	return nil
}

// Wait blocks until a token is available or the context is done.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.now()
		b.prune(now)
		if len(b.grants) < b.capacity {
			b.grants = append(b.grants, now)
			rateLimitGrantsTotal.Inc()
			rateLimitTokensRemaining.Set(float64(b.capacity - len(b.grants)))
			b.mu.Unlock()
			return nil
		}
		// The next token frees up when the oldest grant leaves the
		// trailing period.
		wait := b.grants[0].Add(b.period).Sub(now)
		b.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctxError(ctx.Err())
		case <-time.After(wait):
		}
	}
}

// Refund forgets the most recent grant. Only callers whose upstream call
// never started may refund.
func (b *Bucket) Refund() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.grants); n > 0 {
		b.grants = b.grants[:n-1]
	}
	rateLimitTokensRemaining.Set(float64(b.capacity - len(b.grants)))
}

// Remaining reports the tokens left in the trailing period.
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(b.now())
	return b.capacity - len(b.grants)
}

// prune drops grants older than one period. Callers must hold b.mu.
func (b *Bucket) prune(now time.Time) {
	cutoff := now.Add(-b.period)
	i := 0
	for i < len(b.grants) && !b.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.grants = append(b.grants[:0], b.grants[i:]...)
	}
	rateLimitTokensRemaining.Set(float64(b.capacity - len(b.grants)))
}

func ctxError(err error) error {
	if err == context.DeadlineExceeded {
		return apierr.Wrap(apierr.KindTimeout, "", err)
	}
	return apierr.Wrap(apierr.KindUnknown, "request cancelled", err)
}
