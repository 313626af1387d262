package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"ganaudit/internal/logging"
	"ganaudit/internal/types"
)

// Breaker wraps a Judge with a circuit breaker so a flapping judge trips to
// fast failure instead of holding queue slots until their deadlines.
type Breaker struct {
	inner Judge
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps judge. The breaker opens after ratio of failures exceeds
// 60% across at least 5 calls, and half-opens after 30 seconds.
func NewBreaker(inner Judge) *Breaker {
	settings := gobreaker.Settings{
		Name:        "judge:" + inner.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Get(logging.CategoryJudge).Warn("breaker %s: %s -> %s", name, from, to)
		},
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs the inner judge through the breaker. An open circuit returns
// ErrJudgeUnavailable immediately.
func (b *Breaker) Execute(ctx context.Context, req Request) (*RawReview, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Execute(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open for %s", types.ErrJudgeUnavailable, b.inner.Name())
		}
		return nil, err
	}
	return out.(*RawReview), nil
}

// Name returns the inner judge's name.
func (b *Breaker) Name() string { return b.inner.Name() }
