package scrape

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate bounds the aggregate outbound request rate across all concurrently
// running units. Wait suspends the caller until it is admitted.
type Gate interface {
	Wait(ctx context.Context) error
}

type rateGate struct{ lim *rate.Limiter }

// NewRateGate returns a token-bucket gate admitting limit requests per window.
func NewRateGate(limit int, window time.Duration) Gate {
	if limit <= 0 {
		limit = 1
	}
	return &rateGate{lim: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit)}
}

func (g *rateGate) Wait(ctx context.Context) error { return g.lim.Wait(ctx) }
