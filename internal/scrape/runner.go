package scrape

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/repository"
)

// Unit is one independent sync task for a (user, skapp) pair.
type Unit struct {
	UserPK string
	Skapp  string
	Run    func(ctx context.Context) (int64, error)
}

// Runner fans units out as concurrent tasks and waits for all of them to
// settle. A failing unit never cancels or affects its siblings; each failure
// is recorded as an event and the added-counts of the successful units are
// summed.
type Runner struct {
	events repository.EventRepository
	log    *zap.Logger
	now    func() time.Time
}

// NewRunner constructs a Runner.
func NewRunner(events repository.EventRepository, log *zap.Logger) *Runner {
	return &Runner{events: events, log: log, now: time.Now}
}

// Settle runs all units concurrently and returns the aggregate added-count.
func (r *Runner) Settle(ctx context.Context, errEvent model.EventType, logCtx string, units []Unit) int64 {
	type result struct {
		added int64
		err   error
	}
	results := make([]result, len(units))

	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u Unit) {
			defer wg.Done()
			added, err := u.Run(ctx)
			results[i] = result{added: added, err: err}
		}(i, u)
	}
	wg.Wait()

	var added int64
	for i, res := range results {
		if res.err == nil {
			added += res.added
			continue
		}
		TryLogEvent(ctx, r.events, r.log, model.Event{
			Type:      errEvent,
			Context:   logCtx,
			Error:     res.err.Error(),
			CreatedAt: r.now(),
		})
		r.log.Warn("unit failed",
			zap.String("context", logCtx),
			zap.String("userPK", units[i].UserPK),
			zap.String("skapp", units[i].Skapp),
			zap.Error(res.err),
		)
	}
	return added
}

// TryLogEvent inserts an event best-effort; a failing insert is only logged.
func TryLogEvent(ctx context.Context, events repository.EventRepository, log *zap.Logger, ev model.Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if err := events.Insert(ctx, ev); err != nil {
		log.Debug("event insert failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
