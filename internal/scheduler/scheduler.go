// Package scheduler runs the scrape jobs on fixed periods, one named mutex
// per job so overlapping runs of the same job are skipped, never queued.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/repository"
	"github.com/skynetlabs/content-scraper/internal/scrape"
)

// Job is one periodically executed iteration returning its added-count.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Scheduler owns one mutex per registered job and ticks each job on its own
// period. A tick that finds the previous iteration still running is dropped.
type Scheduler struct {
	log    *zap.Logger
	events repository.EventRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	jobs  []Job
}

// New constructs an empty scheduler.
func New(log *zap.Logger, events repository.EventRepository) *Scheduler {
	return &Scheduler{log: log, events: events, locks: make(map[string]*sync.Mutex)}
}

// Add registers a job and allocates its mutex.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.locks[job.Name] = &sync.Mutex{}
}

// TryAcquire attempts to take the named job's mutex without blocking.
func (s *Scheduler) TryAcquire(name string) bool {
	s.mu.Lock()
	l := s.locks[name]
	s.mu.Unlock()
	if l == nil {
		return false
	}
	return l.TryLock()
}

// Release releases the named job's mutex.
func (s *Scheduler) Release(name string) {
	s.mu.Lock()
	l := s.locks[name]
	s.mu.Unlock()
	if l != nil {
		l.Unlock()
	}
}

// Start launches one ticker goroutine per job and blocks until ctx is done.
// Every job also runs once immediately on start.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.RunOnce(ctx, job)

			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.RunOnce(ctx, job)
				}
			}
		}(job)
	}
	wg.Wait()
}

// RunOnce executes a single iteration of the job, guarded by its mutex. The
// mutex is always released, also when the iteration fails.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) {
	if !s.TryAcquire(job.Name) {
		s.log.Info("iteration still running, skipping tick", zap.String("job", job.Name))
		return
	}
	defer s.Release(job.Name)

	start := time.Now()
	s.log.Info("iteration started", zap.String("job", job.Name))

	added, err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error("iteration failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		scrape.TryLogEvent(ctx, s.events, s.log, model.Event{
			Type:    model.EventIterationFailure,
			Context: job.Name,
			Error:   err.Error(),
		})
		return
	}

	s.log.Info("iteration ended",
		zap.String("job", job.Name),
		zap.Duration("elapsed", elapsed),
		zap.Int64("added", added),
	)
	scrape.TryLogEvent(ctx, s.events, s.log, model.Event{
		Type:    model.EventIterationSuccess,
		Context: job.Name,
	})
}
