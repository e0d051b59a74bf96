// Package scheduler runs the stale discussion space sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/common/logger"
	cleanupspaces "membership-workflow/internal/workers/operator/cleanup-spaces"

	"github.com/robfig/cron/v3"
)

// Sweeper deletes stale spaces. Zero maxAgeDays selects the configured age.
type Sweeper interface {
	Sweep(ctx context.Context, maxAgeDays int) (*cleanupspaces.Output, error)
}

type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	sweeper Sweeper
	timeout time.Duration
	logger  logger.Logger

	mu      sync.Mutex
	running bool
}

type Option func(*Scheduler)

// WithTimeout bounds a single sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func New(cfg config.CleanupConfig, sweeper Sweeper, log logger.Logger, opts ...Option) (*Scheduler, error) {
	spec := cfg.Schedule
	if spec == "" {
		spec = "@daily"
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		timeout: 2 * time.Minute,
		logger:  log.WithFields(map[string]interface{}{"component": "scheduler", "schedule": spec}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.entry = s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.logger.Info("cleanup scheduler started", map[string]interface{}{
		"next": s.cron.Entry(s.entry).Next,
	})
	s.cron.Start()
}

// Stop halts the schedule and waits for a sweep in flight, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce sweeps now. Overlapping runs are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (*cleanupspaces.Output, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("cleanup already running, skipping", nil)
		return nil, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	out, err := s.sweeper.Sweep(ctx, 0)
	if err != nil {
		s.logger.Error("scheduled cleanup failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	s.logger.Info("scheduled cleanup finished", map[string]interface{}{
		"deleted": out.Deleted,
		"failed":  out.Failed,
		"skipped": out.Skipped,
	})
	return out, nil
}
