// Package core runs the background heartbeat: a single ticker evaluates
// registered jobs and fires the ready ones. Jobs guard themselves against
// re-entry, so a slow run never stacks.
package core

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler manages the central heartbeat and scheduled jobs.
type Scheduler struct {
	interval time.Duration
	jobs     []Job
}

// NewScheduler creates a scheduler ticking at the given interval.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		interval: interval,
		jobs:     []Job{},
	}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", s.interval, "jobs", len(s.jobs))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, job := range s.jobs {
		if job.ShouldFire() {
			// Fire and forget; the job's own lock prevents overlap.
			go job.Run(ctx)
		}
	}
}
