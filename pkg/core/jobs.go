package core

import (
	"context"
	"sync/atomic"
	"time"
)

// Job defines a scheduled task.
type Job interface {
	Name() string
	ShouldFire() bool
	Run(ctx context.Context)
}

// BaseJob carries the name and re-entry guard shared by all jobs. The
// scheduler calls ShouldFire on its tick loop while a previous Run may
// still be going on another goroutine, so all shared state is atomic.
type BaseJob struct {
	name    string
	running int32 // 1 while a run is in flight
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock marks the job running. False means a previous run is still going.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// Idle reports whether no run is in flight.
func (b *BaseJob) Idle() bool {
	return atomic.LoadInt32(&b.running) == 0
}

// TimeJob fires when the time since the last run start exceeds the
// threshold. A job that has never run fires immediately.
type TimeJob struct {
	BaseJob
	lastRun   int64 // unix nanos of the last run start, 0 before any
	threshold time.Duration
	action    func(context.Context)
}

func NewTimeJob(name string, threshold time.Duration, action func(context.Context)) *TimeJob {
	return &TimeJob{
		BaseJob:   NewBaseJob(name),
		threshold: threshold,
		action:    action,
	}
}

func (j *TimeJob) ShouldFire() bool {
	if !j.Idle() {
		return false
	}
	last := atomic.LoadInt64(&j.lastRun)
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) >= j.threshold
}

func (j *TimeJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	atomic.StoreInt64(&j.lastRun, time.Now().UnixNano())
	j.action(ctx)
}
