package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestBaseJob_LockUnlock tests the atomic lock behavior.
func TestBaseJob_LockUnlock(t *testing.T) {
	b := NewBaseJob("test")

	if !b.Idle() {
		t.Fatal("fresh job should be idle")
	}
	if !b.TryLock() {
		t.Fatal("First TryLock should succeed")
	}
	if b.TryLock() {
		t.Error("Second TryLock should fail when already locked")
	}
	if b.Idle() {
		t.Error("locked job reported idle")
	}
	b.Unlock()
	if !b.TryLock() {
		t.Error("TryLock should succeed after Unlock")
	}
}

// TestBaseJob_Name tests the Name method.
func TestBaseJob_Name(t *testing.T) {
	tests := []struct {
		name     string
		jobName  string
		wantName string
	}{
		{"Simple name", "TestJob", "TestJob"},
		{"Empty name", "", ""},
		{"Unicode name", "作业", "作业"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBaseJob(tt.jobName)
			if got := b.Name(); got != tt.wantName {
				t.Errorf("Name() = %v, want %v", got, tt.wantName)
			}
		})
	}
}

// TestTimeJob_ShouldFire tests the time-based trigger logic.
func TestTimeJob_ShouldFire(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		wait      time.Duration
		wantFire  bool
	}{
		{"Below threshold - no fire", 100 * time.Millisecond, 0, false},
		{"Above threshold - fires", 10 * time.Millisecond, 20 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewTimeJob("test", tt.threshold, func(ctx context.Context) {})

			// First run always fires.
			if !job.ShouldFire() {
				t.Fatal("First run should always fire")
			}
			job.Run(context.Background())

			if tt.wait > 0 {
				time.Sleep(tt.wait)
			}

			if got := job.ShouldFire(); got != tt.wantFire {
				t.Errorf("ShouldFire() = %v, want %v", got, tt.wantFire)
			}
		})
	}
}

// TestTimeJob_Running tests that a job doesn't fire while running.
func TestTimeJob_Running(t *testing.T) {
	var wg sync.WaitGroup
	started := make(chan struct{})
	finish := make(chan struct{})

	job := NewTimeJob("test", 0, func(ctx context.Context) {
		close(started)
		<-finish
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run(context.Background())
	}()

	<-started

	if job.ShouldFire() {
		t.Error("ShouldFire should return false while job is running")
	}

	close(finish)
	wg.Wait()

	// Threshold 0, so the job is immediately ready again.
	if !job.ShouldFire() {
		t.Error("ShouldFire should return true after job finishes")
	}
}

// TestTimeJob_RunCounts verifies the action actually executes.
func TestTimeJob_RunCounts(t *testing.T) {
	var count int32
	job := NewTimeJob("test", 0, func(ctx context.Context) {
		atomic.AddInt32(&count, 1)
	})

	job.Run(context.Background())
	job.Run(context.Background())

	if got := atomic.LoadInt32(&count); got != 2 {
		t.Errorf("action ran %d times, want 2", got)
	}
}
