package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job represents a scheduled job. The next run is armed only after the
// current one returns, so a job never overlaps itself.
type Job struct {
	Name       string
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
	Fn         func(ctx context.Context) error
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	jobs    []Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler whose runs are cancelled when parent is
// done or Stop is called
func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		jobs:   make([]Job, 0),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" || job.Fn == nil {
		return fmt.Errorf("cron: job needs a name and a function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("cron: job %s needs a positive interval", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cron: job %s added after start", job.Name)
	}
	s.jobs = append(s.jobs, job)
	slog.Info("Cron job registered", "name", job.Name, "interval", job.Interval, "run_on_start", job.RunOnStart)
	return nil
}

// Start begins running all scheduled jobs, each on its own goroutine
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}

	slog.Info("Cron scheduler started", "job_count", len(s.jobs))
}

// Stop cancels in-flight runs and waits for every job goroutine to exit
func (s *Scheduler) Stop() {
	slog.Info("Stopping cron scheduler...")
	s.cancel()
	s.wg.Wait()
	slog.Info("Cron scheduler stopped")
}

// runJob runs a single job on its schedule
func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		_ = s.executeJob(s.ctx, job)
	}

	timer := time.NewTimer(job.Interval)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			slog.Info("Cron job stopping", "name", job.Name)
			return
		case <-timer.C:
			_ = s.executeJob(s.ctx, job)
			timer.Reset(job.Interval)
		}
	}
}

// executeJob executes a job and logs results. A panic inside the job is
// reported as an error.
func (s *Scheduler) executeJob(ctx context.Context, job Job) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	runCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	start := time.Now()
	slog.Debug("Cron job starting", "name", job.Name, "run_id", runID)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			slog.Error("Cron job failed", "name", job.Name, "run_id", runID, "error", err, "duration", time.Since(start))
			return
		}
		slog.Debug("Cron job completed", "name", job.Name, "run_id", runID, "duration", time.Since(start))
	}()

	return job.Fn(runCtx)
}

// RunOnce runs all jobs once in registration order and returns the first error
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var firstErr error
	for _, job := range jobs {
		if err := s.executeJob(ctx, job); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", job.Name, err)
		}
	}
	return firstErr
}
