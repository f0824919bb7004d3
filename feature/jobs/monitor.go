package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booksync/core/errs"
	"booksync/core/events"
)

// Rollback undoes the partial work of a cancelled job. It runs at most
// once, after the job's context is cancelled.
type Rollback func(ctx context.Context) error

// defaultRetention keeps finished jobs queryable for an hour.
const defaultRetention = time.Hour

// tracked is the monitor-internal job record.
type tracked struct {
	job      Job
	cancel   context.CancelFunc
	rollback Rollback
}

// Monitor tracks the lifecycle of sync and validation jobs: creation,
// progress, cooperative cancellation with rollback, retry of failed
// runs, and retention-based cleanup of finished jobs.
type Monitor struct {
	mu        sync.RWMutex
	jobs      map[string]*tracked
	retention time.Duration
	bus       *events.Bus
	logger    *zap.Logger
	now       func() time.Time
}

func NewMonitor(retention time.Duration, bus *events.Bus, logger *zap.Logger) *Monitor {
	if retention <= 0 {
		retention = defaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		jobs:      map[string]*tracked{},
		retention: retention,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers a new pending job and returns its snapshot.
func (m *Monitor) Create(jobType string) Job {
	job := Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		State:     StatePending,
		Attempt:   1,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = &tracked{job: job}
	m.mu.Unlock()

	m.publish(job)
	m.logger.Info("job created", zap.String("job_id", job.ID), zap.String("type", jobType))
	return job
}

// Start moves a pending job to running and returns a context the job's
// work must watch: Cancel cancels it. The rollback, if any, runs when
// the job is cancelled mid-flight.
func (m *Monitor) Start(ctx context.Context, id string, rollback Rollback) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.jobs[id]
	if !ok {
		return nil, errs.Input(errs.CodeOperation, "job %s not found", id)
	}
	if !canTransition(tr.job.State, StateRunning) {
		return nil, errs.Input(errs.CodeOperation, "job %s cannot start from state %s", id, tr.job.State)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	tr.job.State = StateRunning
	tr.job.StartedAt = m.now()
	tr.cancel = cancel
	tr.rollback = rollback

	m.publish(tr.job)
	return jobCtx, nil
}

// Progress updates the completion percentage of a running job.
func (m *Monitor) Progress(id string, percent int, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.jobs[id]
	if !ok {
		return errs.Input(errs.CodeOperation, "job %s not found", id)
	}
	if tr.job.State != StateRunning {
		return errs.Input(errs.CodeOperation, "job %s is not running", id)
	}
	tr.job.Progress = percent
	tr.job.Message = message
	return nil
}

// Complete marks a running job as successfully finished.
func (m *Monitor) Complete(id string) error {
	return m.finish(id, StateCompleted, nil)
}

// Fail marks a running job as failed and classifies whether a retry
// could succeed from the error's kind.
func (m *Monitor) Fail(id string, cause error) error {
	return m.finish(id, StateFailed, cause)
}

func (m *Monitor) finish(id string, state State, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.jobs[id]
	if !ok {
		return errs.Input(errs.CodeOperation, "job %s not found", id)
	}
	if !canTransition(tr.job.State, state) {
		return errs.Input(errs.CodeOperation, "job %s cannot move from %s to %s", id, tr.job.State, state)
	}

	tr.job.State = state
	tr.job.EndedAt = m.now()
	if state == StateCompleted {
		tr.job.Progress = 100
	}
	if cause != nil {
		tr.job.Error = cause.Error()
		tr.job.ErrorCode = errs.CodeOf(cause)
		tr.job.Retryable = errs.IsRetryable(cause)
	}
	tr.cancel = nil
	tr.rollback = nil

	m.publish(tr.job)
	m.logger.Info("job finished",
		zap.String("job_id", id),
		zap.String("state", string(state)),
		zap.Error(cause))
	return nil
}

// Cancel stops a pending or running job. Running jobs get their context
// cancelled first, then the registered rollback runs so partial work is
// undone before the job is marked cancelled.
func (m *Monitor) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	tr, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return errs.Input(errs.CodeOperation, "job %s not found", id)
	}
	if !canTransition(tr.job.State, StateCancelled) {
		state := tr.job.State
		m.mu.Unlock()
		return errs.Input(errs.CodeOperation, "job %s cannot be cancelled from state %s", id, state)
	}

	cancel := tr.cancel
	rollback := tr.rollback
	tr.job.State = StateCancelled
	tr.job.EndedAt = m.now()
	tr.cancel = nil
	tr.rollback = nil
	job := tr.job
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if rollback != nil {
		if err := rollback(ctx); err != nil {
			m.logger.Warn("job rollback failed", zap.String("job_id", id), zap.Error(err))
		}
	}

	m.publish(job)
	m.logger.Info("job cancelled", zap.String("job_id", id))
	return nil
}

// Retry creates a fresh pending job for a failed, retryable one. The
// new job carries the original's type and an incremented attempt count.
func (m *Monitor) Retry(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.jobs[id]
	if !ok {
		return Job{}, errs.Input(errs.CodeOperation, "job %s not found", id)
	}
	if tr.job.State != StateFailed {
		return Job{}, errs.Input(errs.CodeOperation, "job %s is not failed", id)
	}
	if !tr.job.Retryable {
		return Job{}, errs.Input(errs.CodeOperation, "job %s failed with a non-retryable error", id)
	}

	job := Job{
		ID:        uuid.NewString(),
		Type:      tr.job.Type,
		State:     StatePending,
		RetryOf:   tr.job.ID,
		Attempt:   tr.job.Attempt + 1,
		CreatedAt: m.now(),
	}
	m.jobs[job.ID] = &tracked{job: job}

	m.publish(job)
	m.logger.Info("job retry scheduled",
		zap.String("job_id", job.ID),
		zap.String("retry_of", id),
		zap.Int("attempt", job.Attempt))
	return job, nil
}

// Get returns a snapshot of one job.
func (m *Monitor) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tr, ok := m.jobs[id]
	if !ok {
		return Job{}, errs.Input(errs.CodeOperation, "job %s not found", id)
	}
	return tr.job, nil
}

// List returns snapshots of all tracked jobs.
func (m *Monitor) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, tr := range m.jobs {
		out = append(out, tr.job)
	}
	return out
}

// Sweep drops finished jobs older than the retention window and returns
// how many were removed.
func (m *Monitor) Sweep() int {
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, tr := range m.jobs {
		if tr.job.State.Terminal() && tr.job.EndedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("swept finished jobs", zap.Int("removed", removed))
	}
	return removed
}

// RunSweeper sweeps on the given interval until ctx is done.
func (m *Monitor) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Monitor) publish(job Job) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.TopicJobStateChanged, map[string]any{
		"jobId":    job.ID,
		"type":     job.Type,
		"state":    string(job.State),
		"progress": job.Progress,
	})
}
