package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booksync/core/errs"
)

func newTestMonitor() *Monitor {
	return NewMonitor(time.Hour, nil, zap.NewNop())
}

func TestJobLifecycle(t *testing.T) {
	m := newTestMonitor()

	job := m.Create("sync")
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatePending, job.State)
	assert.Equal(t, 1, job.Attempt)

	ctx, err := m.Start(context.Background(), job.ID, nil)
	require.NoError(t, err)
	require.NoError(t, ctx.Err())

	require.NoError(t, m.Progress(job.ID, 40, "applying batches"))
	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, got.State)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, "applying batches", got.Message)

	require.NoError(t, m.Complete(job.ID))
	got, err = m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.False(t, got.EndedAt.IsZero())
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(m *Monitor, id string) error
	}{
		{"CompleteBeforeStart", func(m *Monitor, id string) error {
			return m.Complete(id)
		}},
		{"StartTwice", func(m *Monitor, id string) error {
			if _, err := m.Start(context.Background(), id, nil); err != nil {
				return err
			}
			_, err := m.Start(context.Background(), id, nil)
			return err
		}},
		{"CancelAfterComplete", func(m *Monitor, id string) error {
			if _, err := m.Start(context.Background(), id, nil); err != nil {
				return err
			}
			if err := m.Complete(id); err != nil {
				return err
			}
			return m.Cancel(context.Background(), id)
		}},
		{"ProgressWhilePending", func(m *Monitor, id string) error {
			return m.Progress(id, 10, "")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor()
			job := m.Create("sync")
			err := tt.run(m, job.ID)
			require.Error(t, err)
			assert.Equal(t, errs.KindInput, errs.KindOf(err))
		})
	}
}

func TestUnknownJob(t *testing.T) {
	m := newTestMonitor()
	_, err := m.Get("nope")
	require.Error(t, err)
	assert.Equal(t, errs.CodeOperation, errs.CodeOf(err))
}

func TestCancelRunningJobRollsBack(t *testing.T) {
	m := newTestMonitor()
	job := m.Create("sync")

	rolledBack := false
	ctx, err := m.Start(context.Background(), job.ID, func(context.Context) error {
		rolledBack = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(context.Background(), job.ID))

	// The job context is cancelled so in-flight work can stop.
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, rolledBack)

	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
}

func TestCancelPendingJob(t *testing.T) {
	m := newTestMonitor()
	job := m.Create("sync")

	require.NoError(t, m.Cancel(context.Background(), job.ID))
	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
}

func TestFailClassifiesRetryability(t *testing.T) {
	tests := []struct {
		name      string
		cause     error
		retryable bool
	}{
		{"TransientError", errs.Transient(errs.CodeConnection, nil, "connection reset"), true},
		{"FatalError", errs.Fatal(errs.CodeConfig, nil, "bad credentials"), false},
		{"InputError", errs.Input(errs.CodeValidation, "bad payload"), false},
		{"UntypedError", assert.AnError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor()
			job := m.Create("sync")
			_, err := m.Start(context.Background(), job.ID, nil)
			require.NoError(t, err)
			require.NoError(t, m.Fail(job.ID, tt.cause))

			got, err := m.Get(job.ID)
			require.NoError(t, err)
			assert.Equal(t, StateFailed, got.State)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestRetry(t *testing.T) {
	m := newTestMonitor()
	job := m.Create("sync")
	_, err := m.Start(context.Background(), job.ID, nil)
	require.NoError(t, err)
	require.NoError(t, m.Fail(job.ID, errs.Transient(errs.CodeTimeout, nil, "deadline exceeded")))

	retry, err := m.Retry(job.ID)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, retry.ID)
	assert.Equal(t, job.ID, retry.RetryOf)
	assert.Equal(t, StatePending, retry.State)
	assert.Equal(t, 2, retry.Attempt)
}

func TestRetryRejectedForNonRetryable(t *testing.T) {
	m := newTestMonitor()
	job := m.Create("sync")
	_, err := m.Start(context.Background(), job.ID, nil)
	require.NoError(t, err)
	require.NoError(t, m.Fail(job.ID, errs.Fatal(errs.CodePermission, nil, "forbidden")))

	_, err = m.Retry(job.ID)
	require.Error(t, err)
	assert.Equal(t, errs.KindInput, errs.KindOf(err))
}

func TestSweepDropsOnlyOldFinishedJobs(t *testing.T) {
	m := newTestMonitor()
	current := time.Now()
	m.now = func() time.Time { return current }

	done := m.Create("sync")
	_, err := m.Start(context.Background(), done.ID, nil)
	require.NoError(t, err)
	require.NoError(t, m.Complete(done.ID))

	active := m.Create("sync")

	// Move past the retention window.
	current = current.Add(2 * time.Hour)
	removed := m.Sweep()

	assert.Equal(t, 1, removed)
	_, err = m.Get(done.ID)
	require.Error(t, err)
	_, err = m.Get(active.ID)
	assert.NoError(t, err)
}
