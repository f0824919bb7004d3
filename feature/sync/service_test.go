package sync

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booksync/core/cache"
	"booksync/core/errs"
	"booksync/feature/apply"
	"booksync/feature/book"
	"booksync/feature/compare"
	"booksync/feature/conflict"
	"booksync/feature/jobs"
	"booksync/feature/validate"
)

// memLibrary is an in-memory Library for pipeline tests. listErr, when
// set, fails the next List/ListByPlatform call once; insertErrs scripts
// per-call insert outcomes; updateGate, when set, blocks updates until
// it is closed.
type memLibrary struct {
	mu         sync.Mutex
	records    map[string]*book.Record
	listErr    error
	insertErrs []error
	updateGate chan struct{}
}

func newMemLibrary() *memLibrary {
	return &memLibrary{records: map[string]*book.Record{}}
}

func (m *memLibrary) takeListErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.listErr
	m.listErr = nil
	return err
}

func (m *memLibrary) InsertBatch(_ context.Context, records []*book.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.insertErrs) > 0 {
		err := m.insertErrs[0]
		m.insertErrs = m.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, r := range records {
		m.records[r.ID] = r.Clone()
	}
	return nil
}

func (m *memLibrary) UpdateBatch(ctx context.Context, records []*book.Record) error {
	m.mu.Lock()
	gate := m.updateGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r.Clone()
	}
	return nil
}

func (m *memLibrary) RemoveBatch(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

func (m *memLibrary) List(_ context.Context) ([]*book.Record, error) {
	return m.list(func(*book.Record) bool { return true })
}

func (m *memLibrary) ListByPlatform(_ context.Context, platform string) ([]*book.Record, error) {
	return m.list(func(r *book.Record) bool { return r.Platform == platform })
}

func (m *memLibrary) list(keep func(*book.Record) bool) ([]*book.Record, error) {
	if err := m.takeListErr(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*book.Record
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLibrary) get(id string) *book.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Clone()
}

func newTestService(t *testing.T) (*Service, *memLibrary) {
	return newTestServiceOpts(t, 10, time.Hour)
}

func newTestServiceOpts(t *testing.T, batchSize int, retention time.Duration) (*Service, *memLibrary) {
	t.Helper()
	logg := zap.NewNop()
	cacheMgr := cache.NewManager(cache.Config{Enabled: true, Size: 128, TTLSeconds: 60}, nil, logg)
	validator := validate.NewValidator(validate.Config{AutoFix: true, TimeoutMillis: 5000}, cacheMgr, nil, logg)
	lib := newMemLibrary()
	processor := apply.NewProcessor(apply.Config{BatchSize: batchSize, RetryAttempts: 2, RetryBaseMillis: 1, RetryMaxMillis: 2}, nil, logg)
	svc := NewService(
		Config{},
		validator,
		compare.NewEngine(compare.Config{}, logg),
		conflict.NewDetector(logg),
		conflict.NewResolver(0, logg),
		processor,
		lib,
		jobs.NewMonitor(retention, nil, logg),
		cacheMgr,
		nil,
		logg,
	)
	return svc, lib
}

func waitForJob(t *testing.T, svc *Service, id string, want jobs.State) jobs.Job {
	t.Helper()
	var job jobs.Job
	require.Eventually(t, func() bool {
		got, _, err := svc.Job(id)
		if err != nil {
			return false
		}
		job = got
		return job.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, want, job.State, "job error: %s", job.Error)
	return job
}

func TestSyncEndToEnd(t *testing.T) {
	svc, lib := newTestService(t)

	existing := &book.Record{
		ID:          "book-1",
		Platform:    "readmoo",
		Title:       "A Wizard of Earthsea",
		Status:      book.StatusReading,
		ExtractedAt: 1000,
	}
	existing.Progress.Percentage = 10
	require.NoError(t, lib.InsertBatch(context.Background(), []*book.Record{existing}))

	req := Request{
		Platform: "readmoo",
		Records: []map[string]any{
			{"id": "book-1", "title": "A Wizard of Earthsea", "progress": 60, "extractedAt": 2000},
			{"id": "book-2", "title": "The Tombs of Atuan", "progress": 5, "extractedAt": 2000},
		},
		Strategy:         "MERGE",
		ConflictStrategy: conflict.StrategyKeepHighestProgress,
	}

	job, err := svc.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	done := waitForJob(t, svc, job.ID, jobs.StateCompleted)
	assert.Equal(t, 100, done.Progress)

	_, report, err := svc.Job(job.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Validation.Valid)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 1, report.Applied.Inserted)
	assert.Equal(t, 1, report.Applied.Updated)

	// The higher-progress incoming version won the conflict.
	updated := lib.get("book-1")
	require.NotNil(t, updated)
	assert.Equal(t, 60, updated.Progress.Percentage)
	assert.NotNil(t, lib.get("book-2"))
}

func TestSyncRejectsBadRequests(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"NoRecords", Request{Platform: "readmoo"}},
		{"UnknownStrategy", Request{
			Platform: "readmoo",
			Records:  []map[string]any{{"id": "b", "title": "t"}},
			Strategy: "UPSERT",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Sync(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errs.KindInput, errs.KindOf(err))
		})
	}
}

func TestSyncUnknownPlatformFailsJob(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.Sync(context.Background(), Request{
		Platform: "librarything",
		Records:  []map[string]any{{"id": "b", "title": "t"}},
	})
	require.NoError(t, err)

	failed := waitForJob(t, svc, job.ID, jobs.StateFailed)
	assert.False(t, failed.Retryable)
}

func TestRetryAfterTransientFailure(t *testing.T) {
	svc, lib := newTestService(t)
	lib.mu.Lock()
	lib.listErr = errs.Transient(errs.CodeConnection, nil, "connection reset")
	lib.mu.Unlock()

	req := Request{
		Platform: "kobo",
		Records:  []map[string]any{{"id": "b1", "title": "Annihilation", "position": 0.4}},
	}
	job, err := svc.Sync(context.Background(), req)
	require.NoError(t, err)

	failed := waitForJob(t, svc, job.ID, jobs.StateFailed)
	assert.True(t, failed.Retryable)

	retry, err := svc.Retry(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retry.RetryOf)

	waitForJob(t, svc, retry.ID, jobs.StateCompleted)
	got := lib.get("b1")
	require.NotNil(t, got)
	assert.Equal(t, 40, got.Progress.Percentage)
}

func TestSyncIntoEmptyLibrary(t *testing.T) {
	svc, lib := newTestService(t)

	job, err := svc.Sync(context.Background(), Request{
		Platform: "readmoo",
		Records: []map[string]any{
			{"id": "book-1", "title": "Piranesi", "progress": 25, "extractedAt": 1000},
		},
	})
	require.NoError(t, err)

	waitForJob(t, svc, job.ID, jobs.StateCompleted)

	_, report, err := svc.Job(job.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Applied.Inserted)
	require.NotNil(t, lib.get("book-1"))
}

func TestFailedRunKeepsPartialReport(t *testing.T) {
	svc, lib := newTestServiceOpts(t, 1, time.Hour)
	lib.mu.Lock()
	lib.insertErrs = []error{nil, errs.Fatal(errs.CodePermission, nil, "access denied")}
	lib.mu.Unlock()

	job, err := svc.Sync(context.Background(), Request{
		Platform: "readmoo",
		Strategy: "APPEND",
		Records: []map[string]any{
			{"id": "b1", "title": "Ubik", "progress": 10, "extractedAt": 1000},
			{"id": "b2", "title": "Valis", "progress": 20, "extractedAt": 1000},
		},
	})
	require.NoError(t, err)

	failed := waitForJob(t, svc, job.ID, jobs.StateFailed)
	assert.False(t, failed.Retryable)

	// The first batch stayed applied and the report says so.
	_, report, err := svc.Job(job.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Applied.Inserted)
	require.NotNil(t, lib.get("b1"))
	assert.Nil(t, lib.get("b2"))
}

func TestCancelRollsBackPartialWrites(t *testing.T) {
	svc, lib := newTestServiceOpts(t, 1, time.Hour)

	existing := &book.Record{
		ID:          "b1",
		Platform:    "readmoo",
		Title:       "The Dispossessed",
		Status:      book.StatusReading,
		ExtractedAt: 1000,
	}
	existing.Progress.Percentage = 10
	require.NoError(t, lib.InsertBatch(context.Background(), []*book.Record{existing}))

	gate := make(chan struct{})
	lib.mu.Lock()
	lib.updateGate = gate
	lib.mu.Unlock()

	job, err := svc.Sync(context.Background(), Request{
		Platform: "readmoo",
		Records: []map[string]any{
			{"id": "b1", "title": "The Dispossessed", "progress": 60, "extractedAt": 2000},
			{"id": "b2", "title": "The Lathe of Heaven", "progress": 5, "extractedAt": 2000},
		},
	})
	require.NoError(t, err)

	// Wait for the insert batch to land; the update batch is parked on
	// the gate, so the run is stuck mid-apply.
	require.Eventually(t, func() bool {
		return lib.get("b2") != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Cancel(context.Background(), job.ID))
	close(gate)

	cancelled := waitForJob(t, svc, job.ID, jobs.StateCancelled)
	assert.Equal(t, jobs.StateCancelled, cancelled.State)

	// The inserted record was rolled back and the existing one is
	// untouched.
	assert.Nil(t, lib.get("b2"))
	got := lib.get("b1")
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Progress.Percentage)
}

func TestRollbackRestoresLibrary(t *testing.T) {
	ctx := context.Background()
	lib := newMemLibrary()

	before := &book.Record{ID: "b1", Platform: "readmoo", Title: "Kindred", ExtractedAt: 1000}
	before.Progress.Percentage = 10
	doomed := &book.Record{ID: "b3", Platform: "readmoo", Title: "Dawn", ExtractedAt: 1000}
	require.NoError(t, lib.InsertBatch(ctx, []*book.Record{before, doomed}))

	after := before.Clone()
	after.Progress.Percentage = 90
	after.ExtractedAt = 2000

	rec := newRecorder(lib)
	rec.prime(&compare.ChangeSet{
		Modified: []compare.ModifiedRecord{{ID: "b1", Source: after, Target: before}},
		Deleted:  []*book.Record{doomed},
	})

	inserted := &book.Record{ID: "b2", Platform: "readmoo", Title: "Wild Seed", ExtractedAt: 2000}
	require.NoError(t, rec.InsertBatch(ctx, []*book.Record{inserted}))
	require.NoError(t, rec.UpdateBatch(ctx, []*book.Record{after}))
	require.NoError(t, rec.RemoveBatch(ctx, []string{"b3"}))

	require.Equal(t, 90, lib.get("b1").Progress.Percentage)
	require.NotNil(t, lib.get("b2"))
	require.Nil(t, lib.get("b3"))

	require.NoError(t, rec.rollback(ctx))

	assert.Equal(t, 10, lib.get("b1").Progress.Percentage)
	assert.Nil(t, lib.get("b2"))
	assert.NotNil(t, lib.get("b3"))
}

func TestSweepPrunesRetainedState(t *testing.T) {
	svc, _ := newTestServiceOpts(t, 10, time.Millisecond)

	job, err := svc.Sync(context.Background(), Request{
		Platform: "readmoo",
		Records: []map[string]any{
			{"id": "b1", "title": "Parable of the Sower", "progress": 40, "extractedAt": 1000},
		},
	})
	require.NoError(t, err)
	waitForJob(t, svc, job.ID, jobs.StateCompleted)

	require.Eventually(t, func() bool {
		return svc.Sweep() > 0
	}, 5*time.Second, 10*time.Millisecond)

	// The job is gone and so are its retained request and report.
	_, _, err = svc.Job(job.ID)
	require.Error(t, err)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.requests)
	assert.Empty(t, svc.reports)
}

func TestValidateOnly(t *testing.T) {
	svc, lib := newTestService(t)

	result, err := svc.Validate(context.Background(), "bookwalker", []map[string]any{
		{"id": "b1", "title": "Vita Nostra", "percent_complete": 88},
		{"title": "no id"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Valid)
	assert.Equal(t, 1, result.Invalid)

	// Validation alone never touches the library.
	records, err := lib.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCacheStatsAndClear(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Validate(context.Background(), "readmoo", []map[string]any{
		{"id": "b1", "title": "Solaris", "progress": 10},
	})
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.NotEmpty(t, stats)

	svc.ClearCache()
	for typ, st := range svc.CacheStats() {
		assert.Equal(t, 0, st.Size, "partition %s", typ)
	}
}
