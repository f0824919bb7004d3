package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"booksync/core/cache"
	"booksync/core/errs"
	"booksync/core/events"
	"booksync/feature/apply"
	"booksync/feature/book"
	"booksync/feature/compare"
	"booksync/feature/conflict"
	"booksync/feature/jobs"
	"booksync/feature/validate"
)

// Request describes one sync run: raw platform records to reconcile
// into the library.
type Request struct {
	Platform         string           `json:"platform"`
	Records          []map[string]any `json:"records"`
	Strategy         string           `json:"strategy"`
	ConflictStrategy string           `json:"conflictStrategy"`
}

// Report is the outcome of one finished sync run.
type Report struct {
	JobID       string                `json:"jobId"`
	Platform    string                `json:"platform"`
	Validation  *validate.BatchResult `json:"validation"`
	Changes     compare.Summary       `json:"changes"`
	Conflicts   int                   `json:"conflicts"`
	Resolutions []conflict.Resolution `json:"resolutions,omitempty"`
	Applied     *apply.Stats          `json:"applied"`
}

// Library is the record store a sync run reads from and writes to.
type Library interface {
	apply.Target
	List(ctx context.Context) ([]*book.Record, error)
	ListByPlatform(ctx context.Context, platform string) ([]*book.Record, error)
}

// Service runs the full reconciliation pipeline: validate incoming
// records, diff them against the library, resolve conflicts, and apply
// the change set, all tracked as a monitored job.
type Service struct {
	cfg       Config
	validator *validate.Validator
	engine    *compare.Engine
	detector  *conflict.Detector
	resolver  *conflict.Resolver
	processor *apply.Processor
	store     Library
	monitor   *jobs.Monitor
	cache     *cache.Manager
	bus       *events.Bus
	logger    *zap.Logger

	mu       sync.Mutex
	requests map[string]Request // job id -> originating request, for retries
	reports  map[string]*Report
}

func NewService(
	cfg Config,
	validator *validate.Validator,
	engine *compare.Engine,
	detector *conflict.Detector,
	resolver *conflict.Resolver,
	processor *apply.Processor,
	store Library,
	monitor *jobs.Monitor,
	cacheMgr *cache.Manager,
	bus *events.Bus,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		validator: validator,
		engine:    engine,
		detector:  detector,
		resolver:  resolver,
		processor: processor,
		store:     store,
		monitor:   monitor,
		cache:     cacheMgr,
		bus:       bus,
		logger:    logger,
		requests:  map[string]Request{},
		reports:   map[string]*Report{},
	}
}

// Sync starts a monitored sync run in the background and returns the
// pending job. Progress and the final report are queried by job id.
func (s *Service) Sync(ctx context.Context, req Request) (jobs.Job, error) {
	if len(req.Records) == 0 {
		return jobs.Job{}, errs.Input(errs.CodeValidation, "records are required")
	}
	if req.Strategy == "" {
		req.Strategy = s.cfg.DefaultStrategy
	}
	if req.Strategy == "" {
		req.Strategy = string(apply.StrategyMerge)
	}
	if req.ConflictStrategy == "" {
		req.ConflictStrategy = s.cfg.DefaultConflictStrategy
	}
	if req.ConflictStrategy == "" {
		req.ConflictStrategy = conflict.StrategyKeepLatest
	}
	if _, err := apply.ParseStrategy(req.Strategy); err != nil {
		return jobs.Job{}, err
	}

	job := s.monitor.Create("sync")
	s.mu.Lock()
	s.requests[job.ID] = req
	s.mu.Unlock()

	// The run outlives the request; only job cancellation stops it.
	rec := newRecorder(s.store)
	jobCtx, err := s.monitor.Start(context.WithoutCancel(ctx), job.ID, rec.rollback)
	if err != nil {
		return jobs.Job{}, err
	}

	go s.run(jobCtx, job.ID, req, rec)
	return job, nil
}

// run executes the pipeline for one job, reporting progress at every
// stage boundary. A partial report from a failed run is kept so already
// applied batches stay visible alongside the failure.
func (s *Service) run(ctx context.Context, jobID string, req Request, rec *recorder) {
	report, err := s.execute(ctx, jobID, req, rec)
	if report != nil {
		s.mu.Lock()
		s.reports[jobID] = report
		s.mu.Unlock()
	}
	if err != nil {
		if ctx.Err() != nil {
			// Cancel already moved the job to its terminal state.
			s.logger.Info("sync job stopped", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		if failErr := s.monitor.Fail(jobID, err); failErr != nil {
			s.logger.Warn("recording job failure", zap.String("job_id", jobID), zap.Error(failErr))
		}
		return
	}

	if err := s.monitor.Complete(jobID); err != nil {
		s.logger.Warn("recording job completion", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Service) execute(ctx context.Context, jobID string, req Request, rec *recorder) (*Report, error) {
	strategy, err := apply.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	s.progress(jobID, 10, "validating records")
	validation, err := s.validator.ValidateBatch(ctx, req.Records, req.Platform)
	if err != nil {
		return nil, err
	}
	incoming := validation.ValidRecords()
	if len(incoming) == 0 {
		return nil, errs.Input(errs.CodeValidation, "no records passed validation")
	}

	s.progress(jobID, 30, "comparing against library")
	current, err := s.store.ListByPlatform(ctx, req.Platform)
	if err != nil {
		return nil, err
	}
	set, err := s.engine.Diff(incoming, current)
	if err != nil {
		return nil, err
	}

	s.progress(jobID, 50, "resolving conflicts")
	conflicts, err := s.detector.Detect(incoming, current)
	if err != nil {
		return nil, err
	}
	resolutions, err := s.resolveModified(set, conflicts, req.ConflictStrategy)
	if err != nil {
		return nil, err
	}

	s.progress(jobID, 70, "applying changes")
	rec.prime(set)
	stats, err := s.processor.Apply(ctx, rec, set, strategy)
	report := &Report{
		JobID:       jobID,
		Platform:    req.Platform,
		Validation:  validation,
		Changes:     set.Summary,
		Conflicts:   len(conflicts),
		Resolutions: resolutions,
		Applied:     stats,
	}
	if err != nil {
		// Completed batches stay applied; the report carries the
		// partial stats next to the failure.
		return report, err
	}

	s.progress(jobID, 100, "done")
	s.publish(events.TopicReadyForSync, map[string]any{
		"jobId":    jobID,
		"platform": req.Platform,
		"applied":  stats.Inserted + stats.Updated + stats.Deleted,
	})
	return report, nil
}

// resolveModified runs the conflict strategy and rewrites the change
// set so resolved winners are what gets applied. Unresolved conflicts
// drop their pair from the modification list, leaving them for manual
// review.
func (s *Service) resolveModified(set *compare.ChangeSet, conflicts []conflict.Conflict, strategyName string) ([]conflict.Resolution, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}
	resolutions, err := s.resolver.Resolve(conflicts, strategyName)
	if err != nil {
		return nil, err
	}

	winners := make(map[string]*book.Record, len(resolutions))
	unresolved := make(map[string]struct{})
	for i, res := range resolutions {
		id := conflicts[i].Local.ID
		if res.Resolved {
			winners[id] = res.Winner
		} else {
			unresolved[id] = struct{}{}
		}
	}

	kept := set.Modified[:0]
	for _, mod := range set.Modified {
		if _, skip := unresolved[mod.ID]; skip {
			continue
		}
		if winner, ok := winners[mod.ID]; ok {
			mod.Source = winner
		}
		kept = append(kept, mod)
	}
	set.Modified = kept
	return resolutions, nil
}

// Validate runs batch validation only, without touching the library.
func (s *Service) Validate(ctx context.Context, platform string, records []map[string]any) (*validate.BatchResult, error) {
	return s.validator.ValidateBatch(ctx, records, platform)
}

// Job returns the job snapshot and, once finished, its report.
func (s *Service) Job(id string) (jobs.Job, *Report, error) {
	job, err := s.monitor.Get(id)
	if err != nil {
		return jobs.Job{}, nil, err
	}
	s.mu.Lock()
	report := s.reports[id]
	s.mu.Unlock()
	return job, report, nil
}

// Jobs lists all tracked jobs.
func (s *Service) Jobs() []jobs.Job {
	return s.monitor.List()
}

// Cancel stops a running sync job.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.monitor.Cancel(ctx, id)
}

// Retry reruns a failed, retryable job with its original request.
func (s *Service) Retry(ctx context.Context, id string) (jobs.Job, error) {
	s.mu.Lock()
	req, ok := s.requests[id]
	s.mu.Unlock()
	if !ok {
		return jobs.Job{}, errs.Input(errs.CodeOperation, "no request retained for job %s", id)
	}

	job, err := s.monitor.Retry(id)
	if err != nil {
		return jobs.Job{}, err
	}

	s.mu.Lock()
	s.requests[job.ID] = req
	s.mu.Unlock()

	rec := newRecorder(s.store)
	jobCtx, err := s.monitor.Start(context.WithoutCancel(ctx), job.ID, rec.rollback)
	if err != nil {
		return jobs.Job{}, err
	}
	go s.run(jobCtx, job.ID, req, rec)
	return job, nil
}

// Sweep drops expired finished jobs together with the requests and
// reports retained for them, and returns how many jobs were removed.
func (s *Service) Sweep() int {
	removed := s.monitor.Sweep()

	live := map[string]struct{}{}
	for _, job := range s.monitor.List() {
		live[job.ID] = struct{}{}
	}
	s.mu.Lock()
	for id := range s.requests {
		if _, ok := live[id]; !ok {
			delete(s.requests, id)
		}
	}
	for id := range s.reports {
		if _, ok := live[id]; !ok {
			delete(s.reports, id)
		}
	}
	s.mu.Unlock()
	return removed
}

// RunSweeper sweeps jobs and their retained state on the given interval
// until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
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
			s.Sweep()
		}
	}
}

// CacheStats exposes per-partition cache statistics.
func (s *Service) CacheStats() map[cache.Type]cache.Stats {
	return s.cache.Statistics()
}

// ClearCache empties every cache partition.
func (s *Service) ClearCache() {
	s.cache.ClearAll()
}

func (s *Service) progress(jobID string, percent int, message string) {
	if err := s.monitor.Progress(jobID, percent, message); err != nil {
		s.logger.Debug("progress update dropped", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Service) publish(topic events.Topic, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, payload)
}
