package apply

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"booksync/core/errs"
	"booksync/core/events"
	"booksync/feature/book"
	"booksync/feature/compare"
	"booksync/feature/conflict"
)

// Processor writes a ChangeSet to a Target in batches, retrying
// transient failures with capped exponential backoff.
type Processor struct {
	cfg    Config
	bus    *events.Bus
	logger *zap.Logger

	mu     sync.Mutex
	totals Totals

	sleep func(context.Context, time.Duration) error
}

func NewProcessor(cfg Config, bus *events.Bus, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Apply writes the change set to target with the given strategy.
// Cancellation is honored at batch boundaries: completed batches stay
// applied and the partial stats are returned with the context error.
func (p *Processor) Apply(ctx context.Context, target Target, set *compare.ChangeSet, strategy Strategy) (*Stats, error) {
	if set == nil {
		return nil, errs.Input(errs.CodeValidation, "change set is required")
	}

	start := time.Now()
	stats := &Stats{Strategy: strategy}

	inserts, updates, removals := p.plan(set, strategy, stats)

	err := p.run(ctx, target, stats, inserts, updates, removals)

	stats.Elapsed = time.Since(start)
	p.accumulate(stats, err)
	p.publishProgress(stats, err)

	p.logger.Info("change set applied",
		zap.String("strategy", string(strategy)),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
		zap.Int("skipped", len(stats.Skipped)),
		zap.Int("retries", stats.Retries),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Error(err))
	return stats, err
}

// plan turns the change set into the batches the strategy allows,
// recording skips and warnings for everything it refuses.
func (p *Processor) plan(set *compare.ChangeSet, strategy Strategy, stats *Stats) (inserts, updates []*book.Record, removals []string) {
	inserts = set.Added

	switch strategy {
	case StrategyMerge:
		updates = make([]*book.Record, 0, len(set.Modified))
		for _, mod := range set.Modified {
			updates = append(updates, conflict.MergeRecords(mod.Source, mod.Target))
		}
	case StrategyOverwrite:
		updates = make([]*book.Record, 0, len(set.Modified))
		for _, mod := range set.Modified {
			updates = append(updates, mod.Source)
		}
		removals = make([]string, 0, len(set.Deleted))
		for _, r := range set.Deleted {
			removals = append(removals, r.ID)
		}
		// Overwrite can lose target-side data, warn up front.
		stats.Warnings = append(stats.Warnings,
			"overwrite discards target-side changes for modified and deleted records")
	case StrategyAppend:
		for _, mod := range set.Modified {
			stats.Skipped = append(stats.Skipped, Skip{ID: mod.ID, Reason: "append does not update existing records"})
		}
		for _, r := range set.Deleted {
			stats.Skipped = append(stats.Skipped, Skip{ID: r.ID, Reason: "append does not delete records"})
		}
	}
	return inserts, updates, removals
}

func (p *Processor) run(ctx context.Context, target Target, stats *Stats, inserts, updates []*book.Record, removals []string) error {
	size := p.cfg.batchSize()

	for _, chunk := range chunkRecords(inserts, size) {
		if err := p.withRetry(ctx, stats, "insert", func(ctx context.Context) error {
			return target.InsertBatch(ctx, chunk)
		}); err != nil {
			return err
		}
		stats.Inserted += len(chunk)
		stats.Batches++
	}
	for _, chunk := range chunkRecords(updates, size) {
		if err := p.withRetry(ctx, stats, "update", func(ctx context.Context) error {
			return target.UpdateBatch(ctx, chunk)
		}); err != nil {
			return err
		}
		stats.Updated += len(chunk)
		stats.Batches++
	}
	for _, chunk := range chunkIDs(removals, size) {
		if err := p.withRetry(ctx, stats, "remove", func(ctx context.Context) error {
			return target.RemoveBatch(ctx, chunk)
		}); err != nil {
			return err
		}
		stats.Deleted += len(chunk)
		stats.Batches++
	}
	return nil
}

// withRetry runs op up to the configured attempt count, retrying only
// transient failures. Input and fatal errors fail immediately.
func (p *Processor) withRetry(ctx context.Context, stats *Stats, name string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 1 {
			delay := backoff(p.cfg.retryBase(), p.cfg.retryMax(), attempt-1)
			p.logger.Warn("retrying failed batch",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
			stats.Retries++
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !errs.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return errs.Transient(errs.CodeStorage, lastErr, "batch failed after retries")
}

func (p *Processor) accumulate(stats *Stats, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals.Runs++
	if err == nil {
		p.totals.Succeeded++
	} else {
		p.totals.Failed++
	}
	if p.totals.StrategiesUsed == nil {
		p.totals.StrategiesUsed = map[Strategy]int{}
	}
	p.totals.StrategiesUsed[stats.Strategy]++
	p.totals.Inserted += stats.Inserted
	p.totals.Updated += stats.Updated
	p.totals.Deleted += stats.Deleted
	p.totals.Skipped += len(stats.Skipped)
	p.totals.Retries += stats.Retries
}

// Totals returns the running counters across all Apply calls.
func (p *Processor) Totals() Totals {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.totals
	out.StrategiesUsed = make(map[Strategy]int, len(p.totals.StrategiesUsed))
	for k, v := range p.totals.StrategiesUsed {
		out.StrategiesUsed[k] = v
	}
	return out
}

func (p *Processor) publishProgress(stats *Stats, err error) {
	if p.bus == nil {
		return
	}
	payload := map[string]any{
		"strategy": string(stats.Strategy),
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
		"deleted":  stats.Deleted,
		"skipped":  len(stats.Skipped),
		"batches":  stats.Batches,
		"retries":  stats.Retries,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	p.bus.Publish(events.TopicSyncProgress, payload)
}

func chunkRecords(records []*book.Record, size int) [][]*book.Record {
	var chunks [][]*book.Record
	for from := 0; from < len(records); from += size {
		to := from + size
		if to > len(records) {
			to = len(records)
		}
		chunks = append(chunks, records[from:to])
	}
	return chunks
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for from := 0; from < len(ids); from += size {
		to := from + size
		if to > len(ids) {
			to = len(ids)
		}
		chunks = append(chunks, ids[from:to])
	}
	return chunks
}
