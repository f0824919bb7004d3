package validate

import (
	"context"
	"time"

	"booksync/core/errs"
	"booksync/core/events"
	"booksync/feature/book"
	"booksync/feature/platform"

	"go.uber.org/zap"
)

// Item pairs one input record with its validation result, in input order.
type Item struct {
	Index   int          `json:"index"`
	Record  *book.Record `json:"record"`
	Outcome *Outcome     `json:"outcome"`
}

// BatchResult summarizes one batch validation run.
type BatchResult struct {
	Platform string        `json:"platform"`
	Total    int           `json:"total"`
	Valid    int           `json:"valid"`
	Invalid  int           `json:"invalid"`
	Batches  int           `json:"batches"`
	Items    []Item        `json:"items"`
	Elapsed  time.Duration `json:"elapsed"`
}

// ValidRecords returns the normalized records that passed validation,
// preserving input order.
func (r *BatchResult) ValidRecords() []*book.Record {
	out := make([]*book.Record, 0, r.Valid)
	for _, item := range r.Items {
		if item.Outcome.IsValid {
			out = append(out, item.Record)
		}
	}
	return out
}

// ValidateBatch validates a batch of raw records. Input is chunked to
// bound memory, chunks run with bounded parallelism but results keep
// input order, and the whole run races a wall-clock timeout. On timeout
// the run is abandoned and nothing is returned.
func (v *Validator) ValidateBatch(ctx context.Context, raws []map[string]any, platformName string) (*BatchResult, error) {
	if raws == nil {
		return nil, errs.Input(errs.CodeValidation, "records must be a list")
	}
	p, err := platform.Parse(platformName)
	if err != nil {
		return nil, err
	}
	spec, _ := platform.Lookup(p)

	start := time.Now()
	v.publish(events.TopicValidationStarted, map[string]any{
		"platform": string(p),
		"total":    len(raws),
	})

	ctx, cancel := context.WithTimeout(ctx, v.cfg.timeout())
	defer cancel()

	result, err := v.runChunks(ctx, raws, spec)
	if err != nil {
		v.publish(events.TopicValidationFailed, map[string]any{
			"platform": string(p),
			"error":    err.Error(),
		})
		return nil, err
	}

	result.Platform = string(p)
	result.Elapsed = time.Since(start)

	v.publish(events.TopicValidationCompleted, map[string]any{
		"platform": string(p),
		"total":    result.Total,
		"valid":    result.Valid,
		"invalid":  result.Invalid,
	})
	v.logger.Info("batch validation completed",
		zap.String("platform", string(p)),
		zap.Int("total", result.Total),
		zap.Int("valid", result.Valid),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// runChunks processes fixed-size chunks with bounded parallelism.
// Chunk ordering in the result is deterministic regardless of concurrency.
func (v *Validator) runChunks(ctx context.Context, raws []map[string]any, spec platform.Spec) (*BatchResult, error) {
	size := v.cfg.chunkSize()
	chunks := make([][]map[string]any, 0, (len(raws)+size-1)/size)
	for from := 0; from < len(raws); from += size {
		to := from + size
		if to > len(raws) {
			to = len(raws)
		}
		chunks = append(chunks, raws[from:to])
	}

	items := make([]Item, len(raws))
	sem := make(chan struct{}, v.cfg.concurrency())
	errCh := make(chan error, len(chunks))
	done := make(chan int, len(chunks))

	for chunkIdx, chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, v.timeoutError(ctx)
		case sem <- struct{}{}:
		}

		go func(chunkIdx int, chunk []map[string]any) {
			defer func() { <-sem }()
			base := chunkIdx * size
			for i, raw := range chunk {
				if ctx.Err() != nil {
					errCh <- v.timeoutError(ctx)
					return
				}
				record, outcome := v.validateOne(ctx, raw, spec)
				items[base+i] = Item{Index: base + i, Record: record, Outcome: outcome}
			}
			done <- chunkIdx
		}(chunkIdx, chunk)
	}

	completed := 0
	processed := 0
	for completed < len(chunks) {
		select {
		case <-ctx.Done():
			return nil, v.timeoutError(ctx)
		case err := <-errCh:
			return nil, err
		case chunkIdx := <-done:
			completed++
			processed += len(chunks[chunkIdx])
			v.publish(events.TopicBatchProcessed, map[string]any{
				"batch": chunkIdx,
				"size":  len(chunks[chunkIdx]),
			})
			payload := map[string]any{
				"processed":  processed,
				"total":      len(raws),
				"percentage": percent(processed, len(raws)),
			}
			if v.cfg.PauseHintBatches > 0 && completed%v.cfg.PauseHintBatches == 0 && completed < len(chunks) {
				// Hint for the collector to pause extraction and let the
				// pipeline drain.
				payload["pauseSuggested"] = true
			}
			v.publish(events.TopicValidationProgress, payload)
		}
	}

	result := &BatchResult{
		Total:   len(raws),
		Batches: len(chunks),
		Items:   items,
	}
	for _, item := range items {
		if item.Outcome != nil && item.Outcome.IsValid {
			result.Valid++
		} else {
			result.Invalid++
		}
	}
	return result, nil
}

func (v *Validator) timeoutError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errs.Transient(errs.CodeValidationTimeout, ctx.Err(),
			"validation exceeded the %s timeout", v.cfg.timeout())
	}
	return errs.Transient(errs.CodeOperation, ctx.Err(), "validation cancelled")
}

func (v *Validator) publish(topic events.Topic, payload map[string]any) {
	if v.bus != nil {
		v.bus.Publish(topic, payload)
	}
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
