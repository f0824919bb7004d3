package apply

import (
	"context"
	"strings"
	"time"

	"booksync/core/errs"
	"booksync/feature/book"
)

// Strategy selects how a change set is written to the target.
type Strategy string

const (
	// StrategyMerge inserts new records and updates existing ones with a
	// field-wise merge of both versions. Nothing is deleted.
	StrategyMerge Strategy = "MERGE"
	// StrategyOverwrite makes the target an exact copy of the source,
	// including deletions.
	StrategyOverwrite Strategy = "OVERWRITE"
	// StrategyAppend only inserts records the target does not have.
	StrategyAppend Strategy = "APPEND"
)

// ParseStrategy maps a raw string to a Strategy, case-insensitively.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(raw))) {
	case StrategyMerge:
		return StrategyMerge, nil
	case StrategyOverwrite:
		return StrategyOverwrite, nil
	case StrategyAppend:
		return StrategyAppend, nil
	default:
		return "", errs.Input(errs.CodeValidation, "unknown sync strategy %q", raw)
	}
}

// Target is the write side of a sync run. Implementations must treat
// each batch as one unit: either the whole batch lands or none of it.
type Target interface {
	InsertBatch(ctx context.Context, records []*book.Record) error
	UpdateBatch(ctx context.Context, records []*book.Record) error
	RemoveBatch(ctx context.Context, ids []string) error
}

// Config holds the tunable batching and retry behavior.
type Config struct {
	// BatchSize is the number of records written per target call.
	BatchSize int `mapstructure:"batch_size" default:"50"`
	// RetryAttempts is the total number of times one failing batch is
	// attempted, the first try included.
	RetryAttempts int `mapstructure:"retry_attempts" default:"3"`
	// RetryBaseMillis is the first backoff delay. Each retry doubles it.
	RetryBaseMillis int `mapstructure:"retry_base_ms" default:"200"`
	// RetryMaxMillis caps the backoff delay.
	RetryMaxMillis int `mapstructure:"retry_max_ms" default:"5000"`
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 50
	}
	return c.BatchSize
}

func (c Config) attempts() int {
	if c.RetryAttempts <= 0 {
		return 3
	}
	return c.RetryAttempts
}

func (c Config) retryBase() time.Duration {
	if c.RetryBaseMillis <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.RetryBaseMillis) * time.Millisecond
}

func (c Config) retryMax() time.Duration {
	if c.RetryMaxMillis <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.RetryMaxMillis) * time.Millisecond
}

// Skip records one change the chosen strategy refused to apply.
type Skip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Stats summarizes one Apply call.
type Stats struct {
	Strategy Strategy      `json:"strategy"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Deleted  int           `json:"deleted"`
	Skipped  []Skip        `json:"skipped,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Batches  int           `json:"batches"`
	Retries  int           `json:"retries"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Totals accumulates stats across Apply calls, per strategy and split
// into successful and failed runs.
type Totals struct {
	Runs           int              `json:"runs"`
	Succeeded      int              `json:"succeeded"`
	Failed         int              `json:"failed"`
	StrategiesUsed map[Strategy]int `json:"strategiesUsed,omitempty"`
	Inserted       int              `json:"inserted"`
	Updated        int              `json:"updated"`
	Deleted        int              `json:"deleted"`
	Skipped        int              `json:"skipped"`
	Retries        int              `json:"retries"`
}

// SuccessRate is the fraction of runs that applied without error.
func (t Totals) SuccessRate() float64 {
	if t.Runs == 0 {
		return 0
	}
	return float64(t.Succeeded) / float64(t.Runs)
}
