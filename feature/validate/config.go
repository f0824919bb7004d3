package validate

import "time"

// Config holds configuration for the validation pipeline.
type Config struct {
	// AutoFix enables automatic corrections (whitespace, clamping, ISBN
	// stripping). Every applied fix is recorded in the outcome.
	AutoFix bool `mapstructure:"auto_fix" default:"true"`
	// StrictMode turns fixable range violations into hard errors instead
	// of clamping them.
	StrictMode bool `mapstructure:"strict_mode" default:"false"`
	// BatchSize is the number of records validated per chunk.
	BatchSize int `mapstructure:"batch_size" default:"100"`
	// MaxBatchSize caps a caller-supplied batch size.
	MaxBatchSize int `mapstructure:"max_batch_size" default:"500"`
	// TimeoutMillis bounds one batch validation run end to end.
	TimeoutMillis int `mapstructure:"timeout_ms" default:"5000"`
	// Concurrency is the number of chunks validated in parallel.
	Concurrency int `mapstructure:"concurrency" default:"1"`
	// PauseHintBatches emits a collection-pause hint every N chunks.
	PauseHintBatches int `mapstructure:"pause_hint_batches" default:"10"`
}

func (c Config) timeout() time.Duration {
	if c.TimeoutMillis <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c Config) chunkSize() int {
	size := c.BatchSize
	if size <= 0 {
		size = 100
	}
	if c.MaxBatchSize > 0 && size > c.MaxBatchSize {
		size = c.MaxBatchSize
	}
	return size
}

func (c Config) concurrency() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}
