package sync

import "time"

// Config holds configuration for the sync feature.
type Config struct {
	// Enabled controls whether the sync routes are loaded.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// DefaultStrategy is used when a request names none.
	DefaultStrategy string `mapstructure:"default_strategy" default:"MERGE"`
	// DefaultConflictStrategy resolves conflicts when a request names none.
	DefaultConflictStrategy string `mapstructure:"default_conflict_strategy" default:"keep_latest"`
	// ConflictHistorySize bounds the resolution audit ring.
	ConflictHistorySize int `mapstructure:"conflict_history_size" default:"100"`
	// JobRetentionMinutes keeps finished jobs queryable this long.
	JobRetentionMinutes int `mapstructure:"job_retention_minutes" default:"60"`
	// SweepIntervalMinutes is how often finished jobs are swept.
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" default:"5"`
}

func (c Config) JobRetention() time.Duration {
	if c.JobRetentionMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.JobRetentionMinutes) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	if c.SweepIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}
