// Package apply writes comparison change sets to a sync target using
// one of three strategies: merge, overwrite, or append. Writes go out
// in fixed-size batches with capped exponential backoff on transient
// failures, and cancellation is honored between batches so completed
// work is never rolled back mid-run.
package apply
