// Package sync orchestrates the full reconciliation pipeline. One sync
// run validates raw platform records, diffs them against the stored
// library, resolves conflicts with a named strategy, and applies the
// resulting change set, all tracked as a cancellable background job.
//
// The HTTP surface exposes starting and validating runs, job inspection
// and lifecycle control, and cache management.
package sync
