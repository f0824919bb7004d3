// Package jobs tracks long-running sync and validation operations
// through an explicit state machine. Pending jobs start, report
// progress, and end completed, failed, or cancelled; cancellation is
// cooperative through the job context and undoes partial work with a
// registered rollback. Failed jobs carry a retryability classification
// derived from the error kind, and finished jobs are swept after a
// retention window.
package jobs
