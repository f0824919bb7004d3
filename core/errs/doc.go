// Package errs defines the typed error model for the sync pipeline.
//
// Every error raised inside booksync carries an explicit Kind (input,
// record, transient, fatal) and a stable Code. Callers branch on the kind
// via KindOf/IsFatal/IsRetryable instead of matching message substrings.
//
// # Kinds
//
//   - input: bad caller arguments, surfaced immediately, never retried
//   - record: per-record validation failures, collected into the outcome
//   - transient: operational failures, retried with backoff
//   - fatal: system failures, always re-raised, never downgraded
//
// Errors from external collaborators (database drivers, the storage SDK)
// arrive untyped; they default to transient so the retry layer can handle
// them, while anything known to be unrecoverable is wrapped with Fatal at
// the raise site.
package errs
