// Package validate normalizes and validates raw platform records.
//
// The pipeline has six phases, in order: pre-fixes (whitespace cleanup,
// author hoisting, progress container mapping), required-field checks,
// type checks with the relaxed author rule, business-rule range checks,
// quality checks producing non-fatal warnings, and post-fixes (ISBN
// stripping, progress clamping).
//
// A record is valid iff no error was raised; warnings never flip
// validity. Outcomes are immutable and cached by (platform, content hash)
// with a TTL; entries leave the cache on expiry or explicit clear only.
//
// ValidateBatch chunks its input to bound memory, runs chunks with a
// configurable concurrency limit while keeping results in input order,
// and races the whole run against a wall-clock timeout. A timed-out run
// is abandoned, never partially committed.
package validate
