// Package compare diffs two book collections into a change set.
//
// The engine indexes the target by id, walks the source in order, and
// partitions records into added/modified/deleted/unchanged. Modified
// entries carry per-field changes with a type (ADDED, REMOVED,
// TYPE_CHANGED, VALUE_CHANGED) and a severity: progress severity follows
// the delta magnitude, title severity a normalized Levenshtein
// similarity. Large inputs can be processed in fixed-size chunks with
// per-chunk timings aggregated into the summary.
package compare
