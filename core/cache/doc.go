// Package cache provides the partitioned TTL cache behind validation and
// conflict resolution.
//
// Entries live in logical partitions (validation outcomes, normalized
// records, platform rules), each independently bounded by the configured
// size. When a partition is full, one victim is evicted by policy:
//
//   - lru: least recently accessed
//   - lfu: lowest access count
//   - ttl: soonest expiry
//
// Payloads are stored as JSON, so every read and write is a deep copy and
// cached state can never be mutated through a caller's reference.
//
// # Persistent tier
//
// With cache.persistent enabled, entries are mirrored into a key-value
// store backed by object storage. A failing store is logged and ignored:
// the cache degrades to memory-only rather than failing a sync run.
//
// GetOrCompute shares one computation between concurrent callers of the
// same key using singleflight, the same stampede protection the compare
// engine relies on for its snapshots.
package cache
