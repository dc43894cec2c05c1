// Package cache implements the two-tier fact cache: a process-local
// in-memory tier guarded by a reader/writer lock, and a persistent tier
// storing one JSON file per key in a directory shared across processes.
//
// Key properties:
//   - File writes use write-to-temp-then-rename so concurrent readers see
//     either the old or the new document, never a partial one.
//   - Each get reconciles the two tiers: the in-memory copy is trusted
//     while the backing file's mtime is unchanged; otherwise the copy with
//     the larger stored timestamp wins.
//   - TTL is evaluated on read: -1 never expires, 0 never caches, n > 0 is
//     fresh for n seconds after the entry was stored.
//   - I/O failures and corrupt files degrade to memory-only operation with
//     a once-per-message warning; only validation failures are hard errors.
//
// There is no cross-process lock: two processes writing the same key within
// the same second have an undefined winner, which is acceptable because
// cached facts are idempotent probes of system state.
package cache
