// Package store provides SQLite-backed persistence for the scheduling core.
//
// One database file holds three logical stores:
//   - AlertStore: scheduled alert entries keyed by (event, alert time, instance start)
//   - CadenceStore: reminder re-fire counters, one row per subject
//   - PresenceStore: the cached device-presence silence
//
// Each logical store owns its own mutex. Every read-modify-write sequence on a
// store runs while holding that store's mutex, so concurrent callers of the
// same store are serialized while callers of different stores never wait on
// each other in-process.
//
// Storage failures are logged and reported to callers as "not found" or
// "not applied" rather than returned, so a broken database degrades to alerts
// not firing instead of crashing the caller.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - _txlock=immediate: Transactions take the write lock up front
//
// Timestamps are stored as Unix milliseconds.
package store
