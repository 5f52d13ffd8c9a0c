// Package store provides SQLite-backed storage for graph contexts and
// evaluation run records.
//
// Contexts are stored as their canonical JSON serialization and keyed by
// the context hash, so writing the same context twice is a no-op. Runs
// reference the context they evaluated and record output value hashes,
// never values: a run log must not leak plaintext results or shares.
//
// All listings are ordered by an insertion sequence number, never by wall
// time:
//
//	ORDER BY seq ASC, id COLLATE BINARY ASC
//
// # Run log schema
//
// Open creates the contexts and eval_runs tables and then applies the
// numbered migrations that index them; PRAGMA user_version holds the
// last one applied. A log stamped with a newer version than SchemaVersion
// is refused. The connection runs in WAL mode with foreign keys enforced,
// so a run can never name a context the log does not hold.
package store
