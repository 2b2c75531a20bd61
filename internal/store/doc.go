// Package store provides SQLite-backed durable storage for board checkpoints
// and run history.
//
// The store keeps:
//   - Checkpoints: per board, the instant up to which actions were delivered
//   - Runs: one row per finished synchronization run, for operators
//
// # Integrity
//
// A database file that grants write access to others is refused before it is
// opened (*PermissionError, matching ErrInsecurePermissions). New files are
// created with mode 0600.
//
// # Scoped Access
//
// Checkpoints wraps a path and a board id. Each Load, Save and Record call
// opens the file, runs one statement and closes it, so a run never holds the
// database across a network round trip.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
