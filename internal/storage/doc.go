// Package storage persists scheduler state under a closed set of keys.
//
// Values are stored as JSON. Three drivers are available:
//   - "memory": process-local map, used by tests and dry runs
//   - "file": single JSON snapshot, rewritten atomically on every change
//   - "sqlite": key/value table in a SQLite database (modernc, WAL mode)
package storage
