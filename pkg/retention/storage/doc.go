// Package storage provides the persistence backends for the retention
// engine: retention processes, alerts, and the append-only audit chain.
//
// Two backends exist. SQLiteStore is the production backend, selectable
// between the cgo driver (mattn/go-sqlite3) and the pure-Go driver
// (modernc.org/sqlite). MemoryStore backs tests.
//
// The Store interface encodes two structural guarantees:
//
//   - Audit entries are append-only. The interface exposes no update or
//     delete for them, so no code path can rewrite history.
//   - A process mutation and its audit entry are applied atomically, along
//     with any alerts raised by the same decision. ApplyChange performs an
//     optimistic version check on the process row and fails with
//     VersionConflict when the row moved, so concurrent operations on the
//     same process serialize without a global lock.
package storage
