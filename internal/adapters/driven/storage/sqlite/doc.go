// Package sqlite provides the SQLite-backed item and scheduler stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database file serves both stores:
//
//   - ItemStore: discovered items, stored as their JSON encoding, plus an
//     alias index resolving merged near-duplicates
//   - SchedulerStore: scheduled task state and run history
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.mosaic/data/items.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The database runs in WAL
// mode and every transaction takes the write lock when it begins, so an
// upsert's read-merge-write cannot interleave with another writer.
package sqlite
