// Package records provides the persistence layer for attachment records.
//
// # Overview
//
// The package defines a Repository interface for CRUD and query operations on
// Attachment models (see models) plus the maintenance operations the syncing
// service relies on: FIFO retrieval of actionable records, retention-bounded
// deletion of archived records, and a polling change stream over the active
// set. A SQLite-backed implementation (SQLiteRepository) persists data using
// a dbx.DBTX (either *sql.DB or *sql.Tx).
//
// # Data Model
//
// Each record stores the filename, lifecycle state, last-touched timestamp in
// milliseconds, and the optional local path, media type, size, has-synced
// flag and opaque metadata. The table is local-only; it is never synced to a
// server.
//
// # Concurrency
//
// The engine serializes all record mutation through a single sqlite
// connection (see Open). When bound to a *sql.Tx via WithTx, normal
// transaction scoping rules apply and UpsertAll joins the outer transaction
// instead of opening its own.
//
// Key Types
//
//   - type Repository        — interface used by the queue and syncing service
//   - type SQLiteRepository  — SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	db, _ := records.Open(ctx, "attachments.db")
//	repo := records.NewSQLiteRepository(db)
//	_, _ = repo.Upsert(ctx, att)
//	active, _ := repo.GetActive(ctx)
package records
