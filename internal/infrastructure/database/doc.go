// Package database provides the SQLite connection and schema migrations
// backing the embedded document store.
//
// The connection is tuned for SQLite's single-writer model: one open
// connection, WAL journaling and a busy timeout. Migrations are plain SQL
// files named YYYYMMDD_HHMMSS_description.up.sql (and an optional .down.sql)
// registered through MigrationsFS by the top-level migrations package.
// Each migration runs in its own transaction and is recorded in the
// schema_migrations table with a checksum of its up script; Migrate refuses
// to continue once an applied script has been edited. Status and Rollback
// back the steamctl migrate command.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/steamcity.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
