// Package database provides the SQLite storage layer for Sentry Core.
//
// It wraps database/sql with connection configuration (WAL mode, busy
// timeout, foreign keys), lifecycle management, health checks, and an
// embedded-migration runner.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/sentry.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
