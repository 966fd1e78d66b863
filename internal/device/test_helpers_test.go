package device

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the device schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "device-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			device_key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			pin TEXT NOT NULL CHECK (length(pin) = 4),
			change_key TEXT NOT NULL CHECK (length(change_key) > 0),
			is_active INTEGER NOT NULL DEFAULT 1,
			armed INTEGER NOT NULL DEFAULT 1,
			last_accel_at INTEGER,
			last_sound_at INTEGER,
			owner_id TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE SET NULL
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying device schema: %v", err)
	}

	return db
}

// seedTestUser inserts a bare user row and returns its ID.
func seedTestUser(t *testing.T, db *sql.DB, id string) string {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO users (id, username, display_name, password_hash) VALUES (?, ?, ?, 'x')`,
		id, id, id,
	)
	if err != nil {
		t.Fatalf("seeding test user: %v", err)
	}
	return id
}
