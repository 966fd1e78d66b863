package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/sentry-core/internal/alarm"
	"github.com/nerrad567/sentry-core/internal/auth"
	"github.com/nerrad567/sentry-core/internal/device"
	"github.com/nerrad567/sentry-core/internal/event"
	"github.com/nerrad567/sentry-core/internal/infrastructure/config"
	"github.com/nerrad567/sentry-core/internal/infrastructure/logging"
)

const (
	testSecret    = "test-secret-0123456789abcdef-0123456789abcdef"
	testDeviceKey = "device_key_123"
	testPIN       = "0000"
	testChangeKey = "ck-secret"
	testPassword  = "correct-horse-battery"
)

// testDB creates a temporary SQLite database with the full schema.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
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
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE device_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			device_id TEXT NOT NULL,
			category TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			detail TEXT
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// apiEnv bundles a wired API server over a temp database.
type apiEnv struct {
	server  *Server
	router  http.Handler
	users   auth.UserRepository
	devices device.Repository
	events  event.Repository
	alarm   *alarm.Service
}

// newTestEnv builds a server with real repositories and a real alarm
// service. The re-arm delay is long enough that wall-clock timers never
// fire during a test run.
func newTestEnv(t *testing.T) *apiEnv {
	t.Helper()

	db := testDB(t)
	users := auth.NewUserRepository(db)
	devices := device.NewSQLiteRepository(db)
	events := event.NewSQLiteRepository(db)

	rules, err := alarm.NewRuleSet(alarm.RuleSetDoorMotion, 60*time.Second, events)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	svc := alarm.NewService(devices, events, rules, alarm.NewGate(nil), alarm.Options{
		RearmDelay: time.Hour,
	})
	t.Cleanup(svc.Shutdown)

	logger := logging.Default()
	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 8080},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 30},
		},
		Logger:  logger,
		Alarm:   svc,
		Devices: devices,
		Events:  events,
		Users:   users,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.hub = NewHub(srv.wsCfg, logger)

	return &apiEnv{
		server:  srv,
		router:  srv.buildRouter(),
		users:   users,
		devices: devices,
		events:  events,
		alarm:   svc,
	}
}

// createUser inserts an account and returns it with a valid access token.
func (env *apiEnv) createUser(t *testing.T, username string, role auth.Role) (*auth.User, string) {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &auth.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}

	token, err := auth.GenerateAccessToken(user, testSecret, 30)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return user, token
}

// seedDevice inserts an active, armed device, optionally claimed.
func (env *apiEnv) seedDevice(t *testing.T, key string, ownerID *string) *device.Device {
	t.Helper()

	d := &device.Device{
		Key:       key,
		Name:      "Front Door",
		PIN:       testPIN,
		ChangeKey: testChangeKey,
		Active:    true,
		Armed:     true,
		OwnerID:   ownerID,
	}
	if err := env.devices.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
	return d
}

// do performs a request against the router and returns the recorder.
// A non-nil body is JSON-encoded; a non-empty token becomes a Bearer header.
func (env *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the recorded response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}
