package alarm

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/sentry-core/internal/device"
	"github.com/nerrad567/sentry-core/internal/event"
)

// fakeClock is a manually advanced Clock. Advance moves time forward
// and runs every timer that came due, in registration order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	// Callbacks run without the clock lock so they can create timers.
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// testDB creates a temporary SQLite database with the device and event
// tables applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "alarm-test-*.db")
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

// testEnv bundles a fully wired Service over a temp database with a
// fake clock and one armed, active seed device.
type testEnv struct {
	service *Service
	devices device.Repository
	events  event.Repository
	clock   *fakeClock
	device  *device.Device
}

const (
	testDeviceKey = "device_key_123"
	testPIN       = "0000"
	testChangeKey = "ck-secret"
	testRearm     = 300 * time.Second
)

func newTestEnv(t *testing.T, ruleSet string) *testEnv {
	t.Helper()

	db := testDB(t)
	devices := device.NewSQLiteRepository(db)
	events := event.NewSQLiteRepository(db)

	clock := newFakeClock(time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))

	rules, err := NewRuleSet(ruleSet, 60*time.Second, events)
	if err != nil {
		t.Fatalf("NewRuleSet(%s) error = %v", ruleSet, err)
	}

	d := &device.Device{
		Key:       testDeviceKey,
		Name:      "Front Door",
		PIN:       testPIN,
		ChangeKey: testChangeKey,
		Active:    true,
		Armed:     true,
	}
	if err := devices.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	service := NewService(devices, events, rules, NewGate(nil), Options{
		RearmDelay: testRearm,
		Clock:      clock,
	})
	t.Cleanup(service.Shutdown)

	return &testEnv{
		service: service,
		devices: devices,
		events:  events,
		clock:   clock,
		device:  d,
	}
}

// countEvents returns how many events of the category (and optional
// detail) the device has logged.
func (env *testEnv) countEvents(t *testing.T, category event.Category, detail string) int {
	t.Helper()
	events, err := env.events.List(context.Background(), event.Filter{
		DeviceID:   env.device.ID,
		Categories: []event.Category{category},
		Limit:      500,
	})
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if detail == "" {
		return len(events)
	}
	n := 0
	for _, e := range events {
		if e.Detail == detail {
			n++
		}
	}
	return n
}

// reload fetches the current device row.
func (env *testEnv) reload(t *testing.T) *device.Device {
	t.Helper()
	d, err := env.devices.GetByID(context.Background(), env.device.ID)
	if err != nil {
		t.Fatalf("reloading device: %v", err)
	}
	return d
}
