package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDevice(key string) *Device {
	return &Device{
		Key:       key,
		Name:      "Device " + key,
		PIN:       "1234",
		ChangeKey: "k1",
		Active:    true,
		Armed:     true,
	}
}

func TestRepository_CreateAndGetByKey(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := newTestDevice("device_key_123")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByKey(ctx, "device_key_123")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}

	if got.ID != d.ID {
		t.Errorf("ID = %q, want %q", got.ID, d.ID)
	}
	if got.PIN != "1234" {
		t.Errorf("PIN = %q, want %q", got.PIN, "1234")
	}
	if got.ChangeKey != "k1" {
		t.Errorf("ChangeKey = %q, want %q", got.ChangeKey, "k1")
	}
	if !got.Armed {
		t.Error("Armed should be true at creation")
	}
	if !got.Active {
		t.Error("Active should be true at creation")
	}
	if got.LastAccelAt != nil || got.LastSoundAt != nil {
		t.Error("trigger markers should be nil at creation")
	}
	if got.OwnerID != nil {
		t.Error("OwnerID should be nil at creation")
	}
}

func TestRepository_CreateDuplicateKey(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newTestDevice("dup")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, newTestDevice("dup"))
	if !errors.Is(err, ErrExists) {
		t.Errorf("Create() error = %v, want ErrExists", err)
	}
}

func TestRepository_CreateInvalidPIN(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	d := newTestDevice("bad-pin")
	d.PIN = "12345"
	err := repo.Create(context.Background(), d)
	if !errors.Is(err, ErrInvalidPIN) {
		t.Errorf("Create() error = %v, want ErrInvalidPIN", err)
	}
}

func TestRepository_GetByKeyNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByKey(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByKey() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_Claim(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	owner := seedTestUser(t, db, "usr-alice")
	other := seedTestUser(t, db, "usr-bob")

	if err := repo.Create(ctx, newTestDevice("claim-me")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Claim(ctx, "claim-me", owner)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if got.OwnerID == nil || *got.OwnerID != owner {
		t.Fatalf("OwnerID = %v, want %q", got.OwnerID, owner)
	}

	// Claiming your own device again is a no-op
	if _, err := repo.Claim(ctx, "claim-me", owner); err != nil {
		t.Errorf("re-Claim() by owner error = %v", err)
	}

	// Claiming someone else's device fails
	if _, err := repo.Claim(ctx, "claim-me", other); !errors.Is(err, ErrExists) {
		t.Errorf("Claim() by other error = %v, want ErrExists", err)
	}

	// Claiming an unknown key never creates a device
	if _, err := repo.Claim(ctx, "ghost", owner); !errors.Is(err, ErrNotFound) {
		t.Errorf("Claim() unknown key error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ListByOwner(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	owner := seedTestUser(t, db, "usr-alice")

	for _, key := range []string{"d1", "d2", "d3"} {
		if err := repo.Create(ctx, newTestDevice(key)); err != nil {
			t.Fatalf("Create(%s) error = %v", key, err)
		}
	}
	if _, err := repo.Claim(ctx, "d1", owner); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if _, err := repo.Claim(ctx, "d3", owner); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	mine, err := repo.ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("ListByOwner() returned %d devices, want 2", len(mine))
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d devices, want 3", len(all))
	}
}

func TestRepository_SetArmed(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := newTestDevice("arm-test")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.SetArmed(ctx, d.ID, false); err != nil {
		t.Fatalf("SetArmed() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, d.ID)
	if got.Armed {
		t.Error("Armed should be false after SetArmed(false)")
	}

	if err := repo.SetArmed(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetArmed() unknown id error = %v, want ErrNotFound", err)
	}
}

func TestRepository_SetTriggerMarker_SubSecondPrecision(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := newTestDevice("marker-test")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 2, 15, 12, 0, 0, 1_000_000, time.UTC) // 1ms past the second
	if err := repo.SetTriggerMarker(ctx, d.ID, TriggerDoor, at); err != nil {
		t.Fatalf("SetTriggerMarker() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, d.ID)
	if got.LastAccelAt == nil {
		t.Fatal("LastAccelAt should be set")
	}
	if !got.LastAccelAt.Equal(at) {
		t.Errorf("LastAccelAt = %v, want %v (sub-second precision must survive storage)", got.LastAccelAt, at)
	}
	if got.LastSoundAt != nil {
		t.Error("LastSoundAt should remain nil")
	}

	if err := repo.SetTriggerMarker(ctx, d.ID, TriggerKind("wind"), at); !errors.Is(err, ErrInvalidTrigger) {
		t.Errorf("SetTriggerMarker() bad kind error = %v, want ErrInvalidTrigger", err)
	}
}

func TestRepository_UpdatePIN(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := newTestDevice("pin-test")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdatePIN(ctx, d.ID, "9999"); err != nil {
		t.Fatalf("UpdatePIN() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, d.ID)
	if got.PIN != "9999" {
		t.Errorf("PIN = %q, want %q", got.PIN, "9999")
	}

	if err := repo.UpdatePIN(ctx, d.ID, "12a4"); !errors.Is(err, ErrInvalidPIN) {
		t.Errorf("UpdatePIN() non-numeric error = %v, want ErrInvalidPIN", err)
	}
}

func TestIsValidPIN(t *testing.T) {
	tests := []struct {
		pin  string
		want bool
	}{
		{"0000", true},
		{"9999", true},
		{"123", false},
		{"12345", false},
		{"12a4", false},
		{"", false},
		{"１２３４", false}, // full-width digits are not ASCII digits
	}

	for _, tt := range tests {
		if got := IsValidPIN(tt.pin); got != tt.want {
			t.Errorf("IsValidPIN(%q) = %v, want %v", tt.pin, got, tt.want)
		}
	}
}
