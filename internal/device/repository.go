package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByKey(ctx context.Context, key string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)
	Claim(ctx context.Context, key, ownerID string) (*Device, error)
	SetArmed(ctx context.Context, id string, armed bool) error
	UpdatePIN(ctx context.Context, id, pin string) error
	SetTriggerMarker(ctx context.Context, id string, kind TriggerKind, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "id, device_key, name, pin, change_key, is_active, armed, last_accel_at, last_sound_at, owner_id, created_at, updated_at"

// Create inserts a new device. The ID is generated if empty.
// New devices start active and armed unless explicitly set otherwise
// by the caller before Create.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = "dev-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, device_key, name, pin, change_key, is_active, armed, last_accel_at, last_sound_at, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Key, d.Name, d.PIN, d.ChangeKey,
		boolToInt(d.Active), boolToInt(d.Armed),
		nullableNanos(d.LastAccelAt), nullableNanos(d.LastSoundAt),
		nullableString(d.OwnerID),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("creating device: %w", err)
	}

	return nil
}

// GetByID retrieves a device by its internal ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	return r.getDevice(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
}

// GetByKey retrieves a device by its externally assigned unique key.
func (r *SQLiteRepository) GetByKey(ctx context.Context, key string) (*Device, error) {
	return r.getDevice(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE device_key = ?", key)
}

// List returns all devices ordered by creation date.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.listDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY created_at ASC, id ASC")
}

// ListByOwner returns the devices claimed by the given account.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	return r.listDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE owner_id = ? ORDER BY created_at ASC, id ASC", ownerID)
}

// Claim assigns ownership of a provisioned device to an account.
// Claiming a key that does not exist is an error (devices are never
// created through the claim path). Claiming a device you already own is
// a no-op; claiming a device owned by another account fails.
func (r *SQLiteRepository) Claim(ctx context.Context, key, ownerID string) (*Device, error) {
	d, err := r.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if d.OwnerID != nil {
		if *d.OwnerID == ownerID {
			return d, nil
		}
		return nil, ErrExists
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET owner_id = ?, updated_at = ? WHERE device_key = ? AND owner_id IS NULL`,
		ownerID, now, key,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming device: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		// Lost a race with another claimer.
		return nil, ErrExists
	}

	return r.GetByKey(ctx, key)
}

// SetArmed updates the armed flag.
func (r *SQLiteRepository) SetArmed(ctx context.Context, id string, armed bool) error {
	return r.updateField(ctx, id, "armed = ?", boolToInt(armed))
}

// UpdatePIN changes the stored PIN. The candidate must be exactly 4 digits.
func (r *SQLiteRepository) UpdatePIN(ctx context.Context, id, pin string) error {
	if !IsValidPIN(pin) {
		return ErrInvalidPIN
	}
	return r.updateField(ctx, id, "pin = ?", pin)
}

// SetTriggerMarker updates the last-seen timestamp for a trigger-event
// category. Markers are stored at nanosecond precision: the correlation
// window boundary is evaluated at sub-second resolution.
func (r *SQLiteRepository) SetTriggerMarker(ctx context.Context, id string, kind TriggerKind, at time.Time) error {
	var column string
	switch kind {
	case TriggerDoor:
		column = "last_accel_at"
	case TriggerMotion:
		column = "last_sound_at"
	default:
		return ErrInvalidTrigger
	}
	return r.updateField(ctx, id, column+" = ?", at.UnixNano())
}

// SetActive enables or disables the device for all operations.
func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateField(ctx, id, "is_active = ?", boolToInt(active))
}

// Delete removes a device and (via foreign key cascade) its event log.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// updateField applies a single-column update and bumps updated_at.
func (r *SQLiteRepository) updateField(ctx context.Context, id, setClause string, value any) error {
	now := time.Now().UTC().Format(time.RFC3339)

	//nolint:gosec // setClause is a compile-time constant from this file, not user input
	query := fmt.Sprintf("UPDATE devices SET %s, updated_at = ? WHERE id = ?", setClause)
	result, err := r.db.ExecContext(ctx, query, value, now, id)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// getDevice runs a single-row device query.
func (r *SQLiteRepository) getDevice(ctx context.Context, query string, args ...any) (*Device, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// listDevices runs a multi-row device query.
func (r *SQLiteRepository) listDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning code.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device row in deviceColumns order.
func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var isActive, armed int
	var lastAccel, lastSound sql.NullInt64
	var ownerID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.Key, &d.Name, &d.PIN, &d.ChangeKey,
		&isActive, &armed, &lastAccel, &lastSound, &ownerID,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.Active = isActive != 0
	d.Armed = armed != 0

	if lastAccel.Valid {
		t := time.Unix(0, lastAccel.Int64).UTC()
		d.LastAccelAt = &t
	}
	if lastSound.Valid {
		t := time.Unix(0, lastSound.Int64).UTC()
		d.LastSoundAt = &t
	}
	if ownerID.Valid {
		d.OwnerID = &ownerID.String
	}

	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &d, nil
}

// nullableString returns nil for nil/empty strings, for nullable TEXT columns.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// nullableNanos returns nil for nil times, unix nanoseconds otherwise.
func nullableNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// boolToInt converts a bool to SQLite's 0/1 integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether the error is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
