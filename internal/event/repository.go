package event

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// List pagination limits.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Repository defines the interface for the append-only event log.
// The repository exclusively owns the append path; events are never
// updated or deleted.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
	Latest(ctx context.Context, deviceID string, category Category, since time.Time) (*Event, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append durably writes a new event. The ID is generated if empty, and
// the timestamp defaults to now. The insertion sequence is assigned by
// the database and copied back onto the event.
func (r *SQLiteRepository) Append(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()[:8]
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO device_events (id, device_id, category, timestamp, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, string(e.Category), e.Timestamp.UnixNano(),
		nullableString(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	e.Seq, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
	return nil
}

// List returns events matching the filter, most recent first. Ordering
// is by timestamp descending with insertion sequence breaking ties, so
// two events sharing a timestamp come back in reverse insertion order.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.DeviceID == "" {
		return nil, fmt.Errorf("listing events: device id is required")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"device_id = ?"}
	args := []any{filter.DeviceID}

	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			placeholders[i] = "?"
			args = append(args, string(c))
		}
		conditions = append(conditions, "category IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.To.UnixNano())
	}

	// WHERE clause is built from parameterised conditions (? placeholders) — no user input in SQL string.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT seq, id, device_id, category, timestamp, detail FROM device_events WHERE %s ORDER BY timestamp DESC, seq DESC LIMIT ? OFFSET ?",
		strings.Join(conditions, " AND "),
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var category string
		var nanos int64
		var detail sql.NullString

		if err := rows.Scan(&e.Seq, &e.ID, &e.DeviceID, &category, &nanos, &detail); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Category = Category(category)
		e.Timestamp = time.Unix(0, nanos).UTC()
		if detail.Valid {
			e.Detail = detail.String
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// Latest returns the most recent event of the given category for the
// device with timestamp >= since, or nil if there is none. Used by the
// move_danger rule set's window checks.
func (r *SQLiteRepository) Latest(ctx context.Context, deviceID string, category Category, since time.Time) (*Event, error) {
	events, err := r.List(ctx, Filter{
		DeviceID:   deviceID,
		Categories: []Category{category},
		From:       since,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
