package event

import "time"

// Category classifies a device event. The set is closed: business logic
// branches on it, so unknown categories are rejected at ingestion.
type Category string

// Raw sensor categories. Wire categories ("accel", "sound", "move") are
// translated on ingestion so raw telemetry is distinguishable from
// higher-level semantics in the log.
const (
	// CategoryAccelOpen records a door/window opening (accel sensor).
	CategoryAccelOpen Category = "accel_open"

	// CategorySoundEnter records motion/sound in the protected space.
	CategorySoundEnter Category = "sound_enter"

	// CategoryMove is the legacy movement category used by the
	// move_danger rule set.
	CategoryMove Category = "move"
)

// Derived categories, synthesised by the correlation engine.
const (
	// CategoryIntrusionDetected is derived when motion follows a door
	// opening inside the correlation window on an armed device.
	CategoryIntrusionDetected Category = "intrusion_detected"

	// CategoryDanger is the legacy derived category of the move_danger
	// rule set.
	CategoryDanger Category = "danger"
)

// Administrative categories, appended on state transitions.
const (
	CategoryPinCheck  Category = "pin_check"
	CategoryPinChange Category = "pin_change"
	CategoryAlarmOn   Category = "alarm_on"
	CategoryAlarmOff  Category = "alarm_off"
)

// FromWire maps a category as reported by device firmware to its stored
// raw category. Canonical stored names are accepted as-is. Derived and
// administrative categories are not reportable and map to false.
func FromWire(s string) (Category, bool) {
	switch s {
	case "accel", string(CategoryAccelOpen):
		return CategoryAccelOpen, true
	case "sound", string(CategorySoundEnter):
		return CategorySoundEnter, true
	case string(CategoryMove):
		return CategoryMove, true
	default:
		return "", false
	}
}

// Event is an immutable fact about a device. Events are created once on
// ingestion or on a state transition and never mutated or deleted.
type Event struct {
	// Seq is the insertion sequence, used to break timestamp ties.
	Seq int64 `json:"-"`

	ID       string   `json:"id"`
	DeviceID string   `json:"device_id"`
	Category Category `json:"category"`

	// Timestamp is caller-supplied or ingestion time, at nanosecond
	// precision.
	Timestamp time.Time `json:"timestamp"`

	// Detail is optional free-text context (e.g. the audit outcome of
	// a PIN check, or the acting identity of a toggle).
	Detail string `json:"detail,omitempty"`
}

// Filter controls which events List returns.
type Filter struct {
	DeviceID   string     // required: events belong to exactly one device
	Categories []Category // optional: restrict to these categories
	From       time.Time  // optional: inclusive lower bound (zero = unbounded)
	To         time.Time  // optional: inclusive upper bound (zero = unbounded)
	Limit      int        // default 50, max 500
	Offset     int        // pagination offset
}
