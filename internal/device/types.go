package device

import (
	"regexp"
	"time"
)

// Device represents one physical security unit: a door/window sensor
// paired with a motion/sound sensor, reporting through a shared key.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Key  string `json:"key"` // opaque unique key, externally assigned
	Name string `json:"name"`

	// Secrets. PIN is always exactly 4 digits; the change key is a
	// device-bound secret required to alter PIN or alarm state.
	// Stored and compared in plaintext to match the deployed device
	// firmware; see alarm.SecretComparer for the hardening seam.
	PIN       string `json:"-"`
	ChangeKey string `json:"-"`

	// State
	Active bool `json:"active"`
	Armed  bool `json:"armed"`

	// Trigger-event markers: last-seen timestamps used as input to
	// time-window correlation. Nil until the first matching event.
	LastAccelAt *time.Time `json:"last_accel_at,omitempty"`
	LastSoundAt *time.Time `json:"last_sound_at,omitempty"`

	// Ownership. Devices are provisioned unclaimed and later claimed
	// by exactly zero or one account.
	OwnerID *string `json:"owner_id,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TriggerKind identifies a trigger-event marker on a device.
type TriggerKind string

const (
	// TriggerDoor is the door/window opening marker (accel sensor).
	TriggerDoor TriggerKind = "door"

	// TriggerMotion is the motion/sound marker (sound sensor).
	TriggerMotion TriggerKind = "motion"
)

// pinPattern matches exactly four ASCII digits.
var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// IsValidPIN reports whether the candidate is a well-formed device PIN
// (exactly 4 digits).
func IsValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// Validate checks the invariants a device row must satisfy before it is
// written: non-empty key, 4-digit PIN, non-empty change key.
func (d *Device) Validate() error {
	if d.Key == "" {
		return ErrInvalidKey
	}
	if !IsValidPIN(d.PIN) {
		return ErrInvalidPIN
	}
	if d.ChangeKey == "" {
		return ErrInvalidChangeKey
	}
	return nil
}
