// Package device defines the security device model and its SQLite
// persistence.
//
// A device is a physical unit combining a door/window (accel) sensor and
// a motion/sound sensor. The repository owns the device row: identity,
// secrets (PIN and change key), armed/active state, trigger-event
// markers used by the correlation engine, and ownership.
//
// State transitions on the armed flag are driven exclusively by the
// alarm package; this package only persists them.
package device
