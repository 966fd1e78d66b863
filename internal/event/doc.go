// Package event provides the append-only device event log.
//
// Events are immutable facts: raw sensor reports, derived alerts
// synthesised by the correlation engine, and administrative audit
// entries for PIN and alarm operations. Ordering is by timestamp,
// with insertion order breaking ties.
package event
