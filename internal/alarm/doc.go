// Package alarm implements the alarm engine: credential-gated arm and
// disarm, raw event ingestion with time-window correlation into derived
// alerts, and automatic re-arm after a disarm.
//
// The Service serializes every state-changing operation per device, so
// concurrent requests against one device observe each other's writes.
// Armed state only changes through Toggle or a scheduler fire; ingestion
// never changes it.
package alarm
