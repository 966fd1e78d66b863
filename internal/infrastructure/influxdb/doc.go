// Package influxdb provides the optional event mirror into an InfluxDB
// v2 bucket.
//
// Every appended device event is written as a point in the
// security_events measurement, tagged by device and category, keeping
// the event's own timestamp. SQLite remains the source of truth; the
// mirror exists for dashboards and long-range trend queries.
package influxdb
