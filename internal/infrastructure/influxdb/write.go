package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sentry-core/internal/event"
)

// securityMeasurement is the measurement every mirrored event lands in.
const securityMeasurement = "security_events"

// WriteEvent mirrors one device event into the time-series bucket.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Device ID and category are tags (low cardinality, both are bounded
// sets); the event ID and detail go in as fields. The point keeps the
// event's own timestamp, so late-arriving device reports land at their
// reported time.
//
// WriteEvent satisfies the alarm engine's EventSink interface.
func (c *Client) WriteEvent(e event.Event) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"event_id": e.ID,
		"count":    int64(1),
	}
	if e.Detail != "" {
		fields["detail"] = e.Detail
	}

	point := write.NewPoint(
		securityMeasurement,
		map[string]string{
			"device_id": e.DeviceID,
			"category":  string(e.Category),
		},
		fields,
		e.Timestamp,
	)

	c.writeAPI.WritePoint(point)
}
