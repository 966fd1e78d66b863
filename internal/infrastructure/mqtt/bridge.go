package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/sentry-core/internal/infrastructure/config"
)

// IngestFunc delivers one device-reported event to the alarm engine.
// The timestamp is zero when the device did not supply one.
type IngestFunc func(ctx context.Context, deviceKey, category string, ts time.Time) error

// eventPayload is the JSON body devices publish to sentry/event/{key}.
type eventPayload struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp,omitempty"` // RFC3339, optional
}

// ingestTimeout bounds how long one bridged event may take end to end.
const ingestTimeout = 10 * time.Second

// Bridge subscribes to the device event topics and feeds reports into
// the alarm engine. Malformed payloads and rejected events are logged
// by the client's handler wrapper and dropped; MQTT delivery is not
// retried for application-level failures.
type Bridge struct {
	client *Client
	qos    byte
	ingest IngestFunc
}

// NewBridge creates the sensor ingestion bridge.
func NewBridge(client *Client, cfg config.MQTTConfig, ingest IngestFunc) *Bridge {
	return &Bridge{
		client: client,
		qos:    byte(cfg.QoS),
		ingest: ingest,
	}
}

// Start subscribes to all device event topics.
func (b *Bridge) Start() error {
	return b.client.Subscribe(Topics{}.AllEventReports(), b.qos, b.handleEvent)
}

// Stop removes the event subscription.
func (b *Bridge) Stop() error {
	return b.client.Unsubscribe(Topics{}.AllEventReports())
}

// handleEvent parses one device report and hands it to the alarm engine.
func (b *Bridge) handleEvent(topic string, payload []byte) error {
	deviceKey, ok := DeviceKeyFromEventTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected event topic %q", topic)
	}

	var msg eventPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing event payload: %w", err)
	}
	if msg.Category == "" {
		return fmt.Errorf("event payload missing category")
	}

	var ts time.Time
	if msg.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("parsing event timestamp: %w", err)
		}
		ts = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if err := b.ingest(ctx, deviceKey, msg.Category, ts); err != nil {
		return fmt.Errorf("ingesting event from %s: %w", deviceKey, err)
	}
	return nil
}
