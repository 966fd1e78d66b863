package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/sentry-core/internal/event"
	"github.com/nerrad567/sentry-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect(disabled) error = %v, want ErrDisabled", err)
	}
}

func TestWriteEvent_DisconnectedIsNoOp(t *testing.T) {
	c := &Client{}

	// Must not panic or block; the event is silently dropped.
	c.WriteEvent(event.Event{
		ID:        "evt-12345678",
		DeviceID:  "dev-12345678",
		Category:  event.CategoryIntrusionDetected,
		Timestamp: time.Now(),
	})
}

func TestFlush_DisconnectedIsNoOp(t *testing.T) {
	c := &Client{}
	c.Flush()
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
