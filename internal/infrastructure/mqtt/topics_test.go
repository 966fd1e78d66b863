package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	if got := topics.EventReport("device_key_123"); got != "sentry/event/device_key_123" {
		t.Errorf("EventReport() = %q", got)
	}
	if got := topics.AllEventReports(); got != "sentry/event/+" {
		t.Errorf("AllEventReports() = %q", got)
	}
	if got := topics.SystemStatus(); got != "sentry/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
}

func TestDeviceKeyFromEventTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantKey string
		wantOK  bool
	}{
		{"sentry/event/device_key_123", "device_key_123", true},
		{"sentry/event/", "", false},
		{"sentry/event/a/b", "", false},
		{"sentry/system/status", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		key, ok := DeviceKeyFromEventTopic(tt.topic)
		if key != tt.wantKey || ok != tt.wantOK {
			t.Errorf("DeviceKeyFromEventTopic(%q) = %q, %v; want %q, %v",
				tt.topic, key, ok, tt.wantKey, tt.wantOK)
		}
	}
}
