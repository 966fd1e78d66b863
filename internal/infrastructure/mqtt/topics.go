package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Sentry MQTT hierarchy.
//
// Devices publish raw sensor reports to sentry/event/{device_key};
// the backend announces its own liveness on sentry/system/status.
const (
	// TopicPrefixEvent is the base for device event reports.
	TopicPrefixEvent = "sentry/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "sentry/system"
)

// Topics provides builders for Sentry MQTT topics. Using these helpers
// keeps topic naming consistent across the codebase.
type Topics struct{}

// EventReport returns the topic a device publishes its sensor reports on.
//
// Example: sentry/event/device_key_123
func (Topics) EventReport(deviceKey string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, deviceKey)
}

// AllEventReports returns the wildcard subscription matching every
// device's event topic.
func (Topics) AllEventReports() string {
	return TopicPrefixEvent + "/+"
}

// SystemStatus returns the backend liveness topic (retained, LWT).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceKeyFromEventTopic extracts the device key from an event report
// topic. Returns false if the topic is not an event report.
func DeviceKeyFromEventTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixEvent+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
