// Package mqtt provides the MQTT client wrapper and the sensor
// ingestion bridge.
//
// Devices publish raw sensor reports as JSON to sentry/event/{device_key};
// the bridge parses them and hands them to the alarm engine. The backend
// announces its own liveness on sentry/system/status with a retained
// message and an LWT for crash detection.
//
// The client wraps paho.mqtt.golang with automatic reconnection,
// subscription restoration, and panic-recovering message handlers.
package mqtt
