// Package logging provides structured logging for Sentry Core.
//
// It wraps log/slog with configuration-driven output format and level
// selection, and stamps every record with default service/version fields.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("device armed", "device_key", key)
package logging
