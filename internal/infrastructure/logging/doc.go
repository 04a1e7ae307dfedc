// Package logging provides structured logging for harmony-api.
//
// It wraps log/slog so every component logs with the same handler,
// level and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	hubLog := logger.Component("hub")
//	hubLog.Info("session started", "hub", "living-room")
//
// Common attribute keys are hub, activity, device, command, topic and error.
// Never log MQTT passwords or InfluxDB tokens.
package logging
