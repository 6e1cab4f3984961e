// Package logging provides structured logging for Nebula Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service and the cobot peer.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "nebula", "1.0.0")
//	logger.Info("starting service", "port", 8000)
//	logger.Component("dispatch").Warn("delivery failed", "robot_id", id, "error", err)
//
// # Security
//
// Never log broker passwords or tokens. Robot configs are logged by id only.
package logging
