// Package logging provides structured logging for the SteamCity platform.
//
// This package wraps Go's standard log/slog package so that every component
// logs with the same handler, level filtering and default fields.
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 3000)
//	logger.Error("failed to connect", "error", err)
//
// Never log connection strings or tokens.
package logging
