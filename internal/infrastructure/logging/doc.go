// Package logging provides structured logging for SkyLink Relay.
//
// This package wraps the standard library's log/slog with:
//   - Configuration-driven format (JSON/text), level, and destination
//   - Default service/version attributes on every record
//   - A Default() logger usable before configuration is loaded
//
// Every link adapter accepts a narrow Logger interface rather than this
// concrete type, so tests can substitute their own recorders and the
// adapters stay decoupled from the logging setup.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("relay started", "lte_port", cfg.LTE.RxPort)
package logging
