package relay

import (
	"fmt"
	"sync"
)

// Logger is the narrow logging interface the relay depends on.
// Compatible with logging.Logger and slog.Logger. May be nil.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LTELink is the slice of the LTE link the relay needs.
type LTELink interface {
	SetOnMessage(fn func(payload []byte))
	Send(payload []byte) error
	Start() error
	Stop()
}

// IridiumLink is the slice of the Iridium link the relay needs.
type IridiumLink interface {
	SetOnMessage(fn func(payload []byte))
	Send(payload []byte, seq uint64) (string, error)
	Start() error
	Stop()
}

// BrokerLink is the slice of the broker link the relay needs.
type BrokerLink interface {
	SetOnLTE(fn func(payload []byte))
	SetOnSatCom(fn func(payload []byte, seq uint64))
	PublishLTE(payload []byte) error
	PublishSatCom(payload []byte) error
	Start() error
	Stop()
}

// Relay wires the three links into four one-way routes:
//
//	LTE inbound      → broker LTE publish       (aircraft → ground)
//	Iridium inbound  → broker SatCom publish    (aircraft → ground)
//	broker LTE       → LTE send                 (ground → aircraft)
//	broker SatCom    → Iridium send             (ground → aircraft)
//
// The relay itself holds no message state: each route is a callback
// forwarding one payload. Routes are isolated from each other; a failing
// or panicking route logs and drops its payload without disturbing
// traffic on the other three.
type Relay struct {
	lte     LTELink
	iridium IridiumLink
	broker  BrokerLink

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a relay and wires the four routes. The links are not
// started; call Start().
func New(lteLink LTELink, iridiumLink IridiumLink, brokerLink BrokerLink) *Relay {
	r := &Relay{
		lte:     lteLink,
		iridium: iridiumLink,
		broker:  brokerLink,
	}
	r.wire()
	return r
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// wire registers the four route callbacks. Wiring happens before any link
// starts, so no early message can arrive without a handler.
func (r *Relay) wire() {
	r.lte.SetOnMessage(r.route("lte_to_ground", func(payload []byte) error {
		return r.broker.PublishLTE(payload)
	}))

	r.iridium.SetOnMessage(r.route("satcom_to_ground", func(payload []byte) error {
		return r.broker.PublishSatCom(payload)
	}))

	r.broker.SetOnLTE(r.route("ground_to_lte", func(payload []byte) error {
		return r.lte.Send(payload)
	}))

	r.broker.SetOnSatCom(func(payload []byte, seq uint64) {
		r.route("ground_to_satcom", func(p []byte) error {
			id, err := r.iridium.Send(p, seq)
			if err != nil {
				return err
			}
			r.logInfo("queued ground command for satellite delivery",
				"id", id, "seq", seq)
			return nil
		})(payload)
	})
}

// route wraps one forwarding function with failure isolation: errors are
// logged and the payload dropped; a panic in a downstream link is
// contained to the one message that triggered it.
func (r *Relay) route(name string, fn func(payload []byte) error) func(payload []byte) {
	return func(payload []byte) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logError("route panicked, payload dropped",
					"route", name, "panic", fmt.Sprint(rec))
			}
		}()

		if err := fn(payload); err != nil {
			r.logWarn("route failed, payload dropped",
				"route", name, "bytes", len(payload), "error", err)
		}
	}
}

// Start brings the links up: radio sides first (LTE, then Iridium), the
// broker last, so no ground command can arrive before its radio link
// exists. A failure stops whatever already started, in reverse.
//
// Returns:
//   - error: The first link start failure
func (r *Relay) Start() error {
	if err := r.lte.Start(); err != nil {
		return fmt.Errorf("starting LTE link: %w", err)
	}
	if err := r.iridium.Start(); err != nil {
		r.lte.Stop()
		return fmt.Errorf("starting Iridium link: %w", err)
	}
	if err := r.broker.Start(); err != nil {
		r.iridium.Stop()
		r.lte.Stop()
		return fmt.Errorf("starting broker link: %w", err)
	}

	r.logInfo("relay started")
	return nil
}

// Stop brings the links down in reverse start order: broker first so no
// new ground commands arrive, then the radio links.
func (r *Relay) Stop() {
	r.broker.Stop()
	r.iridium.Stop()
	r.lte.Stop()
	r.logInfo("relay stopped")
}

// logDebug logs a debug message if a logger is set.
func (r *Relay) logDebug(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (r *Relay) logInfo(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if a logger is set.
func (r *Relay) logWarn(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error if a logger is set.
func (r *Relay) logError(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
