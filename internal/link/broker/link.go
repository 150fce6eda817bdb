package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/skylink-relay/internal/infrastructure/mqtt"
)

// staleCheckInterval is how often the retained SatCom queue is checked
// for staleness.
const staleCheckInterval = 2500 * time.Millisecond

// Logger is the narrow logging interface the link depends on.
// Compatible with logging.Logger and slog.Logger. May be nil.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the slice of the broker client this link needs.
// Satisfied by mqtt.Client; mocked in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Config holds the settings for the broker link.
type Config struct {
	// QoS is the quality-of-service level for all telemetry traffic.
	QoS byte

	// SilenceTimeout is how long without an aircraft-originated SatCom
	// message before the retained queue is considered stale and cleared.
	SilenceTimeout time.Duration
}

// Link is the ground side of the relay: the MQTT broker connection through
// which ground systems talk to the aircraft.
//
// Ground-bound traffic is published on the from_plane topics; air-bound
// traffic arrives by subscription on the to_plane topics and is handed to
// the registered callbacks.
//
// SatCom publishes are retained so a ground station that connects between
// the infrequent satellite messages still sees the latest one. Retention
// cuts the other way too: after a long silence the retained message is
// stale enough to mislead, so the link clears it with a retained null
// payload once the silence timeout passes. The clear fires once per
// silence period; the next real SatCom message re-arms it.
//
// Thread Safety: All methods are safe for concurrent use. The mutex guards
// only the queue state and counters, never broker I/O.
type Link struct {
	client MQTTClient
	cfg    Config

	// Queue state and counters, guarded by mu.
	mu                sync.Mutex
	lastSatComReceive time.Time
	queueCleared      bool
	satComSeq         uint64
	publishCount      uint64

	// Inbound callbacks, invoked outside the lock.
	onLTE      func(payload []byte)
	onSatCom   func(payload []byte, seq uint64)
	callbackMu sync.RWMutex

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a new broker link over an established MQTT client.
func New(client MQTTClient, cfg Config) *Link {
	return &Link{
		client: client,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// SetOnLTE sets the callback for air-bound payloads on the LTE topic.
func (l *Link) SetOnLTE(fn func(payload []byte)) {
	l.callbackMu.Lock()
	l.onLTE = fn
	l.callbackMu.Unlock()
}

// SetOnSatCom sets the callback for air-bound payloads on the SatCom
// topic. The sequence number counts SatCom commands since startup.
func (l *Link) SetOnSatCom(fn func(payload []byte, seq uint64)) {
	l.callbackMu.Lock()
	l.onSatCom = fn
	l.callbackMu.Unlock()
}

// SetLogger sets the logger for the link.
func (l *Link) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// Start subscribes to the air-bound topics and begins the stale-queue
// check.
//
// Returns:
//   - error: If either subscription fails
func (l *Link) Start() error {
	if err := l.client.Subscribe(mqtt.TopicLTEToPlane, l.cfg.QoS, l.handleLTEToPlane); err != nil {
		return fmt.Errorf("subscribing to %s: %w", mqtt.TopicLTEToPlane, err)
	}
	if err := l.client.Subscribe(mqtt.TopicSatComToPlane, l.cfg.QoS, l.handleSatComToPlane); err != nil {
		return fmt.Errorf("subscribing to %s: %w", mqtt.TopicSatComToPlane, err)
	}

	// The silence clock starts now: a relay that never hears the aircraft
	// still clears whatever retained message predates this run.
	l.mu.Lock()
	l.lastSatComReceive = time.Now()
	l.queueCleared = false
	l.mu.Unlock()

	l.wg.Add(1)
	go l.staleLoop()

	l.logInfo("broker link started",
		"qos", l.cfg.QoS,
		"satcom_silence_timeout", l.cfg.SilenceTimeout.String())
	return nil
}

// Stop halts the stale-queue check. The MQTT client itself is owned by the
// caller and outlives the link.
func (l *Link) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		l.logInfo("broker link stopped")
	})
}

// PublishLTE publishes an aircraft-originated LTE payload to the ground.
// Not retained: LTE traffic is frequent enough that stale data is worse
// than no data.
//
// Returns:
//   - error: If the broker publish fails
func (l *Link) PublishLTE(payload []byte) error {
	if err := l.client.Publish(mqtt.TopicLTEFromPlane, payload, l.cfg.QoS, false); err != nil {
		return fmt.Errorf("publishing LTE telemetry: %w", err)
	}
	l.countPublish()
	return nil
}

// PublishSatCom publishes an aircraft-originated SatCom payload to the
// ground, retained, and re-arms the stale-queue clear.
//
// Returns:
//   - error: If the broker publish fails
func (l *Link) PublishSatCom(payload []byte) error {
	l.mu.Lock()
	l.lastSatComReceive = time.Now()
	l.queueCleared = false
	l.mu.Unlock()

	if err := l.client.Publish(mqtt.TopicSatComFromPlane, payload, l.cfg.QoS, true); err != nil {
		return fmt.Errorf("publishing SatCom telemetry: %w", err)
	}
	l.countPublish()
	return nil
}

// PublishCount returns the number of successful ground-bound publishes.
func (l *Link) PublishCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.publishCount
}

// countPublish increments the ground-bound publish counter.
func (l *Link) countPublish() {
	l.mu.Lock()
	l.publishCount++
	count := l.publishCount
	l.mu.Unlock()

	l.logDebug("published to ground", "count", count)
}

// handleLTEToPlane forwards a ground-originated LTE command to the
// registered callback.
func (l *Link) handleLTEToPlane(_ string, payload []byte) error {
	l.callbackMu.RLock()
	onLTE := l.onLTE
	l.callbackMu.RUnlock()

	if onLTE == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, mqtt.TopicLTEToPlane)
	}
	onLTE(payload)
	return nil
}

// handleSatComToPlane forwards a ground-originated SatCom command to the
// registered callback with its sequence number.
func (l *Link) handleSatComToPlane(_ string, payload []byte) error {
	l.callbackMu.RLock()
	onSatCom := l.onSatCom
	l.callbackMu.RUnlock()

	if onSatCom == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, mqtt.TopicSatComToPlane)
	}

	l.mu.Lock()
	l.satComSeq++
	seq := l.satComSeq
	l.mu.Unlock()

	onSatCom(payload, seq)
	return nil
}

// staleLoop runs the stale-queue check every interval.
func (l *Link) staleLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.checkStaleQueue(time.Now())
		}
	}
}

// checkStaleQueue clears the retained SatCom message once the silence
// timeout has passed. The clear latches only after the clearing publish
// succeeds; a failed publish (broker disconnected at the tick) leaves the
// latch open so the next tick retries. A successful clear then holds
// until the next real SatCom message, so the broker is not spammed with
// empty retained publishes.
func (l *Link) checkStaleQueue(now time.Time) {
	l.mu.Lock()
	lastReceive := l.lastSatComReceive
	silence := now.Sub(lastReceive)
	stale := !l.queueCleared && silence > l.cfg.SilenceTimeout
	l.mu.Unlock()

	if !stale {
		return
	}

	l.logWarn("no SatCom message received, clearing retained queue",
		"silence", silence.Round(time.Second).String())

	// Retained empty payload deletes the retained message broker-side.
	if err := l.client.Publish(mqtt.TopicSatComFromPlane, nil, l.cfg.QoS, true); err != nil {
		l.logError("clearing retained SatCom queue failed, will retry", "error", err)
		return
	}

	l.mu.Lock()
	// A fresh SatCom message may have landed during the publish; its
	// receive timestamp opens a new silence period that this clear must
	// not latch shut.
	if l.lastSatComReceive.Equal(lastReceive) {
		l.queueCleared = true
	}
	l.mu.Unlock()
}

// logDebug logs a debug message if a logger is set.
func (l *Link) logDebug(msg string, keysAndValues ...any) {
	l.loggerMu.RLock()
	logger := l.logger
	l.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (l *Link) logInfo(msg string, keysAndValues ...any) {
	l.loggerMu.RLock()
	logger := l.logger
	l.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if a logger is set.
func (l *Link) logWarn(msg string, keysAndValues ...any) {
	l.loggerMu.RLock()
	logger := l.logger
	l.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error if a logger is set.
func (l *Link) logError(msg string, keysAndValues ...any) {
	l.loggerMu.RLock()
	logger := l.logger
	l.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
