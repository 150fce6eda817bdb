package iridium

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/skylink-relay/internal/infrastructure/config"
	"github.com/nerrad567/skylink-relay/internal/store"
)

// Link operation constants.
const (
	// httpTimeout bounds a single MT gateway request.
	httpTimeout = 30 * time.Second

	// shutdownTimeout bounds graceful HTTP server shutdown.
	shutdownTimeout = 5 * time.Second
)

// Logger is the narrow logging interface the link depends on.
// Compatible with logging.Logger and slog.Logger. May be nil.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DeadLetterSink receives payloads that exhausted their delivery attempts.
// Satisfied by store.DeadLetterStore. May be nil, in which case exhausted
// payloads are dropped with an error log.
type DeadLetterSink interface {
	Add(ctx context.Context, letter store.DeadLetter) error
}

// delivery is one outbound (MT) payload in flight. Each delivery carries
// its own correlation ID so retries, logs, and dead letters can all refer
// to the same message unambiguously, plus the caller's sequence index for
// cross-link tracing.
type delivery struct {
	id       string
	seq      uint64
	payload  []byte
	attempts int
}

// Link is the Iridium side of the relay, speaking the Rock7 gateway's HTTP
// API in both directions:
//
//   - Inbound (MO, mobile-originated): the gateway POSTs a form with a
//     hex-encoded data field to our local HTTP server.
//   - Outbound (MT, mobile-terminated): we POST a form with credentials and
//     a hex-encoded data field to the gateway URL.
//
// Outbound deliveries run asynchronously with exponential backoff. A
// payload that exhausts its attempts is handed to the dead letter sink
// rather than retried forever, since every attempt costs airtime credits.
//
// Thread Safety: All methods are safe for concurrent use. The pending map
// mutex is held only across map mutation, never across HTTP I/O.
type Link struct {
	cfg        config.IridiumConfig
	httpClient *http.Client
	server     *http.Server
	listener   net.Listener

	// In-flight outbound deliveries, keyed by correlation ID. Guarded by mu.
	mu      sync.Mutex
	pending map[string]*delivery

	// onMessage receives each inbound MO payload, invoked outside any lock.
	onMessage  func(payload []byte)
	callbackMu sync.RWMutex

	deadLetters   DeadLetterSink
	deadLettersMu sync.RWMutex

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a new Iridium link. Call Start() to open the MO endpoint.
func New(cfg config.IridiumConfig) *Link {
	return &Link{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
		pending: make(map[string]*delivery),
		done:    make(chan struct{}),
	}
}

// SetOnMessage sets the callback invoked for every inbound MO payload.
func (l *Link) SetOnMessage(fn func(payload []byte)) {
	l.callbackMu.Lock()
	l.onMessage = fn
	l.callbackMu.Unlock()
}

// SetDeadLetterSink sets the destination for payloads that exhaust their
// delivery attempts.
func (l *Link) SetDeadLetterSink(sink DeadLetterSink) {
	l.deadLettersMu.Lock()
	l.deadLetters = sink
	l.deadLettersMu.Unlock()
}

// SetLogger sets the logger for the link.
func (l *Link) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// Start opens the MO inbound HTTP endpoint.
//
// The listener is bound synchronously so a port conflict surfaces here
// rather than in a goroutine log line.
//
// Returns:
//   - error: If the listen port cannot be bound
func (l *Link) Start() error {
	addr := fmt.Sprintf(":%d", l.cfg.LocalPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding MO endpoint %s: %w", addr, err)
	}
	l.listener = listener

	l.server = &http.Server{
		Handler:           l.newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	l.logInfo("Iridium MO endpoint open", "addr", listener.Addr().String())

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			l.logError("MO endpoint failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the MO endpoint and abandons in-flight deliveries.
// Abandoned deliveries stay in memory only; payloads already dead-lettered
// are safe in the store.
func (l *Link) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)

		if l.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := l.server.Shutdown(ctx); err != nil {
				l.logWarn("MO endpoint shutdown error", "error", err)
			}
		}

		l.wg.Wait()

		l.mu.Lock()
		abandoned := len(l.pending)
		l.mu.Unlock()
		if abandoned > 0 {
			l.logWarn("shutdown with in-flight satellite deliveries", "count", abandoned)
		}
		l.logInfo("Iridium link stopped")
	})
}

// Addr returns the bound MO endpoint address, or nil before Start().
// Useful when LocalPort is 0 and the kernel picked the port.
func (l *Link) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Send queues payload for MT delivery to the aircraft and returns
// immediately with the delivery's correlation ID. seq is the caller's
// sequence index for the message; it stays attached to the delivery
// across retries.
//
// Delivery runs in the background: the first attempt fires at once, and
// failures back off exponentially from retry.initial_delay up to
// retry.max_delay, for at most retry.max_attempts attempts. An exhausted
// payload goes to the dead letter sink.
//
// Returns:
//   - string: Correlation ID of the queued delivery
//   - error: ErrClosed if the link has been stopped
func (l *Link) Send(payload []byte, seq uint64) (string, error) {
	select {
	case <-l.done:
		return "", ErrClosed
	default:
	}

	d := &delivery{
		id:      uuid.NewString(),
		seq:     seq,
		payload: payload,
	}

	l.mu.Lock()
	l.pending[d.id] = d
	queued := len(l.pending)
	l.mu.Unlock()

	l.logInfo("queued satellite delivery",
		"id", d.id, "seq", seq, "bytes", len(payload), "pending", queued)

	l.wg.Add(1)
	go l.deliver(d)

	return d.id, nil
}

// PendingCount returns the number of in-flight outbound deliveries.
func (l *Link) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// deliver drives one payload through its attempts until success,
// exhaustion, or shutdown.
func (l *Link) deliver(d *delivery) {
	defer l.wg.Done()

	for {
		err := l.postMT(d.payload)
		d.attempts++

		if err == nil {
			l.removePending(d.id)
			l.logInfo("satellite delivery confirmed",
				"id", d.id, "seq", d.seq, "attempts", d.attempts)
			return
		}

		if d.attempts >= l.cfg.Retry.MaxAttempts {
			l.removePending(d.id)
			l.deadLetter(d, err)
			return
		}

		delay := l.backoffDelay(d.attempts)
		l.logWarn("satellite delivery failed, will retry",
			"id", d.id, "attempt", d.attempts, "retry_in", delay.String(), "error", err)

		select {
		case <-l.done:
			return
		case <-time.After(delay):
		}
	}
}

// backoffDelay returns the wait before the next attempt: initial delay
// doubled per completed attempt, capped at the configured maximum.
func (l *Link) backoffDelay(attempts int) time.Duration {
	delay := l.cfg.Retry.GetInitialDelay()
	maxDelay := l.cfg.Retry.GetMaxDelay()
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// removePending drops a delivery from the pending map.
func (l *Link) removePending(id string) {
	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
}

// deadLetter hands an exhausted payload to the sink.
func (l *Link) deadLetter(d *delivery, lastErr error) {
	l.logError("satellite delivery exhausted, dead-lettering",
		"id", d.id, "seq", d.seq, "attempts", d.attempts, "error", lastErr)

	l.deadLettersMu.RLock()
	sink := l.deadLetters
	l.deadLettersMu.RUnlock()

	if sink == nil {
		l.logError("no dead letter sink configured, payload lost", "id", d.id)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := sink.Add(ctx, store.DeadLetter{
		ID:        d.id,
		Payload:   d.payload,
		Attempts:  d.attempts,
		LastError: lastErr.Error(),
	})
	if err != nil {
		l.logError("storing dead letter failed, payload lost", "id", d.id, "error", err)
	}
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
