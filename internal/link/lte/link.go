package lte

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Link operation constants.
const (
	// livenessInterval is how often the silence check runs.
	livenessInterval = 1 * time.Second

	// maxDatagramSize is the receive buffer size for a single datagram.
	maxDatagramSize = 4096

	// statsWindow is the number of messages per throughput accounting window.
	statsWindow = 1000
)

// Config holds the settings for the LTE link.
type Config struct {
	// RxPort is the UDP port to listen on (all interfaces).
	// Port 0 binds an ephemeral port, which tests rely on.
	RxPort int

	// SilenceTimeout is how long the link may be silent before the learned
	// aircraft address is invalidated.
	SilenceTimeout time.Duration
}

// Logger is the narrow logging interface the link depends on.
// Compatible with logging.Logger and slog.Logger. May be nil.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Link is the LTE side of the relay: a single UDP socket whose peer is
// learned from inbound traffic.
//
// The aircraft's cellular address changes as it roams, so the link never
// configures a destination. Every inbound datagram refreshes the learned
// address; a configurable silence timeout forgets it again, after which
// outbound traffic is dropped rather than sent to a dead address.
//
// Thread Safety: All methods are safe for concurrent use. The mutex guards
// only the address/counter state; socket I/O and the OnMessage callback
// happen outside the critical section.
type Link struct {
	cfg  Config
	conn *net.UDPConn

	// Learned peer state, guarded by mu.
	mu           sync.Mutex
	peer         *net.UDPAddr
	lastReceive  time.Time
	messageCount uint64
	byteCount    uint64
	windowStart  time.Time

	// onMessage receives each inbound payload, invoked outside the lock.
	onMessage  func(payload []byte)
	callbackMu sync.RWMutex

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a new LTE link. Call Start() to bind the socket.
func New(cfg Config) *Link {
	return &Link{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// SetOnMessage sets the callback invoked for every inbound datagram payload.
// The payload slice is owned by the callback; the link never reuses it.
func (l *Link) SetOnMessage(fn func(payload []byte)) {
	l.callbackMu.Lock()
	l.onMessage = fn
	l.callbackMu.Unlock()
}

// SetLogger sets the logger for the link.
func (l *Link) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

// Start binds the UDP socket on all interfaces and launches the receive
// loop and the periodic liveness check.
//
// Returns:
//   - error: If the socket cannot be bound
func (l *Link) Start() error {
	addr := &net.UDPAddr{Port: l.cfg.RxPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("binding UDP port %d: %w", l.cfg.RxPort, err)
	}
	l.conn = conn

	l.logInfo("LTE socket open", "addr", conn.LocalAddr().String())

	l.wg.Add(2)
	go l.readLoop()
	go l.livenessLoop()

	return nil
}

// Stop closes the socket and stops the liveness check.
// In-flight callback invocations complete naturally.
func (l *Link) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.conn != nil {
			l.conn.Close()
		}
		l.wg.Wait()
		l.logInfo("LTE socket closed")
	})
}

// LocalAddr returns the bound socket address, or nil before Start().
// Useful when RxPort is 0 and the kernel picked the port.
func (l *Link) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Peer returns the currently learned aircraft address, or nil when the
// link has been silent past the timeout (or has never heard a datagram).
func (l *Link) Peer() *net.UDPAddr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peer
}

// Send forwards payload to the learned aircraft address.
//
// When no address is known the payload is dropped with a warning: UDP
// gives no delivery guarantee anyway, so queuing here would only add
// latency to data that is already stale by the time the link recovers.
//
// Returns:
//   - error: ErrNoPeer when no address is learned, or the socket write error
func (l *Link) Send(payload []byte) error {
	l.mu.Lock()
	peer := l.peer
	l.mu.Unlock()

	if peer == nil {
		l.logWarn("no aircraft address learned, dropping outbound LTE payload",
			"bytes", len(payload))
		return ErrNoPeer
	}

	if _, err := l.conn.WriteToUDP(payload, peer); err != nil {
		return fmt.Errorf("sending to %s: %w", peer, err)
	}

	l.logDebug("sent LTE payload", "peer", peer.String(), "bytes", len(payload))
	return nil
}

// readLoop receives datagrams until the socket is closed.
func (l *Link) readLoop() {
	defer l.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Transport is best-effort; log and keep reading.
			l.logError("UDP read error", "error", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		l.noteReceive(addr, n)

		l.callbackMu.RLock()
		onMessage := l.onMessage
		l.callbackMu.RUnlock()
		if onMessage != nil {
			onMessage(payload)
		}
	}
}

// noteReceive updates the learned address and throughput counters for one
// inbound datagram. Called from the read loop; logging happens after the
// lock is released.
func (l *Link) noteReceive(addr *net.UDPAddr, n int) {
	now := time.Now()

	l.mu.Lock()
	l.lastReceive = now
	l.peer = addr
	if l.messageCount == 0 {
		l.windowStart = now
	}
	l.messageCount++
	l.byteCount += uint64(n)

	var windowBytes uint64
	var windowElapsed time.Duration
	logWindow := l.messageCount%statsWindow == 0
	if logWindow {
		windowBytes = l.byteCount
		windowElapsed = now.Sub(l.windowStart)
		l.byteCount = 0
		l.windowStart = now
	}
	count := l.messageCount
	l.mu.Unlock()

	if logWindow {
		rateKBs := 0.0
		if windowElapsed > 0 {
			rateKBs = float64(windowBytes) / 1000.0 / windowElapsed.Seconds()
		}
		l.logInfo("LTE throughput",
			"messages", count,
			"rate_kb_per_s", rateKBs,
		)
	} else {
		l.logDebug("received LTE datagram", "count", count, "bytes", n)
	}
}

// livenessLoop runs the silence check every second.
func (l *Link) livenessLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.expireStalePeer(time.Now())
		}
	}
}

// expireStalePeer forgets the learned address when the link has been silent
// longer than the configured timeout. The same mutex orders this against
// noteReceive, so the silence measurement always sees a consistent snapshot.
func (l *Link) expireStalePeer(now time.Time) {
	l.mu.Lock()
	silence := now.Sub(l.lastReceive)
	expired := l.peer != nil && silence > l.cfg.SilenceTimeout
	if expired {
		l.peer = nil
		l.messageCount = 0
		l.byteCount = 0
	}
	l.mu.Unlock()

	if expired {
		l.logWarn("no LTE datagram received, forgetting aircraft address",
			"silence", silence.Round(time.Millisecond).String())
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
