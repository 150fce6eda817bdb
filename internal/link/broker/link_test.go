package broker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/skylink-relay/internal/infrastructure/mqtt"
)

// publishRecord captures one Publish call on the mock client.
type publishRecord struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockClient records publishes and subscriptions and lets tests inject
// inbound messages through the registered handlers.
type mockClient struct {
	mu         sync.Mutex
	publishes  []publishRecord
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newMockClient() *mockClient {
	return &mockClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.publishes = append(m.publishes, publishRecord{topic, payload, qos, retained})
	return nil
}

func (m *mockClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

// deliver simulates an inbound broker message.
func (m *mockClient) deliver(t *testing.T, topic string, payload []byte) error {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for topic %s", topic)
	}
	return handler(topic, payload)
}

func (m *mockClient) published() []publishRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishRecord(nil), m.publishes...)
}

func (m *mockClient) setPublishErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// startedLink returns a started link over a fresh mock client.
func startedLink(t *testing.T, cfg Config) (*Link, *mockClient) {
	t.Helper()

	client := newMockClient()
	l := New(client, cfg)
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(l.Stop)
	return l, client
}

func TestStartSubscribesToAirboundTopics(t *testing.T) {
	_, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	client.mu.Lock()
	defer client.mu.Unlock()
	for _, topic := range []string{mqtt.TopicLTEToPlane, mqtt.TopicSatComToPlane} {
		if _, ok := client.handlers[topic]; !ok {
			t.Errorf("no subscription for %s", topic)
		}
	}
}

func TestLTEForwarding(t *testing.T) {
	l, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	var got []byte
	l.SetOnLTE(func(payload []byte) { got = payload })

	if err := client.deliver(t, mqtt.TopicLTEToPlane, []byte("cmd")); err != nil {
		t.Fatalf("deliver error = %v", err)
	}
	if string(got) != "cmd" {
		t.Errorf("LTE callback got %q, want %q", got, "cmd")
	}
}

func TestSatComForwardingSequence(t *testing.T) {
	l, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	var seqs []uint64
	l.SetOnSatCom(func(_ []byte, seq uint64) { seqs = append(seqs, seq) })

	client.deliver(t, mqtt.TopicSatComToPlane, []byte("a"))
	client.deliver(t, mqtt.TopicSatComToPlane, []byte("b"))

	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Errorf("sequence numbers = %v, want [1 2]", seqs)
	}
}

func TestForwardingWithoutHandler(t *testing.T) {
	_, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	err := client.deliver(t, mqtt.TopicLTEToPlane, []byte("cmd"))
	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("deliver error = %v, want ErrNoHandler", err)
	}
}

func TestPublishLTENotRetained(t *testing.T) {
	l, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	if err := l.PublishLTE([]byte("telemetry")); err != nil {
		t.Fatalf("PublishLTE() error = %v", err)
	}

	pubs := client.published()
	if len(pubs) != 1 {
		t.Fatalf("got %d publishes, want 1", len(pubs))
	}
	if pubs[0].topic != mqtt.TopicLTEFromPlane {
		t.Errorf("topic = %s, want %s", pubs[0].topic, mqtt.TopicLTEFromPlane)
	}
	if pubs[0].retained {
		t.Error("LTE telemetry published retained, want not retained")
	}
	if pubs[0].qos != 2 {
		t.Errorf("qos = %d, want 2", pubs[0].qos)
	}
}

func TestPublishSatComRetained(t *testing.T) {
	l, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	if err := l.PublishSatCom([]byte("position")); err != nil {
		t.Fatalf("PublishSatCom() error = %v", err)
	}

	pubs := client.published()
	if len(pubs) != 1 {
		t.Fatalf("got %d publishes, want 1", len(pubs))
	}
	if pubs[0].topic != mqtt.TopicSatComFromPlane {
		t.Errorf("topic = %s, want %s", pubs[0].topic, mqtt.TopicSatComFromPlane)
	}
	if !pubs[0].retained {
		t.Error("SatCom telemetry published not retained, want retained")
	}
}

func TestStaleQueueClearedOncePerSilence(t *testing.T) {
	l, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	if err := l.PublishSatCom([]byte("position")); err != nil {
		t.Fatalf("PublishSatCom() error = %v", err)
	}

	// Within the timeout nothing is cleared.
	l.checkStaleQueue(time.Now().Add(30 * time.Second))
	if got := len(client.published()); got != 1 {
		t.Fatalf("got %d publishes before timeout, want 1", got)
	}

	// Past the timeout the retained message is cleared with a null payload.
	l.checkStaleQueue(time.Now().Add(2 * time.Minute))
	pubs := client.published()
	if len(pubs) != 2 {
		t.Fatalf("got %d publishes after timeout, want 2", len(pubs))
	}
	tombstone := pubs[1]
	if tombstone.topic != mqtt.TopicSatComFromPlane {
		t.Errorf("clear topic = %s, want %s", tombstone.topic, mqtt.TopicSatComFromPlane)
	}
	if len(tombstone.payload) != 0 {
		t.Errorf("clear payload = %v, want empty", tombstone.payload)
	}
	if !tombstone.retained {
		t.Error("clear publish not retained, want retained")
	}

	// The clear latches: continued silence publishes nothing further.
	l.checkStaleQueue(time.Now().Add(3 * time.Minute))
	if got := len(client.published()); got != 2 {
		t.Errorf("got %d publishes after repeated checks, want 2", got)
	}

	// A fresh SatCom message re-arms the clear.
	if err := l.PublishSatCom([]byte("position2")); err != nil {
		t.Fatalf("PublishSatCom() error = %v", err)
	}
	l.checkStaleQueue(time.Now().Add(10 * time.Minute))
	pubs = client.published()
	if len(pubs) != 4 {
		t.Fatalf("got %d publishes after re-arm cycle, want 4", len(pubs))
	}
	if len(pubs[3].payload) != 0 || !pubs[3].retained {
		t.Error("re-armed clear is not a retained null publish")
	}
}

func TestStaleClearRetriedAfterPublishFailure(t *testing.T) {
	l, client := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	if err := l.PublishSatCom([]byte("position")); err != nil {
		t.Fatalf("PublishSatCom() error = %v", err)
	}

	// Broker is down at the tick: the clear fails and must not latch.
	client.setPublishErr(mqtt.ErrNotConnected)
	l.checkStaleQueue(time.Now().Add(2 * time.Minute))
	if got := len(client.published()); got != 1 {
		t.Fatalf("got %d publishes after failed clear, want 1", got)
	}

	// Broker is back at the next tick: the clear goes through.
	client.setPublishErr(nil)
	l.checkStaleQueue(time.Now().Add(2 * time.Minute))
	pubs := client.published()
	if len(pubs) != 2 {
		t.Fatalf("got %d publishes after recovered clear, want 2", len(pubs))
	}
	if len(pubs[1].payload) != 0 || !pubs[1].retained {
		t.Error("recovered clear is not a retained null publish")
	}

	// Only now does the latch hold.
	l.checkStaleQueue(time.Now().Add(3 * time.Minute))
	if got := len(client.published()); got != 2 {
		t.Errorf("got %d publishes after latched clear, want 2", got)
	}
}

func TestPublishErrorPropagates(t *testing.T) {
	client := newMockClient()
	client.publishErr = mqtt.ErrNotConnected
	l := New(client, Config{QoS: 2, SilenceTimeout: time.Minute})

	if err := l.PublishLTE([]byte("x")); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("PublishLTE() error = %v, want ErrNotConnected", err)
	}
	if got := l.PublishCount(); got != 0 {
		t.Errorf("PublishCount() = %d after failed publish, want 0", got)
	}
}

func TestPublishCount(t *testing.T) {
	l, _ := startedLink(t, Config{QoS: 2, SilenceTimeout: time.Minute})

	l.PublishLTE([]byte("a"))
	l.PublishSatCom([]byte("b"))

	if got := l.PublishCount(); got != 2 {
		t.Errorf("PublishCount() = %d, want 2", got)
	}
}
