package iridium

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/skylink-relay/internal/infrastructure/config"
	"github.com/nerrad567/skylink-relay/internal/store"
)

// testConfig returns a link configuration with fast retries for tests.
func testConfig() config.IridiumConfig {
	return config.IridiumConfig{
		URL:            "http://127.0.0.1:1/unreachable",
		LocalPort:      0,
		SilenceTimeout: 600,
		RockBlock: config.RockBlockConfig{
			IMEI:     "300234010753370",
			Username: "ops@example.com",
			Password: "secret",
		},
		Retry: config.IridiumRetryConfig{
			InitialDelay: 1,
			MaxDelay:     1,
			MaxAttempts:  3,
		},
	}
}

// startLink starts a link on an ephemeral port and registers cleanup.
func startLink(t *testing.T, cfg config.IridiumConfig) *Link {
	t.Helper()

	l := New(cfg)
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(l.Stop)
	return l
}

// moURL returns the link's MO endpoint base URL.
func moURL(t *testing.T, l *Link) string {
	t.Helper()
	if l.Addr() == nil {
		t.Fatal("link has no bound address")
	}
	return "http://" + l.Addr().String()
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// fakeSink collects dead letters for inspection.
type fakeSink struct {
	mu      sync.Mutex
	letters []store.DeadLetter
}

func (f *fakeSink) Add(_ context.Context, letter store.DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, letter)
	return nil
}

func (f *fakeSink) all() []store.DeadLetter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.DeadLetter(nil), f.letters...)
}

func TestInboundMO(t *testing.T) {
	l := startLink(t, testConfig())

	received := make(chan []byte, 1)
	l.SetOnMessage(func(payload []byte) { received <- payload })

	resp, err := http.PostForm(moURL(t, l)+"/", url.Values{
		"imei":          {"300234010753370"},
		"momsn":         {"42"},
		"transmit_time": {"26-03-01 12:00:00"},
		"data":          {"6869"}, // "hi"
	})
	if err != nil {
		t.Fatalf("PostForm() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("MO push status = %d, want 200", resp.StatusCode)
	}

	select {
	case payload := <-received:
		if string(payload) != "hi" {
			t.Errorf("payload = %q, want %q", payload, "hi")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for MO payload")
	}
}

func TestInboundMO_Rejections(t *testing.T) {
	l := startLink(t, testConfig())
	l.SetOnMessage(func([]byte) {})

	tests := []struct {
		name string
		form url.Values
	}{
		{"missing data field", url.Values{"imei": {"300234010753370"}}},
		{"invalid hex", url.Values{"data": {"zz"}}},
		{"odd length hex", url.Values{"data": {"686"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(moURL(t, l)+"/", tt.form)
			if err != nil {
				t.Fatalf("PostForm() error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestInboundMO_NoHandler(t *testing.T) {
	l := startLink(t, testConfig())

	resp, err := http.PostForm(moURL(t, l)+"/", url.Values{"data": {"6869"}})
	if err != nil {
		t.Fatalf("PostForm() error = %v", err)
	}
	resp.Body.Close()

	// Without a handler the push must be refused so the gateway redelivers.
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	l := startLink(t, testConfig())

	resp, err := http.Get(moURL(t, l) + "/health")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestSendDeliversToGateway(t *testing.T) {
	var mu sync.Mutex
	var gotForm url.Values

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		gotForm = r.PostForm
		mu.Unlock()
		fmt.Fprint(w, "OK,123456")
	}))
	defer gateway.Close()

	cfg := testConfig()
	cfg.URL = gateway.URL
	l := startLink(t, cfg)

	id, err := l.Send([]byte("ping"), 1)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id == "" {
		t.Fatal("Send() returned empty correlation ID")
	}

	waitFor(t, 2*time.Second, func() bool { return l.PendingCount() == 0 },
		"delivery never confirmed")

	mu.Lock()
	defer mu.Unlock()
	if got := gotForm.Get("imei"); got != "300234010753370" {
		t.Errorf("imei = %q, want %q", got, "300234010753370")
	}
	if got := gotForm.Get("username"); got != "ops@example.com" {
		t.Errorf("username = %q, want %q", got, "ops@example.com")
	}
	if got := gotForm.Get("password"); got != "secret" {
		t.Errorf("password = %q, want %q", got, "secret")
	}
	if got := gotForm.Get("data"); got != "70696e67" { // hex("ping")
		t.Errorf("data = %q, want %q", got, "70696e67")
	}
}

func TestSendRetriesThenDeadLetters(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		fmt.Fprint(w, "FAILED,10,No credit")
	}))
	defer gateway.Close()

	cfg := testConfig()
	cfg.URL = gateway.URL
	l := startLink(t, cfg)

	sink := &fakeSink{}
	l.SetDeadLetterSink(sink)

	id, err := l.Send([]byte("critical"), 3)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, 10*time.Second, func() bool { return len(sink.all()) == 1 },
		"payload never dead-lettered")

	mu.Lock()
	gotAttempts := attempts
	mu.Unlock()
	if gotAttempts != cfg.Retry.MaxAttempts {
		t.Errorf("gateway saw %d attempts, want %d", gotAttempts, cfg.Retry.MaxAttempts)
	}

	letter := sink.all()[0]
	if letter.ID != id {
		t.Errorf("dead letter ID = %q, want correlation ID %q", letter.ID, id)
	}
	if string(letter.Payload) != "critical" {
		t.Errorf("dead letter payload = %q, want %q", letter.Payload, "critical")
	}
	if letter.Attempts != cfg.Retry.MaxAttempts {
		t.Errorf("dead letter attempts = %d, want %d", letter.Attempts, cfg.Retry.MaxAttempts)
	}
	if letter.LastError == "" {
		t.Error("dead letter has no last error")
	}

	if l.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after dead-letter, want 0", l.PendingCount())
	}
}

func TestSendAfterStop(t *testing.T) {
	l := startLink(t, testConfig())
	l.Stop()

	if _, err := l.Send([]byte("late"), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Stop error = %v, want ErrClosed", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	l := New(config.IridiumConfig{
		Retry: config.IridiumRetryConfig{
			InitialDelay: 10,
			MaxDelay:     160,
			MaxAttempts:  6,
		},
	})

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 160 * time.Second},
		{6, 160 * time.Second},
	}

	for _, tt := range tests {
		if got := l.backoffDelay(tt.attempts); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
