package iridium

import (
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newRouter builds the HTTP router for the MO inbound endpoint.
//
// The Rock7 gateway POSTs to the configured delivery URL with no path, so
// the handler sits at the root. A health endpoint rides along for load
// balancer checks.
func (l *Link) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Post("/", l.handleMO)
	r.Get("/health", l.handleHealth)

	return r
}

// handleMO processes one mobile-originated message pushed by the gateway.
//
// The gateway sends a form with the payload hex-encoded in the data field,
// plus metadata (imei, momsn, transmit_time) we only log. Responses matter:
// on anything other than 200 the gateway retries the push later, so a 400
// here means "this message is unprocessable, keep it on your side".
func (l *Link) handleMO(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		l.logWarn("MO push with unparseable form", "error", err)
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	data := r.PostFormValue("data")
	if data == "" {
		l.logWarn("MO push without data field", "remote", r.RemoteAddr)
		http.Error(w, "missing data field", http.StatusBadRequest)
		return
	}

	payload, err := hex.DecodeString(data)
	if err != nil {
		l.logWarn("MO push with invalid hex data",
			"remote", r.RemoteAddr, "error", err)
		http.Error(w, "invalid hex data", http.StatusBadRequest)
		return
	}

	l.callbackMu.RLock()
	onMessage := l.onMessage
	l.callbackMu.RUnlock()

	if onMessage == nil {
		// Not wired up yet; refuse so the gateway redelivers once we are.
		l.logWarn("MO push before message handler registered")
		http.Error(w, "not ready", http.StatusBadRequest)
		return
	}

	l.logInfo("received satellite message",
		"bytes", len(payload),
		"imei", r.PostFormValue("imei"),
		"momsn", r.PostFormValue("momsn"),
		"transmit_time", r.PostFormValue("transmit_time"),
	)

	onMessage(payload)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck // Best effort ack body
}

// handleHealth reports endpoint liveness.
func (l *Link) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck // Best effort body
}
