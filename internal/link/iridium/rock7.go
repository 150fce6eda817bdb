package iridium

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBody bounds how much of a gateway response is read.
// Rock7 replies are one short line; anything larger is garbage.
const maxResponseBody = 4096

// postMT submits one mobile-terminated message to the Rock7 gateway.
//
// The gateway expects a form POST with the account credentials and the
// payload hex-encoded in the data field. It answers 200 with a body of
// either "OK,<mtmsgid>" or "FAILED,<code>,<description>"; a FAILED body
// still arrives with status 200, so the body prefix is the real verdict.
//
// Returns:
//   - error: ErrDeliveryFailed (wrapped with detail) when the gateway
//     refused the message or could not be reached
func (l *Link) postMT(payload []byte) error {
	form := url.Values{}
	form.Set("imei", l.cfg.RockBlock.IMEI)
	form.Set("username", l.cfg.RockBlock.Username)
	form.Set("password", l.cfg.RockBlock.Password)
	form.Set("data", hex.EncodeToString(payload))

	resp, err := l.httpClient.PostForm(l.cfg.URL, form)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: reading gateway response: %w", ErrDeliveryFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gateway status %d: %s",
			ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	verdict := strings.TrimSpace(string(body))
	if !strings.HasPrefix(verdict, "OK") {
		return fmt.Errorf("%w: gateway response: %s", ErrDeliveryFailed, verdict)
	}

	l.logDebug("gateway accepted MT message", "response", verdict)
	return nil
}
