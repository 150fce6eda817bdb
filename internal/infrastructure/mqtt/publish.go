package mqtt

import (
	"fmt"
)

// maxPayloadSize is the maximum MQTT payload size accepted (1MB).
// Telemetry frames are tiny; anything near this limit is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// A nil or empty payload is valid: publishing a retained empty payload is
// how the relay clears a stale retained message from the broker.
//
// Parameters:
//   - topic: The topic to publish to (see topics.go)
//   - payload: The message payload (opaque bytes, max 1MB, may be empty)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
