// Package mqtt provides the relay's MQTT broker connectivity.
//
// This package manages:
//   - Connection to the ground broker with auto-reconnect
//   - Message publishing with QoS guarantees (including retained publishes)
//   - Topic subscriptions, restored automatically on reconnect
//   - Last Will and Testament (LWT) on the relay status topic
//
// # Architecture
//
// MQTT is the hub of the relay: ground systems see uniform telem/* topics
// regardless of which radio link (LTE or Iridium) carries the traffic.
//
//	LTE link ↔ SkyLink Relay ↔ MQTT Broker ↔ Ground systems
//	Iridium link ↗
//
// # Failure semantics
//
//   - Authentication/authorisation refusal: Connect returns an error; the
//     process treats this as fatal.
//   - Broker temporarily unavailable: Connect retries with the configured
//     backoff until the broker answers or the context is cancelled; drops
//     after connection are handled by paho's auto-reconnect, with
//     subscriptions restored by the connect handler.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err // fatal: broker refused this client, or ctx cancelled
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.TopicLTEToPlane, 2,
//	    func(topic string, payload []byte) error {
//	        return lteLink.Send(payload)
//	    })
package mqtt
