// Package lte implements the LTE side of the relay: a UDP link whose peer
// address is learned from inbound traffic.
//
// The aircraft's cellular modem sits behind carrier NAT, so its address is
// whatever the latest inbound datagram came from. The link:
//   - Binds a fixed UDP port on all interfaces
//   - Learns (and re-learns) the aircraft address from every datagram
//   - Forgets the address after a configurable silence timeout, so
//     outbound traffic is never sent to an address that has gone stale
//   - Tracks windowed throughput, logged every 1000th message
//
// Datagram loss is accepted: the channel is best-effort by design and the
// link neither queues nor retries outbound payloads.
package lte
