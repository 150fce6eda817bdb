// Package iridium implements the satellite side of the relay via the Rock7
// RockBLOCK HTTP gateway.
//
// Traffic flows through two independent HTTP surfaces:
//
//   - Mobile-originated (aircraft to ground): the gateway pushes each
//     message to our local HTTP endpoint as a form POST with a hex-encoded
//     data field. A 200 acknowledges receipt; a 400 tells the gateway the
//     push was unprocessable.
//   - Mobile-terminated (ground to aircraft): we POST a form with account
//     credentials and hex-encoded data to the gateway URL. The gateway's
//     response body ("OK,..." or "FAILED,...") is the delivery verdict.
//
// Every outbound message gets a generated correlation ID when it is queued
// and keeps it across retries. Retries use exponential backoff with a
// bounded attempt count; exhausted payloads are persisted to the dead
// letter store, because each satellite transmission spends airtime credits
// and an unbounded retry loop against a dead modem would burn them for
// nothing.
package iridium
