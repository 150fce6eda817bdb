// Package store persists satellite payloads whose delivery attempts were
// exhausted.
//
// Satellite airtime is paid per message and the modem is often out of
// view, so the Iridium sender retries with backoff rather than forever.
// When a payload runs out of attempts it lands here instead of vanishing:
// the dead letter table keeps the raw bytes, the attempt count, and the
// final error for operator inspection and manual re-submission.
package store
