// Package handshake implements the authenticated control messages the host sends
// around its own shutdown and boot.
//
// Every request is signed with HMAC-SHA256 over
//
//	"{METHOD}:{path}:{timestamp}:{sha256 hex of body}"
//
// and carries the Unix timestamp and hex signature in the X-Balupi-Timestamp and
// X-Balupi-Signature headers. Timestamps are accepted within 60 seconds either way.
package handshake
