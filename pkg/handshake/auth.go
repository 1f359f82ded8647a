package handshake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderTimestamp = "X-Balupi-Timestamp"
	HeaderSignature = "X-Balupi-Signature"

	// ReplayWindow is the accepted clock skew in both directions.
	ReplayWindow = 60 * time.Second
)

var (
	ErrSecretNotConfigured  = errors.New("handshake secret not configured")
	ErrMissingHeaders       = errors.New("missing HMAC headers")
	ErrInvalidTimestamp     = errors.New("invalid timestamp")
	ErrTimestampOutOfWindow = errors.New("timestamp outside replay window")
	ErrBadSignature         = errors.New("invalid HMAC signature")
)

// AuthError is a rejected verification.
type AuthError struct {
	err    error
	detail string
}

func (e *AuthError) Error() string {
	if e.detail == "" {
		return e.err.Error()
	}
	return e.err.Error() + " (" + e.detail + ")"
}

func (e *AuthError) Unwrap() error { return e.err }

// Status is the HTTP code the rejection maps to: 500 for a missing secret, 401 otherwise.
func (e *AuthError) Status() int {
	if errors.Is(e.err, ErrSecretNotConfigured) {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

func reject(err error, detail string) *AuthError {
	return &AuthError{err: err, detail: detail}
}

// Message builds the string that is signed.
func Message(method, path, timestamp string, body []byte) string {
	sum := sha256.Sum256(body)
	return method + ":" + path + ":" + timestamp + ":" + hex.EncodeToString(sum[:])
}

// Sign returns the hex HMAC-SHA256 of the message for the given request parts.
func Sign(secret, method, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Message(method, path, timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest sets both headers on req for body, signed at now.
func SignRequest(req *http.Request, secret string, body []byte, now time.Time) {
	ts := strconv.FormatInt(now.Unix(), 10)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign(secret, req.Method, req.URL.Path, ts, body))
}

// Verifier checks signed requests against a shared secret.
type Verifier struct {
	secret string
	window time.Duration
	now    func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierClock replaces time.Now.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a verifier. An empty secret rejects every request with ErrSecretNotConfigured.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret: secret,
		window: ReplayWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates one request. The returned error, if any, is an *AuthError.
func (v *Verifier) Verify(method, path, timestamp, signature string, body []byte) error {
	if v.secret == "" {
		return reject(ErrSecretNotConfigured, "")
	}
	if timestamp == "" || signature == "" {
		return reject(ErrMissingHeaders, "")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return reject(ErrInvalidTimestamp, "")
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.window {
		return reject(ErrTimestampOutOfWindow, fmt.Sprintf("%ds", int64(age/time.Second)))
	}

	expected := Sign(v.secret, method, path, timestamp, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return reject(ErrBadSignature, "")
	}
	return nil
}

// VerifyRequest reads the headers of r and verifies them against body.
func (v *Verifier) VerifyRequest(r *http.Request, body []byte) error {
	return v.Verify(r.Method, r.URL.Path, r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body)
}
