// Package signature authenticates inbound webhook and service-to-service
// calls with HMAC-SHA256 signed payloads. It is independent of the token
// subsystem: no sessions, no store, no state.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
)

const (
	// SchemePrefix is the fixed, versioned signature header prefix.
	SchemePrefix = "sha256="

	// DefaultTolerance bounds the replay window: a captured, validly
	// signed request is rejected once its timestamp drifts past this.
	DefaultTolerance = 5 * time.Minute

	hexDigestLength = sha256.Size * 2
)

// Verifier validates signed request payloads against a shared secret. The
// secret is explicit construction-time state so multiple webhook providers
// with different secrets can coexist.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	nowFunc   func() time.Time
}

type VerifierOption func(*Verifier)

func WithTolerance(tolerance time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.tolerance = tolerance
	}
}

func WithNowFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowFunc = now
	}
}

func NewVerifier(secret string, options ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Sign computes the signature header value for a payload and timestamp.
// The timestamp is bound into the signed bytes so it cannot be swapped
// after capture.
func (v *Verifier) Sign(payload []byte, timestamp time.Time) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return SchemePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a provided signature and timestamp against a payload.
// Malformed signatures are rejected before any cryptographic comparison.
// The timestamp check runs first: a request outside the replay window
// fails with ErrReplayRejected no matter how the signature looks.
func (v *Verifier) Verify(payload []byte, providedSignature string, timestamp string) error {
	ts, err := parseTimestamp(timestamp)
	if err != nil {
		return internalerrors.ErrReplayRejected
	}

	skew := v.nowFunc().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return internalerrors.ErrReplayRejected
	}

	if !wellFormed(providedSignature) {
		return internalerrors.ErrSignatureInvalid
	}

	// Hex case is part of the public format, not the secret; normalizing
	// it before the constant-time comparison leaks nothing.
	normalized := SchemePrefix + strings.ToLower(providedSignature[len(SchemePrefix):])
	expected := v.Sign(payload, ts)
	if !TimingSafeEqual(expected, normalized) {
		return internalerrors.ErrSignatureInvalid
	}
	return nil
}

// TimingSafeEqual compares two strings in time independent of where they
// differ. Unequal lengths return false immediately; length is public, so
// that branch leaks nothing secret-dependent.
func TimingSafeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// wellFormed gates the fixed signature format before any MAC work:
// prefix, digest length, and case-insensitive hex charset.
func wellFormed(signature string) bool {
	if len(signature) != len(SchemePrefix)+hexDigestLength {
		return false
	}
	if !strings.HasPrefix(signature, SchemePrefix) {
		return false
	}
	for _, c := range signature[len(SchemePrefix):] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func parseTimestamp(timestamp string) (time.Time, error) {
	if unix, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		return time.Unix(unix, 0), nil
	}
	return time.Parse(time.RFC3339, timestamp)
}
