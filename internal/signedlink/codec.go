// Package signedlink issues and verifies time-limited download links whose
// validity travels in the URL itself.
package signedlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrConfiguration means the signing secret is missing.
	ErrConfiguration = errors.New("DOWNLOAD_URL_SECRET is not set")
	// ErrMalformedSignature means the candidate signature is not hex.
	ErrMalformedSignature = errors.New("signature is not valid hex")
	// ErrEmptyField means subject or kind is empty.
	ErrEmptyField = errors.New("subject and kind are required")
)

// equal is the constant-time comparison used by Verify.
var equal = hmac.Equal

// Codec computes and verifies HMAC-SHA256 signatures over
// (subject, kind, expiresAtMillis).
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec. An empty secret is accepted here and rejected
// on every Sign/Verify call.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(strings.TrimSpace(secret))}
}

// Configured reports whether a secret is present.
func (c *Codec) Configured() bool {
	return len(c.secret) > 0
}

// canonical joins the signed fields with ':'.
func canonical(subject, kind string, expiresAtMillis int64) string {
	return subject + ":" + kind + ":" + strconv.FormatInt(expiresAtMillis, 10)
}

func (c *Codec) mac(subject, kind string, expiresAtMillis int64) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrConfiguration
	}
	if subject == "" || kind == "" {
		return nil, ErrEmptyField
	}
	m := hmac.New(sha256.New, c.secret)
	m.Write([]byte(canonical(subject, kind, expiresAtMillis)))
	return m.Sum(nil), nil
}

// Sign returns the lowercase hex signature of the tuple. Past expiry values
// are valid input.
func (c *Codec) Sign(subject, kind string, expiresAtMillis int64) (string, error) {
	sum, err := c.mac(subject, kind, expiresAtMillis)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// Verify reports whether candidateHex is the signature of the tuple.
// A mismatch is (false, nil); errors are reserved for configuration and
// malformed hex.
func (c *Codec) Verify(subject, kind string, expiresAtMillis int64, candidateHex string) (bool, error) {
	expected, err := c.mac(subject, kind, expiresAtMillis)
	if err != nil {
		return false, err
	}
	candidate, err := hex.DecodeString(candidateHex)
	if err != nil {
		return false, ErrMalformedSignature
	}
	return equal(expected, candidate), nil
}
