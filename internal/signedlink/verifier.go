package signedlink

import (
	"errors"
	"strconv"
	"strings"
)

// Reason classifies a denied link.
type Reason string

const (
	ReasonMalformed    Reason = "MALFORMED"
	ReasonExpired      Reason = "EXPIRED"
	ReasonBadSignature Reason = "BAD_SIGNATURE"
)

// DenialError is returned by Check when a link must not be honoured.
type DenialError struct {
	Reason Reason
}

func (e *DenialError) Error() string {
	return "signed link denied: " + string(e.Reason)
}

func deny(r Reason) error {
	return &DenialError{Reason: r}
}

// ReasonOf extracts the denial reason from err.
func ReasonOf(err error) (Reason, bool) {
	var d *DenialError
	if errors.As(err, &d) {
		return d.Reason, true
	}
	return "", false
}

// Verifier gates requests before any artifact bytes are touched.
type Verifier struct {
	codec *Codec
	opts  options
}

// NewVerifier creates a Verifier.
func NewVerifier(codec *Codec, opts ...Option) *Verifier {
	return &Verifier{codec: codec, opts: buildOptions(opts)}
}

// Check approves (nil) or denies (*DenialError) a link. Parse and expiry
// checks run before the signature comparison. ErrConfiguration is returned
// as is.
func (v *Verifier) Check(submissionID, kind, expiresStr, signatureHex string) error {
	expiresAt, err := strconv.ParseInt(strings.TrimSpace(expiresStr), 10, 64)
	if err != nil {
		return deny(ReasonMalformed)
	}
	if signatureHex == "" || submissionID == "" || kind == "" {
		return deny(ReasonMalformed)
	}

	// Inclusive: a request at exactly expiresAt is still valid
	if v.opts.now().UnixMilli() > expiresAt {
		return deny(ReasonExpired)
	}

	ok, err := v.codec.Verify(submissionID, kind, expiresAt, signatureHex)
	switch {
	case errors.Is(err, ErrMalformedSignature), errors.Is(err, ErrEmptyField):
		return deny(ReasonMalformed)
	case err != nil:
		return err
	case !ok:
		return deny(ReasonBadSignature)
	}
	return nil
}
