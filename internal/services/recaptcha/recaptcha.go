package recaptcha

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/config"
)

var (
	// ErrRejected means the token was checked and refused.
	ErrRejected = errors.New("recaptcha rejected")
	// ErrUnavailable means the verification service could not be reached.
	ErrUnavailable = errors.New("recaptcha unavailable")
)

// VerificationError carries the message shown to the client.
type VerificationError struct {
	Kind    error // ErrRejected or ErrUnavailable
	Message string
	Score   *float64
}

func (e *VerificationError) Error() string { return e.Message }
func (e *VerificationError) Unwrap() error { return e.Kind }

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verifier checks reCAPTCHA v3 tokens against the siteverify endpoint.
type Verifier struct {
	secret   string
	url      string
	minScore float64
	bypass   bool
	http     *resty.Client
	log      zerolog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg config.RecaptchaConfig, log zerolog.Logger) *Verifier {
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = 0.3
	}
	return &Verifier{
		secret:   cfg.SecretKey,
		url:      cfg.VerifyURL,
		minScore: minScore,
		bypass:   cfg.Bypass,
		http:     resty.New().SetTimeout(10 * time.Second),
		log:      log.With().Str("component", "recaptcha").Logger(),
	}
}

// Verify accepts the token or returns a *VerificationError.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v.bypass {
		v.log.Debug().Msg("reCAPTCHA bypassed")
		return nil
	}

	form := map[string]string{
		"secret":   v.secret,
		"response": token,
	}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}

	var result siteVerifyResponse
	resp, err := v.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post(v.url)
	if err != nil || resp.IsError() {
		v.log.Error().Err(err).Msg("❌ reCAPTCHA error")
		return &VerificationError{Kind: ErrUnavailable, Message: "Failed to verify reCAPTCHA. Please try again."}
	}

	if !result.Success {
		msg := "reCAPTCHA verification failed: Unknown error"
		if len(result.ErrorCodes) > 0 {
			msg = "reCAPTCHA verification failed: " + strings.Join(result.ErrorCodes, ", ")
			if result.ErrorCodes[0] == "invalid-input-response" {
				msg = "reCAPTCHA token is invalid or expired. Please refresh the page and try again."
			}
		}
		return &VerificationError{Kind: ErrRejected, Message: msg}
	}

	if result.Score != nil && *result.Score < v.minScore {
		v.log.Warn().Float64("score", *result.Score).Msg("❌ reCAPTCHA score too low")
		return &VerificationError{Kind: ErrRejected, Message: "Security verification failed. Please try again.", Score: result.Score}
	}

	if result.Score != nil {
		v.log.Debug().Float64("score", *result.Score).Str("action", result.Action).Msgf("✅ reCAPTCHA passed (score: %.1f)", *result.Score)
	}
	return nil
}
