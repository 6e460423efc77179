package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crexpressinc/formsgate/internal/ratelimit"
	"github.com/crexpressinc/formsgate/internal/services/recaptcha"
)

const contactBody = `{"formData":{"name":"Dana Ruiz","email":"dana@example.com","message":"Need a warehouse quote"},"recaptchaToken":"tok"}`

func TestSubmitLead(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/submit-contact", contactBody, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "email_1", body["id"])
	assert.Equal(t, "Contact form submitted successfully", body["message"])
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "New Contact Form: General Inquiry - Dana Ruiz", f.mail.sent[0].Subject)
}

func TestSubmitLeadValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/submit-contact", `{"formData":{"name":"D","email":"nope"},"recaptchaToken":"tok"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Invalid form data", body["error"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details, "email")
	assert.Empty(t, f.mail.sent)
}

func TestSubmitLeadMalformed(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/submit-service-quote", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decode(t, w)["error"])
}

func TestSubmitLeadCaptchaRejected(t *testing.T) {
	f := newFixture(t, withCaptcha(fakeCaptcha{err: &recaptcha.VerificationError{
		Kind:    recaptcha.ErrRejected,
		Message: "Security verification failed. Please try again.",
	}}))

	w := f.do(t, http.MethodPost, "/api/submit-contact", contactBody, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Security verification failed. Please try again.", decode(t, w)["error"])
}

func TestNewsletterNotConfigured(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/subscribe-newsletter", `{"name":"Dana","email":"dana@example.com","recaptchaToken":"tok"}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Newsletter service not configured", decode(t, w)["error"])
}

func TestSubmitLeadRateLimited(t *testing.T) {
	f := newFixture(t, withLimiter(ratelimit.NewMemoryLimiter(1, time.Hour)))

	w := f.do(t, http.MethodPost, "/api/submit-contact", contactBody, "")
	require.Equal(t, http.StatusOK, w.Code)

	// the limit is shared across lead forms
	w = f.do(t, http.MethodPost, "/api/submit-drayage-quote", contactBody, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Regexp(t, `^Too many requests\. Please try again in \d+ minutes\.$`, decode(t, w)["error"])
	assert.Len(t, f.mail.sent, 1)
}

func TestLeadRoutesCoverEveryKind(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range leadRoutes {
		seen[string(kind)] = true
	}
	assert.Len(t, seen, 7)
}
