package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crexpressinc/formsgate/internal/forms"
	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/submissions"
)

// samplePDF is the smallest byte string sniffed as a PDF
var samplePDF = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), 64)...)

func onboardingBody(formID string) map[string]interface{} {
	return map[string]interface{}{
		"formId":                  formID,
		"companyLegalName":        "Acme Freight",
		"primaryContactFirstName": "Dana",
		"primaryContactLastName":  "Ruiz",
		"primaryContactEmail":     "dana@acme.com",
		"primaryContactPhone":     "312-555-0100",
		"billingAddressLine1":     "1 Main St",
		"billingCity":             "Chicago",
		"billingState":            "IL",
		"billingZipCode":          "60601",
		"paymentMethod":           "ACH",
	}
}

func (f *fixture) createForm(t *testing.T) *models.Form {
	t.Helper()
	form, err := f.registry.Create(context.Background(), forms.CreateInput{Name: "Carrier Onboarding"})
	require.NoError(t, err)
	return form
}

// submit posts an onboarding form with a W-9 and returns the response body
func (f *fixture) submit(t *testing.T, form *models.Form) map[string]interface{} {
	t.Helper()
	body := onboardingBody(form.ID)
	body["w9Upload"] = base64.StdEncoding.EncodeToString(samplePDF)

	w := f.do(t, http.MethodPost, "/api/form/submit", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func TestSubmitFormAndDownload(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)

	res := f.submit(t, form)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "Form submitted successfully", res["message"])
	id, _ := res["submission_id"].(string)
	require.NotEmpty(t, id)

	links, ok := res["links"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, links, 2)

	w := f.do(t, http.MethodGet, pathOf(t, links["w9"].(string)), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, samplePDF, w.Body.Bytes())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, strconv.Itoa(len(samplePDF)), w.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="w9_`+id+`.pdf"`, w.Header().Get("Content-Disposition"))

	w = f.do(t, http.MethodGet, pathOf(t, links["onboarding"].(string)), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	sub, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub.IPAddress)
	assert.Equal(t, "203.0.113.7", *sub.IPAddress)
	assert.NotContains(t, sub.Payload, "formId")
	assert.NotContains(t, sub.Payload, "w9Upload")
}

func TestSubmitFormBySlugAlias(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)

	body := onboardingBody("")
	delete(body, "formId")
	body["slug"] = form.Slug
	w := f.do(t, http.MethodPost, "/api/submit-form", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	links := decode(t, w)["links"].(map[string]interface{})
	assert.Len(t, links, 1)
}

func TestSubmitFormErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.createForm(t)
	closed := f.createForm(t)
	require.NoError(t, f.registry.SetActive(ctx, closed.ID, false))
	link, err := f.registry.CreateLink(ctx, "admin-1", forms.LinkInput{})
	require.NoError(t, err)
	_, err = f.registry.ConsumeLink(ctx, link.Token, "")
	require.NoError(t, err)

	invalid := onboardingBody(form.ID)
	delete(invalid, "companyLegalName")

	notPDF := onboardingBody(form.ID)
	notPDF["w9Upload"] = base64.StdEncoding.EncodeToString([]byte("just some text, not a pdf"))

	usedLink := onboardingBody(form.ID)
	usedLink["token"] = link.Token

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed", `{"formId":`, http.StatusBadRequest},
		{"unknown form", onboardingBody("missing"), http.StatusNotFound},
		{"inactive form", onboardingBody(closed.ID), http.StatusBadRequest},
		{"missing field", invalid, http.StatusBadRequest},
		{"not a pdf", notPDF, http.StatusBadRequest},
		{"used link", usedLink, http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/form/submit", tt.body, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	subs, err := f.store.List(ctx, submissions.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Zero(t, f.blobs.Len())
}

func TestGetPublicForm(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)

	w := f.do(t, http.MethodGet, "/api/forms/"+form.Slug, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)["form"].(map[string]interface{})
	assert.Equal(t, form.ID, got["id"])
	assert.Equal(t, models.FormTypeCarrierOnboarding, got["formType"])
	assert.Equal(t, true, got["isActive"])

	w = f.do(t, http.MethodGet, "/api/forms/no-such-form", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadDenials(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)
	res := f.submit(t, form)
	id := res["submission_id"].(string)
	good, err := url.Parse(res["links"].(map[string]interface{})["onboarding"].(string))
	require.NoError(t, err)
	q := good.Query()

	past := time.Now().Add(-time.Minute).UnixMilli()
	expiredSig, err := f.codec.Sign(id, "onboarding", past)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour).UnixMilli()
	ghostSig, err := f.codec.Sign("ghost", "onboarding", future)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"non numeric expiry", "/download/" + id + "/onboarding?expires=soon&signature=" + q.Get("signature"), http.StatusBadRequest},
		{"missing signature", "/download/" + id + "/onboarding?expires=" + q.Get("expires"), http.StatusBadRequest},
		{"unknown kind", "/download/" + id + "/invoice?expires=" + q.Get("expires") + "&signature=" + q.Get("signature"), http.StatusBadRequest},
		{"wrong kind", "/download/" + id + "/w9?expires=" + q.Get("expires") + "&signature=" + q.Get("signature"), http.StatusForbidden},
		{"tampered expiry", "/download/" + id + "/onboarding?expires=" + strconv.FormatInt(future, 10) + "&signature=" + q.Get("signature"), http.StatusForbidden},
		{"expired", "/download/" + id + "/onboarding?expires=" + strconv.FormatInt(past, 10) + "&signature=" + expiredSig, http.StatusForbidden},
		{"gone", "/download/ghost/onboarding?expires=" + strconv.FormatInt(future, 10) + "&signature=" + ghostSig, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.target, nil, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := f.do(t, http.MethodGet, "/api"+good.RequestURI(), nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDownloadAfterDelete(t *testing.T) {
	f := newFixture(t)
	form := f.createForm(t)
	res := f.submit(t, form)
	link := pathOf(t, res["links"].(map[string]interface{})["onboarding"].(string))

	_, err := f.store.DeleteSubmission(context.Background(), res["submission_id"].(string))
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, link, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
