package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crexpressinc/formsgate/internal/forms"
	"github.com/crexpressinc/formsgate/internal/utils"
	"github.com/crexpressinc/formsgate/internal/validation"
)

// maxFormBody bounds managed form bodies; the W-9 travels base64 encoded
const maxFormBody = 16 << 20

// submitForm handles a managed form submission. The body is the form data
// with the envelope fields slug, formId, w9Upload and token mixed in.
func (r *Router) submitForm(w http.ResponseWriter, req *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxFormBody)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	take := func(key string) string {
		v, _ := body[key].(string)
		delete(body, key)
		return v
	}
	in := forms.Request{
		Slug:      take("slug"),
		FormID:    take("formId"),
		W9Base64:  take("w9Upload"),
		LinkToken: take("token"),
		IPAddress: utils.ClientIP(req),
		UserAgent: req.UserAgent(),
	}
	delete(body, "recaptchaToken")
	in.Payload = body

	res, err := r.pipeline.Submit(req.Context(), in)
	if err != nil {
		r.formError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"submission_id": res.SubmissionID,
		"message":       "Form submitted successfully",
		"links":         res.Links,
	})
}

func (r *Router) formError(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.Is(err, forms.ErrFormNotFound):
		respondError(w, http.StatusNotFound, "Invalid form")
	case errors.Is(err, forms.ErrFormInactive):
		respondError(w, http.StatusBadRequest, "Form is no longer active")
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid form data",
			"details": verr.Fields,
		})
	case errors.Is(err, forms.ErrInvalidUpload):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, forms.ErrLinkUnavailable):
		respondError(w, http.StatusGone, "This form link is no longer available")
	default:
		r.log.Error().Err(err).Msg("❌ Form submission failed")
		respondError(w, http.StatusInternalServerError, "Failed to submit form")
	}
}

// getPublicForm returns the public definition of a form by slug
func (r *Router) getPublicForm(w http.ResponseWriter, req *http.Request) {
	form, err := r.forms.GetBySlug(req.Context(), mux.Vars(req)["slug"])
	if err != nil {
		if errors.Is(err, forms.ErrFormNotFound) {
			respondError(w, http.StatusNotFound, "Form not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load form")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"form": map[string]interface{}{
			"id":          form.ID,
			"name":        form.Name,
			"slug":        form.Slug,
			"formType":    form.FormType,
			"description": form.Description,
			"isActive":    form.IsActive,
		},
	})
}
