package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/crexpressinc/formsgate/internal/forms"
	"github.com/crexpressinc/formsgate/internal/middleware"
	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/submissions"
	"github.com/crexpressinc/formsgate/internal/websocket"
)

// freshLinkTTL is the lifetime of links issued from the admin panel
const freshLinkTTL = 24 * time.Hour

// listForms returns all forms with submission counts
func (r *Router) listForms(w http.ResponseWriter, req *http.Request) {
	list, err := r.forms.List(req.Context())
	if err != nil {
		r.log.Error().Err(err).Msg("❌ Failed to list forms")
		respondError(w, http.StatusInternalServerError, "Failed to fetch forms")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"forms": list})
}

// createForm creates a new active form
func (r *Router) createForm(w http.ResponseWriter, req *http.Request) {
	var in forms.CreateInput
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	form, err := r.forms.Create(req.Context(), in)
	if err != nil {
		if errors.Is(err, forms.ErrNameRequired) {
			respondError(w, http.StatusBadRequest, "Form name is required")
			return
		}
		r.log.Error().Err(err).Msg("❌ Failed to create form")
		respondError(w, http.StatusInternalServerError, "Failed to create form")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "form": form})
}

// updateForm opens or closes a form
func (r *Router) updateForm(w http.ResponseWriter, req *http.Request) {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.IsActive == nil {
		respondError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	id := mux.Vars(req)["id"]
	if err := r.forms.SetActive(req.Context(), id, *body.IsActive); err != nil {
		if errors.Is(err, forms.ErrFormNotFound) {
			respondError(w, http.StatusNotFound, "Form not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to update form")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id, "isActive": *body.IsActive})
}

// deleteForm removes a form together with its submissions and documents
func (r *Router) deleteForm(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	deleted, err := r.forms.Delete(req.Context(), id)
	if err != nil {
		if errors.Is(err, forms.ErrFormNotFound) {
			respondError(w, http.StatusNotFound, "Form not found")
			return
		}
		r.log.Error().Err(err).Str("form_id", id).Msg("❌ Failed to delete form")
		respondError(w, http.StatusInternalServerError, "Failed to delete form")
		return
	}

	r.hub.Publish(websocket.Event{Type: websocket.EventFormDeleted, FormID: id, At: r.now().UTC()})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"message":            "Form deleted successfully",
		"deletedSubmissions": deleted,
	})
}

// listFormSubmissions pages through the submissions of one form
func (r *Router) listFormSubmissions(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	form, err := r.forms.Get(req.Context(), id)
	if err != nil {
		if errors.Is(err, forms.ErrFormNotFound) {
			respondError(w, http.StatusNotFound, "Form not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch submissions")
		return
	}

	limit := 50
	if v, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit >= submissions.MaxListLimit {
		limit = submissions.MaxListLimit - 1
	}

	// one extra row tells whether another page exists
	subs, err := r.submissions.List(req.Context(), submissions.ListFilter{
		FormID: form.ID,
		Limit:  limit + 1,
		Cursor: req.URL.Query().Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, submissions.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "Invalid cursor")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch submissions")
		return
	}

	hasMore := len(subs) > limit
	var nextCursor *string
	if hasMore {
		subs = subs[:limit]
		last := subs[limit-1].ID
		nextCursor = &last
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"form":        form,
		"submissions": subs,
		"nextCursor":  nextCursor,
		"hasMore":     hasMore,
	})
}

// createFormLink issues a share link, optionally bound to a form
func (r *Router) createFormLink(w http.ResponseWriter, req *http.Request) {
	var in forms.LinkInput
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	link, err := r.forms.CreateLink(req.Context(), middleware.UserID(req.Context()), in)
	if err != nil {
		if errors.Is(err, forms.ErrFormNotFound) {
			respondError(w, http.StatusNotFound, "Form not found")
			return
		}
		r.log.Error().Err(err).Msg("❌ Failed to create form link")
		respondError(w, http.StatusInternalServerError, "Failed to create form link")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "formLink": link})
}

// listSubmissions searches submissions by company name
func (r *Router) listSubmissions(w http.ResponseWriter, req *http.Request) {
	subs, err := r.submissions.List(req.Context(), submissions.ListFilter{
		Search: req.URL.Query().Get("search"),
		Limit:  submissions.MaxListLimit,
	})
	if err != nil {
		r.log.Error().Err(err).Msg("❌ Failed to list submissions")
		respondError(w, http.StatusInternalServerError, "Failed to fetch submissions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

// getSubmission returns one submission with its artifacts
func (r *Router) getSubmission(w http.ResponseWriter, req *http.Request) {
	sub, ok := r.loadSubmission(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"submission": sub})
}

// deleteSubmission removes a submission and its documents
func (r *Router) deleteSubmission(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	res, err := r.submissions.DeleteSubmission(req.Context(), id)
	if err != nil {
		if errors.Is(err, submissions.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Submission not found")
			return
		}
		r.log.Error().Err(err).Str("submission_id", id).Msg("❌ Failed to delete submission")
		respondError(w, http.StatusInternalServerError, "Failed to delete submission")
		return
	}

	r.hub.Publish(websocket.Event{Type: websocket.EventSubmissionDeleted, SubmissionID: id, At: r.now().UTC()})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":              true,
		"message":              "Submission deleted successfully",
		"deletedArtifactCount": res.DeletedArtifactCount,
	})
}

// regeneratePDF renders the submission document again from stored data
func (r *Router) regeneratePDF(w http.ResponseWriter, req *http.Request) {
	sub, ok := r.loadSubmission(w, req)
	if !ok {
		return
	}

	form, err := r.forms.Get(req.Context(), sub.FormID)
	if err != nil && !errors.Is(err, forms.ErrFormNotFound) {
		respondError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}
	doc, err := forms.RenderDocument(form, sub)
	if err != nil {
		r.log.Error().Err(err).Str("submission_id", sub.ID).Msg("❌ Failed to render PDF")
		respondError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	company := "Unknown"
	if sub.CompanyName != nil && *sub.CompanyName != "" {
		company = *sub.CompanyName
	}
	filename := fmt.Sprintf("Onboarding_%s_%s.pdf", forms.SafeFilename(company), sub.ID)

	w.Header().Set("Content-Type", models.ContentTypePDF)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// freshLinks issues new short-lived download links for every artifact
func (r *Router) freshLinks(w http.ResponseWriter, req *http.Request) {
	sub, ok := r.loadSubmission(w, req)
	if !ok {
		return
	}

	type linkView struct {
		URL       string    `json:"url"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	links := make(map[models.ArtifactKind]linkView, len(sub.Artifacts))
	for _, art := range sub.Artifacts {
		link, err := r.issuer.IssueLink(sub.ID, string(art.Kind), freshLinkTTL)
		if err != nil {
			r.log.Error().Err(err).Str("submission_id", sub.ID).Msg("❌ Failed to issue download link")
			respondError(w, http.StatusInternalServerError, "Failed to issue download links")
			return
		}
		links[art.Kind] = linkView{URL: link.AbsoluteURL(r.cfg.PublicBaseURL), ExpiresAt: link.Expiry()}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"submissionId": sub.ID, "links": links})
}

// adminFeed upgrades to the live submission event stream
func (r *Router) adminFeed(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.hub, r.upgrader, w, req)
}

func (r *Router) loadSubmission(w http.ResponseWriter, req *http.Request) (*models.Submission, bool) {
	sub, err := r.submissions.Get(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		if errors.Is(err, submissions.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Submission not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch submission")
		return nil, false
	}
	return sub, true
}
