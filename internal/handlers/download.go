package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/crexpressinc/formsgate/internal/metrics"
	"github.com/crexpressinc/formsgate/internal/retrieval"
	"github.com/crexpressinc/formsgate/internal/signedlink"
)

// download streams an artifact behind a signed link
func (r *Router) download(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	q := req.URL.Query()

	dl, err := r.gate.Retrieve(req.Context(), vars["submissionId"], vars["kind"], q.Get("expires"), q.Get("signature"))
	if err != nil {
		r.downloadError(w, err)
		return
	}
	defer dl.Body.Close()

	h := w.Header()
	h.Set("Content-Type", dl.ContentType)
	if dl.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	h.Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		// client went away; nothing left to send
		r.log.Debug().Err(err).Str("submission_id", vars["submissionId"]).Msg("Download interrupted")
		metrics.RecordDownload("interrupted")
		return
	}
	metrics.RecordDownload("ok")
}

func (r *Router) downloadError(w http.ResponseWriter, err error) {
	if reason, ok := signedlink.ReasonOf(err); ok {
		metrics.RecordDownload(strings.ToLower(string(reason)))
		if reason == signedlink.ReasonMalformed {
			respondError(w, http.StatusBadRequest, "Invalid download link")
			return
		}
		// expired and bad signatures look the same to the caller
		respondError(w, http.StatusForbidden, "Download link is invalid or has expired")
		return
	}

	switch {
	case errors.Is(err, retrieval.ErrNotFound):
		metrics.RecordDownload("not_found")
		respondError(w, http.StatusNotFound, "File not found")
	default:
		metrics.RecordDownload("error")
		r.log.Error().Err(err).Msg("❌ Download failed")
		respondError(w, http.StatusInternalServerError, "Failed to download file")
	}
}
