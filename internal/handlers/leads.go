package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/crexpressinc/formsgate/internal/intake"
	"github.com/crexpressinc/formsgate/internal/metrics"
	"github.com/crexpressinc/formsgate/internal/services/recaptcha"
	"github.com/crexpressinc/formsgate/internal/utils"
	"github.com/crexpressinc/formsgate/internal/validation"
)

// maxLeadBody bounds public lead request bodies
const maxLeadBody = 1 << 20

// leadRoutes maps public paths under /api to lead form kinds
var leadRoutes = map[string]intake.Kind{
	"/submit-contact":            intake.KindContact,
	"/submit-service-quote":      intake.KindServiceQuote,
	"/submit-location-quote":     intake.KindLocationQuote,
	"/submit-drayage-quote":      intake.KindDrayageQuote,
	"/subscribe-newsletter":      intake.KindNewsletter,
	"/submit-job-application":    intake.KindJobApplication,
	"/submit-driver-application": intake.KindDriverApplication,
}

// allow applies the per-IP submission limit. It writes the 429 response
// and returns false when the caller is over the limit. Limiter failures
// let the request through.
func (r *Router) allow(w http.ResponseWriter, req *http.Request, ip string) bool {
	if r.limiter == nil {
		return true
	}
	res, err := r.limiter.Allow(req.Context(), ip)
	if err != nil {
		r.log.Warn().Err(err).Str("ip", ip).Msg("⚠️ Rate limiter unavailable, allowing request")
		return true
	}
	if res.Allowed {
		return true
	}

	metrics.RecordRateLimited()
	wait := res.RetryAfter(r.now())
	minutes := int(math.Ceil(wait.Minutes()))
	w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
	respondError(w, http.StatusTooManyRequests, fmt.Sprintf("Too many requests. Please try again in %d minutes.", minutes))
	return false
}

// submitLead handles one public lead form
func (r *Router) submitLead(kind intake.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ip := utils.ClientIP(req)
		if !r.allow(w, req, ip) {
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxLeadBody))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		res, err := r.leads.Submit(req.Context(), kind, body, intake.Meta{
			IPAddress: ip,
			UserAgent: req.UserAgent(),
		})
		if err != nil {
			r.leadError(w, kind, err)
			return
		}

		out := map[string]interface{}{"success": true, "message": res.Message}
		if res.ID != "" {
			out["id"] = res.ID
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func (r *Router) leadError(w http.ResponseWriter, kind intake.Kind, err error) {
	var verr *validation.ValidationError
	var cerr *recaptcha.VerificationError
	var derr *intake.DeliveryError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid form data",
			"details": verr.Fields,
		})
	case errors.Is(err, intake.ErrMalformed):
		respondError(w, http.StatusBadRequest, "Invalid request body")
	case errors.As(err, &cerr):
		respondError(w, http.StatusBadRequest, cerr.Message)
	case errors.Is(err, intake.ErrNotConfigured):
		respondError(w, http.StatusInternalServerError, "Newsletter service not configured")
	case errors.As(err, &derr):
		respondError(w, http.StatusInternalServerError, derr.Message)
	default:
		r.log.Error().Err(err).Str("kind", string(kind)).Msg("❌ Lead submission failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
