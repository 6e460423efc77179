package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/buildinfo"
	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/database"
	"github.com/crexpressinc/formsgate/internal/forms"
	"github.com/crexpressinc/formsgate/internal/intake"
	"github.com/crexpressinc/formsgate/internal/middleware"
	"github.com/crexpressinc/formsgate/internal/ratelimit"
	"github.com/crexpressinc/formsgate/internal/retrieval"
	"github.com/crexpressinc/formsgate/internal/signedlink"
	"github.com/crexpressinc/formsgate/internal/storage"
	"github.com/crexpressinc/formsgate/internal/submissions"
	"github.com/crexpressinc/formsgate/internal/websocket"
)

// Deps are the services the HTTP layer talks to
type Deps struct {
	Config      *config.Config
	DB          *database.DB
	Blobs       storage.Blob
	Leads       *intake.Service
	Limiter     ratelimit.Limiter
	Forms       *forms.Registry
	Pipeline    *forms.Pipeline
	Submissions *submissions.Store
	Gate        *retrieval.Gate
	Issuer      *signedlink.Issuer
	Hub         *websocket.Hub
	Log         zerolog.Logger
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	cfg         *config.Config
	db          *database.DB
	blobs       storage.Blob
	leads       *intake.Service
	limiter     ratelimit.Limiter
	forms       *forms.Registry
	pipeline    *forms.Pipeline
	submissions *submissions.Store
	gate        *retrieval.Gate
	issuer      *signedlink.Issuer
	hub         *websocket.Hub
	upgrader    gorillaws.Upgrader
	now         func() time.Time
	log         zerolog.Logger
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	r := &Router{
		Router:      mux.NewRouter(),
		cfg:         d.Config,
		db:          d.DB,
		blobs:       d.Blobs,
		leads:       d.Leads,
		limiter:     d.Limiter,
		forms:       d.Forms,
		pipeline:    d.Pipeline,
		submissions: d.Submissions,
		gate:        d.Gate,
		issuer:      d.Issuer,
		hub:         d.Hub,
		now:         time.Now,
		log:         d.Log.With().Str("component", "http").Logger(),
	}
	r.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.checkOrigin,
	}

	r.Use(middleware.RequestLogger(r.log))

	// Operations
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Signed artifact downloads
	r.HandleFunc("/download/{submissionId}/{kind}", r.download).Methods("GET")
	r.HandleFunc("/api/download/{submissionId}/{kind}", r.download).Methods("GET")

	// Admin routes (protected), registered before the public /api subrouter
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(middleware.AdminAuth(r.cfg.JWTSecret, r.cfg.Auth.AdminEmailDomain))
	admin.HandleFunc("/forms", r.listForms).Methods("GET")
	admin.HandleFunc("/forms", r.createForm).Methods("POST")
	admin.HandleFunc("/create-form", r.createForm).Methods("POST")
	admin.HandleFunc("/forms/{id}", r.updateForm).Methods("PATCH")
	admin.HandleFunc("/forms/{id}", r.deleteForm).Methods("DELETE")
	admin.HandleFunc("/delete-form/{id}", r.deleteForm).Methods("DELETE")
	admin.HandleFunc("/forms/{id}/submissions", r.listFormSubmissions).Methods("GET")
	admin.HandleFunc("/form-links", r.createFormLink).Methods("POST")
	admin.HandleFunc("/create-form-link", r.createFormLink).Methods("POST")
	admin.HandleFunc("/submissions", r.listSubmissions).Methods("GET")
	admin.HandleFunc("/submissions/{id}", r.getSubmission).Methods("GET")
	admin.HandleFunc("/submissions/{id}", r.deleteSubmission).Methods("DELETE")
	admin.HandleFunc("/submissions/{id}/pdf", r.regeneratePDF).Methods("GET")
	admin.HandleFunc("/submissions/{id}/links", r.freshLinks).Methods("POST")
	admin.HandleFunc("/ws", r.adminFeed).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/refresh", r.refresh).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// Public lead forms
	api := r.PathPrefix("/api").Subrouter()
	for path, kind := range leadRoutes {
		api.HandleFunc(path, r.submitLead(kind)).Methods("POST")
	}

	// Managed forms
	api.HandleFunc("/form/submit", r.submitForm).Methods("POST")
	api.HandleFunc("/submit-form", r.submitForm).Methods("POST")
	api.HandleFunc("/forms/{slug}", r.getPublicForm).Methods("GET")

	return r
}

// Handler returns the router wrapped in the outer middleware
func (r *Router) Handler() http.Handler {
	return middleware.CORS(r.cfg.CORSAllowedOrigins)(r)
}

// healthCheck reports database and blob storage health
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"database": "ok", "storage": "ok"}
	if err := r.db.Ping(ctx); err != nil {
		r.log.Error().Err(err).Msg("❌ Health: database unreachable")
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	}
	if err := r.blobs.Health(ctx); err != nil {
		r.log.Error().Err(err).Msg("❌ Health: storage unreachable")
		checks["storage"] = "error"
		status = http.StatusServiceUnavailable
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":    state,
		"checks":    checks,
		"version":   buildinfo.Version(),
		"startedAt": buildinfo.StartTime,
	})
}

// checkOrigin admits websocket upgrades from the configured site origins
func (r *Router) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" || origin == r.cfg.PublicBaseURL {
		return true
	}
	for _, o := range r.cfg.CORSAllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
