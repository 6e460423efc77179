package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/crexpressinc/formsgate/internal/buildinfo"
	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/database"
	"github.com/crexpressinc/formsgate/internal/forms"
	"github.com/crexpressinc/formsgate/internal/handlers"
	"github.com/crexpressinc/formsgate/internal/intake"
	"github.com/crexpressinc/formsgate/internal/logger"
	"github.com/crexpressinc/formsgate/internal/ratelimit"
	"github.com/crexpressinc/formsgate/internal/retrieval"
	"github.com/crexpressinc/formsgate/internal/services/mailer"
	"github.com/crexpressinc/formsgate/internal/services/recaptcha"
	"github.com/crexpressinc/formsgate/internal/services/webhook"
	"github.com/crexpressinc/formsgate/internal/signedlink"
	"github.com/crexpressinc/formsgate/internal/storage"
	"github.com/crexpressinc/formsgate/internal/submissions"
	"github.com/crexpressinc/formsgate/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("Failed to build logger")
	}
	log.Info().Str("version", buildinfo.Version()).Str("env", cfg.NodeEnv).Msg("🚀 Starting forms gateway")

	// Download links cannot be signed or checked without a key
	if cfg.DownloadURLSecret == "" {
		log.Fatal().Msg("❌ DOWNLOAD_URL_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize database (embedded when no external one is configured)
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	// Note: db.Close() is called in the shutdown sequence below

	log.Info().Msg("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("❌ Migration failed")
	}
	log.Info().Msg("✅ Schema synchronized successfully")

	// 3. Artifact storage and rate limiting
	blobs, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize storage")
	}

	limiter, closeLimiter, err := ratelimit.New(ctx, cfg.RateLimit, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize rate limiter")
	}

	// 4. Outbound services
	mail := mailer.NewClient(cfg.Mail, log)
	if !mail.Enabled() {
		log.Warn().Msg("⚠️ RESEND_API_KEY not set, lead emails are disabled")
	}
	fwd := webhook.NewForwarder(log)
	captcha := recaptcha.NewVerifier(cfg.Recaptcha, log)

	// 5. Domain services
	store := submissions.NewStore(db, blobs, log)
	registry := forms.NewRegistry(db, store, log)
	if _, err := registry.EnsureDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create default forms")
	}

	codec := signedlink.NewCodec(cfg.DownloadURLSecret)
	issuer := signedlink.NewIssuer(codec)
	gate := retrieval.NewGate(signedlink.NewVerifier(codec), store, blobs, log)

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	pipeline := forms.NewPipeline(registry, store, issuer, fwd, hub, forms.PipelineConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		LinkTTL:       cfg.DownloadLinkTTL,
		WebhookURL:    cfg.Automation.OnboardingWebhookURL,
		MaxUpload:     cfg.MaxUploadBytes,
	}, log)

	// 6. Background retention worker
	if cfg.ArtifactRetentionDays > 0 {
		maxAge := time.Duration(cfg.ArtifactRetentionDays) * 24 * time.Hour
		go submissions.NewRetention(store, maxAge, time.Hour, log).Run(ctx)
		log.Info().Int("days", cfg.ArtifactRetentionDays).Msg("✅ Artifact retention worker started")
	}

	// 7. HTTP router
	router := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		DB:          db,
		Blobs:       blobs,
		Leads:       intake.NewService(mail, fwd, captcha, cfg.Automation, log),
		Limiter:     limiter,
		Forms:       registry,
		Pipeline:    pipeline,
		Submissions: store,
		Gate:        gate,
		Issuer:      issuer,
		Hub:         hub,
		Log:         log,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("base_url", cfg.PublicBaseURL).Msg("🚀 Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Warn().Msg("⚠️ Received shutdown signal, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := closeLimiter(); err != nil {
		log.Error().Err(err).Msg("Rate limiter close error")
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Info().Msg("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Database close error")
	}

	log.Info().Msg("✅ Shutdown complete")
}
