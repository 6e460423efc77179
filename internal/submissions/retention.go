package submissions

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Retention periodically purges artifacts older than a fixed age.
type Retention struct {
	store    *Store
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewRetention creates a retention worker. maxAge must be positive.
func NewRetention(store *Store, maxAge, interval time.Duration, log zerolog.Logger) *Retention {
	return &Retention{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "retention").Logger(),
	}
}

// RunOnce purges artifacts created before now minus maxAge.
func (r *Retention) RunOnce(ctx context.Context) (int, error) {
	return r.store.PurgeArtifactsBefore(ctx, r.now().Add(-r.maxAge))
}

// Run purges once at start and then on every tick until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error().Err(err).Msg("❌ Artifact purge failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
