package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DOWNLOAD_URL_SECRET", "  link-secret  ")
	t.Setenv("PUBLIC_BASE_URL", "https://www.crexpressinc.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "link-secret", cfg.DownloadURLSecret)
	assert.Equal(t, "https://www.crexpressinc.com", cfg.PublicBaseURL)
	assert.Equal(t, 7*24*time.Hour, cfg.DownloadLinkTTL)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.InDelta(t, 0.3, cfg.Recaptcha.MinScore, 0.0001)
	assert.Equal(t, ":3000", cfg.Addr())
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsUnknownStorageBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadRateLimit(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"zero max", "RATE_LIMIT_MAX", "0"},
		{"negative max", "RATE_LIMIT_MAX", "-1"},
		{"zero window", "RATE_LIMIT_WINDOW", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadParsesMailRecipients(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MAIL_TO", "ops@crexpressinc.com,sales@crexpressinc.com")
	t.Setenv("STORAGE_BACKEND", "S3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@crexpressinc.com", "sales@crexpressinc.com"}, cfg.Mail.To)
	assert.Equal(t, "s3", cfg.Storage.Backend)
}
