package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, 24, cfg.JWTExpiry)
	require.Equal(t, 7, cfg.RefreshExpiry)
	require.Equal(t, int64(10<<20), cfg.MaxUploadSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("JWT_EXPIRY", "2")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "5")
	t.Setenv("SMTP_USE_TLS", "true")

	cfg := Load()

	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 2, cfg.JWTExpiry)
	require.Equal(t, int64(5<<20), cfg.MaxUploadSize)
	require.True(t, cfg.SMTPUseTLS)
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("JWT_EXPIRY", "not-a-number")

	cfg := Load()
	require.Equal(t, 24, cfg.JWTExpiry)
}
