package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("DEFAULT_LANGUAGE", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowOrigins, "no wildcard by default")
	assert.Equal(t, "en", cfg.DefaultLanguage)
	assert.Equal(t, 10, cfg.MaxPriority)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CSRF_TTL", "not-a-duration")
	t.Setenv("MAX_PRIORITY", "5")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://luxio.shop , ,https://www.luxio.shop")
	t.Setenv("PUBLIC_BASE_URL", "https://luxio.shop/")
	t.Setenv("BANK_IBAN", "FR7630006000011234567890189")

	cfg := LoadConfig()

	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, time.Hour, cfg.CSRFTTL)
	assert.Equal(t, 5, cfg.MaxPriority)
	assert.Equal(t, []string{"https://luxio.shop", "https://www.luxio.shop"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "https://luxio.shop", cfg.PublicBaseURL)
	assert.Equal(t, "FR7630006000011234567890189", cfg.BankIBAN)
}

func TestLoadConfig_CORSFollowsPublicBaseURL(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	t.Setenv("PUBLIC_BASE_URL", "https://luxio.shop/")

	assert.Equal(t, []string{"https://luxio.shop"}, LoadConfig().CORSAllowOrigins)
}

func TestGetEnvFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	t.Setenv("JWT_SECRET_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	assert.Equal(t, "from-file", getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", "default"))

	t.Setenv("JWT_SECRET_FILE", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, "from-env", getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", "default"))
}
