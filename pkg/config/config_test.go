package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 50, cfg.Analytics.DefaultLimit)
	assert.Equal(t, 30, cfg.Analytics.DefaultDays)
	assert.NotEmpty(t, cfg.AI.DefaultSystemPrompt)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverlaysFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mindcare.toml")
	content := `
[server]
port = "9000"
env = "production"

[analytics]
default_limit = 25

[cache]
ttl = "90s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	// environment wins over the file
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 25, cfg.Analytics.DefaultLimit)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = "), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidEnvironmentValuesKeepDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_MAX_CONNS", "lots")
	t.Setenv("JWT_EXPIRY", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
}
