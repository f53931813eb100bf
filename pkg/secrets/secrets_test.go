package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/logger"
)

func TestDisabledManagerReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	m, err := NewVaultManager(VaultConfig{}, logger.Discard())
	require.NoError(t, err)
	defer m.Close()

	v, err := m.GetSecret(context.Background(), KeyOpenAIAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", v)

	_, err = m.GetSecret(context.Background(), "missing_key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "missing_key", "fallback"))
}

func TestEnabledManagerRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://vault:8200"}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestVaultManagerReadsKVv2(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/v1/secret/data/mindcare", r.URL.Path)
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"data": {"jwt_secret": "from-vault"},
				"metadata": {"created_time": "2026-01-01T00:00:00Z", "deletion_time": "", "destroyed": false, "version": 3}
			}
		}`))
	}))
	defer srv.Close()

	t.Setenv("SMTP_PASSWORD", "smtp-from-env")
	t.Setenv("OPENAI_API_KEY", "")

	m, err := NewVaultManager(VaultConfig{
		Enabled: true,
		Address: srv.URL,
		Token:   "root-token",
	}, logger.Discard())
	require.NoError(t, err)
	defer m.Close()

	cfg := config.Default()
	cfg.JWT.Secret = "configured"
	cfg.AI.APIKey = "configured-key"
	ApplyTo(context.Background(), m, cfg, logger.Discard())

	assert.Equal(t, "from-vault", cfg.JWT.Secret)
	assert.Equal(t, "configured-key", cfg.AI.APIKey)
	assert.Equal(t, "smtp-from-env", cfg.Mail.Password)

	// served from cache the second time
	before := hits
	v, err := m.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", v)
	assert.Equal(t, before, hits)
}
