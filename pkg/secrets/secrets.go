package secrets

import (
	"context"

	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/logger"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Secret keys, also used as environment variable names when Vault has no value.
const (
	KeyJWTSecret    = "jwt_secret"
	KeyOpenAIAPIKey = "openai_api_key"
	KeySMTPPassword = "smtp_password"
)

// ApplyTo overwrites the credential fields of cfg with values from m.
// Fields keep their configured value when m has nothing for them.
func ApplyTo(ctx context.Context, m Manager, cfg *config.Config, log *logger.Logger) {
	fields := []struct {
		key  string
		dest *string
	}{
		{KeyJWTSecret, &cfg.JWT.Secret},
		{KeyOpenAIAPIKey, &cfg.AI.APIKey},
		{KeySMTPPassword, &cfg.Mail.Password},
	}
	for _, f := range fields {
		value, err := m.GetSecret(ctx, f.key)
		if err != nil || value == "" {
			continue
		}
		*f.dest = value
		log.Debug("Secret resolved", "key", f.key)
	}
}
