package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are resolved in three layers: built-in defaults, an optional TOML file
// named by CONFIG_FILE, then environment variables.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	JWT           JWTConfig           `toml:"jwt"`
	Security      SecurityConfig      `toml:"security"`
	Logging       LoggingConfig       `toml:"logging"`
	AI            AIConfig            `toml:"ai"`
	Redis         RedisConfig         `toml:"redis"`
	Cache         CacheConfig         `toml:"cache"`
	RabbitMQ      RabbitMQConfig      `toml:"rabbitmq"`
	Mail          MailConfig          `toml:"mail"`
	Analytics     AnalyticsConfig     `toml:"analytics"`
	Observability ObservabilityConfig `toml:"observability"`
}

type ServerConfig struct {
	Port              string        `toml:"port"`
	GRPCPort          string        `toml:"grpc_port"`
	Env               string        `toml:"env"`
	Timeout           time.Duration `toml:"timeout"`
	BaseURL           string        `toml:"base_url"`
	FrontendURL       string        `toml:"frontend_url"`
	OpenAPISchemaPath string        `toml:"openapi_schema_path"`
}

type DatabaseConfig struct {
	Host     string        `toml:"host"`
	Port     string        `toml:"port"`
	User     string        `toml:"user"`
	Password string        `toml:"password"`
	Name     string        `toml:"name"`
	SSLMode  string        `toml:"ssl_mode"`
	MaxConns int           `toml:"max_conns"`
	Timeout  time.Duration `toml:"timeout"`
	Retries  int           `toml:"retries"`
}

type JWTConfig struct {
	Secret string        `toml:"secret"`
	Expiry time.Duration `toml:"expiry"`
}

type SecurityConfig struct {
	RateLimit      float64  `toml:"rate_limit"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
	AllowedOrigins []string `toml:"allowed_origins"`
	TrustedProxies []string `toml:"trusted_proxies"`
	MaxBodySize    int64    `toml:"max_body_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AIConfig struct {
	BaseURL             string        `toml:"base_url"`
	APIKey              string        `toml:"api_key"`
	Model               string        `toml:"model"`
	Timeout             time.Duration `toml:"timeout"`
	MaxAttempts         int           `toml:"max_attempts"`
	RetryBackoff        time.Duration `toml:"retry_backoff"`
	DefaultSystemPrompt string        `toml:"default_system_prompt"`
}

type RedisConfig struct {
	URL      string `toml:"url"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type CacheConfig struct {
	Enabled     bool          `toml:"enabled"`
	TTL         time.Duration `toml:"ttl"`
	MaxSize     int           `toml:"max_size"`
	PurgeWindow time.Duration `toml:"purge_window"`
}

type RabbitMQConfig struct {
	URL        string `toml:"url"`
	EmailQueue string `toml:"email_queue"`
}

type MailConfig struct {
	SMTPHost string        `toml:"smtp_host"`
	SMTPPort int           `toml:"smtp_port"`
	Username string        `toml:"username"`
	Password string        `toml:"password"`
	From     string        `toml:"from"`
	Timeout  time.Duration `toml:"timeout"` // one delivery, dial to QUIT
}

type AnalyticsConfig struct {
	DefaultDays  int `toml:"default_days"`
	MaxDays      int `toml:"max_days"`
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

type ObservabilityConfig struct {
	TracingEnabled bool   `toml:"tracing_enabled"`
	ServiceName    string `toml:"service_name"`
}

const defaultSystemPrompt = "You are Mindcare, a warm and supportive mental wellbeing assistant. " +
	"Listen carefully, respond with empathy, and encourage professional help when someone may be at risk. " +
	"You do not diagnose conditions or prescribe treatment."

var (
	instance *Config
	once     sync.Once
)

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Port = "8081"
	cfg.Server.GRPCPort = ""
	cfg.Server.Env = "development"
	cfg.Server.Timeout = 30 * time.Second
	cfg.Server.BaseURL = "http://localhost:8081"
	cfg.Server.FrontendURL = "http://localhost:3000"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Name = "mindcare"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.Timeout = 5 * time.Second
	cfg.Database.Retries = 5

	cfg.JWT.Expiry = 24 * time.Hour

	cfg.Security.RateLimit = 5
	cfg.Security.RateLimitBurst = 10
	cfg.Security.AllowedOrigins = []string{"*"}
	cfg.Security.TrustedProxies = []string{"127.0.0.1"}
	cfg.Security.MaxBodySize = 1 << 20

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.Timeout = 30 * time.Second
	cfg.AI.MaxAttempts = 3
	cfg.AI.RetryBackoff = 500 * time.Millisecond
	cfg.AI.DefaultSystemPrompt = defaultSystemPrompt

	cfg.Cache.Enabled = true
	cfg.Cache.TTL = 5 * time.Minute
	cfg.Cache.MaxSize = 1000
	cfg.Cache.PurgeWindow = 10 * time.Minute

	cfg.RabbitMQ.EmailQueue = "mindcare.emails"

	cfg.Mail.SMTPPort = 587
	cfg.Mail.From = "Mindcare <no-reply@mindcare.local>"
	cfg.Mail.Timeout = 10 * time.Second

	cfg.Analytics.DefaultDays = 30
	cfg.Analytics.MaxDays = 365
	cfg.Analytics.DefaultLimit = 50
	cfg.Analytics.MaxLimit = 200

	cfg.Observability.ServiceName = "mindcare-backend"

	return cfg
}

// Load builds a fresh Config from defaults, the optional TOML file and the environment
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path := getEnvString("CONFIG_FILE", ""); path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		}
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// New returns the process-wide Config, loading it on first use
func New() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v, falling back to defaults and environment\n", err)
			cfg = Default()
			overrideFromEnv(cfg)
		}
		instance = cfg
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func overrideFromEnv(cfg *Config) {
	cfg.Server.Port = getEnvString("PORT", cfg.Server.Port)
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", cfg.Server.GRPCPort)
	cfg.Server.Env = getEnvString("APP_ENV", cfg.Server.Env)
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", cfg.Server.Timeout)
	cfg.Server.BaseURL = getEnvString("BASE_URL", cfg.Server.BaseURL)
	cfg.Server.FrontendURL = getEnvString("FRONTEND_URL", cfg.Server.FrontendURL)
	cfg.Server.OpenAPISchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", cfg.Server.OpenAPISchemaPath)

	cfg.Database.Host = getEnvString("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvString("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvString("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvString("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnvString("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", cfg.Database.Timeout)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", cfg.Database.Retries)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", cfg.JWT.Expiry)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", cfg.Security.RateLimit)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.Security.RateLimitBurst)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", cfg.Security.AllowedOrigins)
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", cfg.Security.TrustedProxies)
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", cfg.Security.MaxBodySize)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvString("LOG_FORMAT", cfg.Logging.Format)

	cfg.AI.BaseURL = getEnvString("AI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.APIKey = getEnvString("OPENAI_API_KEY", cfg.AI.APIKey)
	cfg.AI.Model = getEnvString("AI_MODEL", cfg.AI.Model)
	cfg.AI.Timeout = getEnvDuration("AI_TIMEOUT", cfg.AI.Timeout)
	cfg.AI.MaxAttempts = getEnvInt("AI_MAX_ATTEMPTS", cfg.AI.MaxAttempts)
	cfg.AI.RetryBackoff = getEnvDuration("AI_RETRY_BACKOFF", cfg.AI.RetryBackoff)
	cfg.AI.DefaultSystemPrompt = getEnvString("AI_DEFAULT_SYSTEM_PROMPT", cfg.AI.DefaultSystemPrompt)

	cfg.Redis.URL = getEnvString("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", cfg.Cache.MaxSize)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", cfg.Cache.PurgeWindow)

	cfg.RabbitMQ.URL = getEnvString("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.EmailQueue = getEnvString("RABBITMQ_EMAIL_QUEUE", cfg.RabbitMQ.EmailQueue)

	cfg.Mail.SMTPHost = getEnvString("SMTP_HOST", cfg.Mail.SMTPHost)
	cfg.Mail.SMTPPort = getEnvInt("SMTP_PORT", cfg.Mail.SMTPPort)
	cfg.Mail.Username = getEnvString("SMTP_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = getEnvString("SMTP_PASSWORD", cfg.Mail.Password)
	cfg.Mail.From = getEnvString("MAIL_FROM", cfg.Mail.From)
	cfg.Mail.Timeout = getEnvDuration("SMTP_TIMEOUT", cfg.Mail.Timeout)

	cfg.Analytics.DefaultDays = getEnvInt("ANALYTICS_DEFAULT_DAYS", cfg.Analytics.DefaultDays)
	cfg.Analytics.MaxDays = getEnvInt("ANALYTICS_MAX_DAYS", cfg.Analytics.MaxDays)
	cfg.Analytics.DefaultLimit = getEnvInt("ANALYTICS_DEFAULT_LIMIT", cfg.Analytics.DefaultLimit)
	cfg.Analytics.MaxLimit = getEnvInt("ANALYTICS_MAX_LIMIT", cfg.Analytics.MaxLimit)

	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", cfg.Observability.TracingEnabled)
	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", cfg.Observability.ServiceName)
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
