package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// TokenSchemePaseto issues PASETO v4.local tokens (default).
	TokenSchemePaseto = "paseto"
	// TokenSchemeJWT issues JWT HS256 tokens.
	TokenSchemeJWT = "jwt"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AuthConfig struct {
	// Symmetric signing secret (must be 32 bytes for PASETO v4.local)
	Secret []byte
	// TokenScheme selects the token implementation: "paseto" or "jwt"
	TokenScheme   string
	TokenDuration time.Duration
	OTPDuration   time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
}

// Load reads configuration from environment variables.
// Defaults are for local development only and must never be used in a
// production deployment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var durErr error
	duration := func(key string, defaultValue time.Duration) time.Duration {
		d, err := getDurationEnv(key, defaultValue)
		if err != nil && durErr == nil {
			durErr = err
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: duration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "nexusauth"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			Secret:        []byte(getEnv("AUTH_SECRET", "dev-only-secret-key-32-bytes-ok!")),
			TokenScheme:   getEnv("TOKEN_SCHEME", TokenSchemePaseto),
			TokenDuration: duration("TOKEN_DURATION", time.Hour),
			OTPDuration:   duration("OTP_DURATION", 5*time.Minute),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FromAddress:  getEnv("SMTP_FROM", "no-reply@localhost"),
		},
	}

	if durErr != nil {
		return nil, durErr
	}

	switch cfg.Auth.TokenScheme {
	case TokenSchemePaseto:
		// PASETO v4.local requires exactly 32 key bytes
		if len(cfg.Auth.Secret) != 32 {
			return nil, fmt.Errorf("AUTH_SECRET must be exactly 32 bytes for scheme %q, got %d", TokenSchemePaseto, len(cfg.Auth.Secret))
		}
	case TokenSchemeJWT:
		if len(cfg.Auth.Secret) == 0 {
			return nil, fmt.Errorf("AUTH_SECRET must not be empty for scheme %q", TokenSchemeJWT)
		}
	default:
		return nil, fmt.Errorf("unknown TOKEN_SCHEME %q", cfg.Auth.TokenScheme)
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv accepts Go duration syntax ("30m", "1h") or whole seconds
// ("1800"). A set-but-unparsable value is an error rather than a silent
// fallback, so a typo cannot stretch a token or OTP lifetime.
func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: cannot parse %q as a duration or whole seconds", key, value)
	}

	return time.Duration(seconds) * time.Second, nil
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
