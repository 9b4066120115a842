package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// RedisURL selects Redis-backed stores; empty means in-memory (development only)
	RedisURL    string
	DatabaseURL string

	SigningKeyPath string
	SessionTTL     time.Duration
	NonceTTL       time.Duration

	SignatureScheme string
	EIP712          EIP712Config

	AllowedOrigins []string

	RateLimit      int
	RateWindow     time.Duration
	RateBlock      time.Duration
	EventsEnabled  bool
	ShutdownPeriod time.Duration
}

type EIP712Config struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file followed by the process environment.
// Variables already set in the environment take precedence over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var errs []error
	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":9000"),
		RedisURL:        getEnv("REDIS_URL", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SigningKeyPath:  getEnv("SESSION_SIGNING_KEY_PATH", ""),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", 24*time.Hour, &errs),
		NonceTTL:        getEnvAsDuration("NONCE_TTL", 5*time.Minute, &errs),
		SignatureScheme: getEnv("SIGNATURE_SCHEME", "personal"),
		EIP712: EIP712Config{
			Name:              getEnv("EIP712_NAME", "Vault"),
			Version:           getEnv("EIP712_VERSION", "1"),
			ChainID:           int64(getEnvAsInt("EIP712_CHAIN_ID", 0, &errs)),
			VerifyingContract: getEnv("EIP712_VERIFYING_CONTRACT", ""),
		},
		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimit:      getEnvAsInt("RATE_LIMIT_REQUESTS", 30, &errs),
		RateWindow:     getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute, &errs),
		RateBlock:      getEnvAsDuration("RATE_LIMIT_BLOCK", 5*time.Minute, &errs),
		EventsEnabled:  getEnvAsBool("EVENTS_ENABLED", true, &errs),
		ShutdownPeriod: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
	}

	if cfg.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if cfg.NonceTTL <= 0 {
		errs = append(errs, errors.New("NONCE_TTL must be positive"))
	}
	if cfg.IsProduction() {
		if cfg.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required in production"))
		}
		if cfg.SigningKeyPath == "" {
			errs = append(errs, errors.New("SESSION_SIGNING_KEY_PATH is required in production"))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int, errs *[]error) int {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid value for %s: %w", key, err))
		return defaultVal
	}
	return val
}

func getEnvAsDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid value for %s: %w", key, err))
		return defaultVal
	}
	return val
}

func getEnvAsBool(key string, defaultVal bool, errs *[]error) bool {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid value for %s: %w", key, err))
		return defaultVal
	}
	return val
}

func getEnvAsList(key string, defaultVal []string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
