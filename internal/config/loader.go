package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "deliveryhub.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DELIVERYHUB_PORT")
	setString(&cfg.Server.CORSOrigin, "DELIVERYHUB_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "DELIVERYHUB_REQUEST_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DELIVERYHUB_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DELIVERYHUB_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DELIVERYHUB_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DELIVERYHUB_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DELIVERYHUB_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Auth.JWTSecret, "DELIVERYHUB_JWT_SECRET")
	setDuration(&cfg.Auth.AccessTokenExpiry, "DELIVERYHUB_ACCESS_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "DELIVERYHUB_BCRYPT_COST")
	setInt64(&cfg.Cache.MaxSizeMB, "DELIVERYHUB_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.ListTTL, "DELIVERYHUB_CACHE_LIST_TTL")
	setString(&cfg.Uploads.Dir, "DELIVERYHUB_UPLOADS_DIR")
	setInt64(&cfg.Uploads.MaxSizeBytes, "DELIVERYHUB_UPLOADS_MAX_BYTES")
	setString(&cfg.Logging.Level, "DELIVERYHUB_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DELIVERYHUB_LOG_SERVICE")
	setBool(&cfg.Otel.Enabled, "DELIVERYHUB_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
