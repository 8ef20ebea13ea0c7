package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "backline.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "BACKLINE_PORT")
	setString(&cfg.Server.CORSOrigin, "BACKLINE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BACKLINE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BACKLINE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BACKLINE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BACKLINE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BACKLINE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Completion.URL, "BACKLINE_COMPLETION_URL")
	setString(&cfg.Completion.APIKey, "BACKLINE_COMPLETION_API_KEY")
	setString(&cfg.Completion.Model, "BACKLINE_COMPLETION_MODEL")
	setDuration(&cfg.Completion.Timeout, "BACKLINE_COMPLETION_TIMEOUT")
	setBool(&cfg.Completion.Enabled, "BACKLINE_COMPLETION_ENABLED")
	setString(&cfg.Logging.Level, "BACKLINE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "BACKLINE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "BACKLINE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BACKLINE_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "BACKLINE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "BACKLINE_CACHE_TTL")
	setString(&cfg.Source.WatchDir, "BACKLINE_WATCH_DIR")
	setFloat64(&cfg.Decision.HighThreshold, "BACKLINE_HIGH_THRESHOLD")
	setFloat64(&cfg.Decision.MediumThreshold, "BACKLINE_MEDIUM_THRESHOLD")
	setInt(&cfg.Decision.QuantityCeiling, "BACKLINE_QUANTITY_CEILING")
	setFloat64(&cfg.Decision.AnomalyMultiplier, "BACKLINE_ANOMALY_MULTIPLIER")
	setStrings(&cfg.Decision.EscalationKeywords, "BACKLINE_ESCALATION_KEYWORDS")
	setFloat64(&cfg.Decision.ReplenishmentFactor, "BACKLINE_REPLENISHMENT_FACTOR")
	setBool(&cfg.Telemetry.Enabled, "BACKLINE_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "BACKLINE_TELEMETRY_ENDPOINT")
}

// validate checks that required fields are set and thresholds are coherent.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	d := cfg.Decision
	if d.HighThreshold < 0 || d.HighThreshold > 1 {
		return errors.New("decision.high_threshold must be in [0, 1]")
	}
	if d.MediumThreshold < 0 || d.MediumThreshold > d.HighThreshold {
		return errors.New("decision.medium_threshold must be in [0, high_threshold]")
	}
	if d.QuantityCeiling < 1 {
		return errors.New("decision.quantity_ceiling must be >= 1")
	}
	if d.AnomalyMultiplier <= 0 {
		return errors.New("decision.anomaly_multiplier must be > 0")
	}
	if d.ReplenishmentFactor <= 0 {
		return errors.New("decision.replenishment_factor must be > 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStrings(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
