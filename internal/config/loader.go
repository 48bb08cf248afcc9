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
const DefaultConfigFile = "intentmarket.yaml"

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
	setString(&cfg.Server.Port, "INTENTMARKET_PORT")
	setString(&cfg.Server.CORSOrigin, "INTENTMARKET_CORS_ORIGIN")
	setString(&cfg.Server.PublicURL, "INTENTMARKET_PUBLIC_URL")
	setDuration(&cfg.Server.ShutdownTimeout, "INTENTMARKET_SHUTDOWN_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "INTENTMARKET_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "INTENTMARKET_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "INTENTMARKET_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "INTENTMARKET_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "INTENTMARKET_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "INTENTMARKET_LOG_LEVEL")
	setString(&cfg.Logging.Service, "INTENTMARKET_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "INTENTMARKET_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "INTENTMARKET_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "INTENTMARKET_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "INTENTMARKET_RATE_RPS")
	setInt(&cfg.Rate.Burst, "INTENTMARKET_RATE_BURST")
	setFloat64(&cfg.Rate.MatchRequestsPerSecond, "INTENTMARKET_RATE_MATCH_RPS")
	setInt(&cfg.Rate.MatchBurst, "INTENTMARKET_RATE_MATCH_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "INTENTMARKET_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "INTENTMARKET_RATE_MAX_IDLE_TIME")
	setInt64(&cfg.Cache.L1MaxSizeMB, "INTENTMARKET_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "INTENTMARKET_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "INTENTMARKET_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "INTENTMARKET_CACHE_L2_TTL")
	setDuration(&cfg.Cache.StatsTTL, "INTENTMARKET_CACHE_STATS_TTL")
	setString(&cfg.Idempotency.Bucket, "INTENTMARKET_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "INTENTMARKET_IDEMPOTENCY_TTL")
	setFloat64(&cfg.Matching.AgentThreshold, "INTENTMARKET_MATCH_AGENT_THRESHOLD")
	setFloat64(&cfg.Matching.IntentThreshold, "INTENTMARKET_MATCH_INTENT_THRESHOLD")
	setFloat64(&cfg.Matching.BothThreshold, "INTENTMARKET_MATCH_BOTH_THRESHOLD")
	setInt(&cfg.Matching.OwnerSuitableMinTags, "INTENTMARKET_MATCH_OWNER_SUITABLE_MIN_TAGS")
	setBool(&cfg.Matching.RelatedCategories, "INTENTMARKET_MATCH_RELATED_CATEGORIES")
	setInt(&cfg.Matching.DefaultLimit, "INTENTMARKET_MATCH_DEFAULT_LIMIT")
	setInt(&cfg.Matching.ScoringWorkers, "INTENTMARKET_MATCH_SCORING_WORKERS")
	setBool(&cfg.Matching.AutoMatchOnCreate, "INTENTMARKET_MATCH_AUTO_ON_CREATE")
	setBool(&cfg.Sweep.Enabled, "INTENTMARKET_SWEEP_ENABLED")
	setDuration(&cfg.Sweep.Interval, "INTENTMARKET_SWEEP_INTERVAL")
	setInt(&cfg.Sweep.Concurrency, "INTENTMARKET_SWEEP_CONCURRENCY")
	setBool(&cfg.Ingest.Enabled, "INTENTMARKET_INGEST_ENABLED")
	setDuration(&cfg.Ingest.Interval, "INTENTMARKET_INGEST_INTERVAL")
	setDuration(&cfg.Ingest.Timeout, "INTENTMARKET_INGEST_TIMEOUT")
	setBool(&cfg.Ingest.Moltbook.Enabled, "INTENTMARKET_MOLTBOOK_ENABLED")
	setString(&cfg.Ingest.Moltbook.URL, "MOLTBOOK_API_URL")
	setBool(&cfg.Ingest.OpenClaw.Enabled, "INTENTMARKET_OPENCLAW_ENABLED")
	setString(&cfg.Ingest.OpenClaw.URL, "OPENCLAW_API_URL")
	setBool(&cfg.OTEL.Enabled, "INTENTMARKET_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "INTENTMARKET_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "INTENTMARKET_OTEL_SAMPLE_RATE")
	setBool(&cfg.MCP.Enabled, "INTENTMARKET_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "INTENTMARKET_MCP_ADDR")
}

// validate checks that required fields are set and values are in range.
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
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Rate.MatchRequestsPerSecond < 0 {
		return errors.New("rate.match_requests_per_second must be >= 0")
	}
	if cfg.Rate.MatchRequestsPerSecond > 0 && cfg.Rate.MatchBurst < 1 {
		return errors.New("rate.match_burst must be >= 1 when the matching limit is on")
	}
	for name, v := range map[string]float64{
		"matching.agent_threshold":  cfg.Matching.AgentThreshold,
		"matching.intent_threshold": cfg.Matching.IntentThreshold,
		"matching.both_threshold":   cfg.Matching.BothThreshold,
		"otel.sample_rate":          cfg.OTEL.SampleRate,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if cfg.Matching.DefaultLimit < 0 {
		return errors.New("matching.default_limit must be >= 0")
	}
	if cfg.Matching.ScoringWorkers < 1 {
		return errors.New("matching.scoring_workers must be >= 1")
	}
	if cfg.Sweep.Enabled && cfg.Sweep.Interval <= 0 {
		return errors.New("sweep.interval must be positive")
	}
	if cfg.Sweep.Concurrency < 1 {
		return errors.New("sweep.concurrency must be >= 1")
	}
	if cfg.Ingest.Enabled && cfg.Ingest.Interval <= 0 {
		return errors.New("ingest.interval must be positive")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
