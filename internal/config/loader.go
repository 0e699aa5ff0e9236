package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/okian/maison/internal/domain/matching"
)

// metricName matches Prometheus metric and label name parts.
var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	envPrefix  = "MAISON_"
	envConfig  = "MAISON_CONFIG"
	maxBonuses = 5
)

// Load builds a Config by layering defaults, an optional file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file if MAISON_CONFIG is set
//  3. env (prefix MAISON_)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MAISON_QUEUE_SIZE -> queue_size. Keys are flat, so underscores stay.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	// Lists replace the default instead of merging into it.
	if k.Exists("dream_brand_bonus") {
		cfg.DreamBrandBonus = nil
	}
	if k.Exists("metrics_latency_buckets") {
		cfg.MetricsLatencyBuckets = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return invalid("sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return invalid("database_url is required for the postgres driver")
		}
	default:
		return invalid("unknown store_driver %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return invalid("jwt_secret must be set")
	}
	if c.QueueSize <= 0 {
		return invalid("queue_size must be positive")
	}
	if c.WorkerCount < 0 || c.DedupeSize < 0 {
		return invalid("worker_count and dedupe_size must not be negative")
	}
	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		return fmt.Errorf("%w: sweep schedule %q: %w", ErrInvalidConfig, c.SweepSchedule, err)
	}
	if err := c.MatchWeights().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(c.DreamBrandBonus) > maxBonuses {
		return invalid("dream_brand_bonus holds at most %d ranks", maxBonuses)
	}
	for i, b := range c.DreamBrandBonus {
		if b < 0 {
			return invalid("dream_brand_bonus must not be negative")
		}
		if i > 0 && b > c.DreamBrandBonus[i-1] {
			return invalid("dream_brand_bonus must not increase with rank, rank %d gets %v after %v", i+1, b, c.DreamBrandBonus[i-1])
		}
	}
	if c.StrongMatchThreshold <= 0 || c.StrongMatchThreshold > 100 {
		return invalid("strong_match_threshold must be in (0, 100]")
	}
	if c.AlertThreshold < 0 || c.AlertThreshold > 100 {
		return invalid("alert_threshold must be in [0, 100]")
	}
	if !metricName.MatchString(c.MetricsNamespace) {
		return invalid("metrics_namespace %q is not a valid metric name prefix", c.MetricsNamespace)
	}
	if c.MetricsSubsystem != "" && !metricName.MatchString(c.MetricsSubsystem) {
		return invalid("metrics_subsystem %q is not a valid metric name part", c.MetricsSubsystem)
	}
	for name := range c.MetricsConstLabels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") {
			return invalid("metrics_const_labels has invalid label name %q", name)
		}
	}
	for i, b := range c.MetricsLatencyBuckets {
		if i > 0 && b <= c.MetricsLatencyBuckets[i-1] {
			return invalid("metrics_latency_buckets must be strictly increasing")
		}
	}
	return nil
}

// EngineOptions returns the matching options the config describes.
func (c *Config) EngineOptions() []matching.Option {
	return []matching.Option{
		matching.WithWeights(c.MatchWeights()),
		matching.WithDreamBrandBonus(c.DreamBrandBonus),
		matching.WithStrongMatchThreshold(c.StrongMatchThreshold),
	}
}
