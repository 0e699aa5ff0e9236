// Package config defines service configuration and its loading from defaults,
// an optional YAML file and MAISON_ environment variables.
package config

import (
	"runtime"

	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/pkg/metrics"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver picks the team workflow store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	DatabaseURL string `koanf:"database_url"`
	// SeedFile optionally names a YAML file of brands, groups and members
	// loaded into the store at startup.
	SeedFile string `koanf:"seed_file"`

	// RedisURL enables Redis delivery of notifications. Empty logs them instead.
	RedisURL      string `koanf:"redis_url"`
	NotifyChannel string `koanf:"notify_channel"`

	// QueueSize bounds the in-memory notification queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of delivery workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the delivered payload id window.
	DedupeSize int `koanf:"dedupe_size"`

	// JWTSecret verifies HS256 bearer tokens on the API.
	JWTSecret string `koanf:"jwt_secret"`

	// SweepSchedule is the cron spec of the expiry sweep.
	SweepSchedule string `koanf:"sweep_schedule"`

	MatchWeightRole       float64 `koanf:"match_weight_role"`
	MatchWeightLocation   float64 `koanf:"match_weight_location"`
	MatchWeightDivision   float64 `koanf:"match_weight_division"`
	MatchWeightExperience float64 `koanf:"match_weight_experience"`
	MatchWeightLanguage   float64 `koanf:"match_weight_language"`
	MatchWeightAssessment float64 `koanf:"match_weight_assessment"`

	// DreamBrandBonus holds the bonus by dream brand rank, rank 1 first.
	DreamBrandBonus []float64 `koanf:"dream_brand_bonus"`
	// StrongMatchThreshold is the score from which a match counts as strong.
	StrongMatchThreshold float64 `koanf:"strong_match_threshold"`
	// AlertThreshold is the score a dream brand match needs to alert the talent.
	AlertThreshold int `koanf:"alert_threshold"`

	// Metric names are <namespace>_<subsystem>_<name>.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	// MetricsConstLabels are attached to every metric, e.g. env or region.
	MetricsConstLabels map[string]string `koanf:"metrics_const_labels"`
	// MetricsLatencyBuckets overrides the latency histogram buckets, in
	// milliseconds.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`
}

// New returns a Config holding the defaults.
func New() *Config {
	w := matching.DefaultWeights()
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		StoreDriver:           DriverMemory,
		SQLitePath:            "maison.db",
		NotifyChannel:         "maison.notifications",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            50_000,
		SweepSchedule:         "@every 1m",
		MatchWeightRole:       w.Role,
		MatchWeightLocation:   w.Location,
		MatchWeightDivision:   w.Division,
		MatchWeightExperience: w.Experience,
		MatchWeightLanguage:   w.Language,
		MatchWeightAssessment: w.Assessment,
		DreamBrandBonus:       matching.DefaultDreamBrandBonus(),
		StrongMatchThreshold:  matching.DefaultStrongMatchThreshold,
		AlertThreshold:        70,
		MetricsNamespace:      "maison",
		MetricsSubsystem:      "core",
	}
}

// MatchWeights returns the configured axis weights.
func (c *Config) MatchWeights() matching.Weights {
	return matching.Weights{
		Role:       c.MatchWeightRole,
		Location:   c.MatchWeightLocation,
		Division:   c.MatchWeightDivision,
		Experience: c.MatchWeightExperience,
		Language:   c.MatchWeightLanguage,
		Assessment: c.MatchWeightAssessment,
	}
}

// MetricsOptions returns the metrics options the config describes.
func (c *Config) MetricsOptions() []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(c.MetricsNamespace),
		metrics.WithSubsystem(c.MetricsSubsystem),
		metrics.WithConstLabels(c.MetricsConstLabels),
		metrics.WithHistogramBuckets(c.MetricsLatencyBuckets),
	}
}
