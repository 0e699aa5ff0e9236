package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete load test: health check, generation, single
// matches, one pool ranking and the consistency check between them.
func Run(ctx context.Context, config *Config) (*Report, error) {
	stats := Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadtest")

	log.Info(ctx, "starting maison load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("talents", config.NumTalents),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	if config.NumTalents < 1 {
		return nil, fmt.Errorf("%w: talent count must be positive", ErrNoResults)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if err := checkServiceHealth(ctx, config); err != nil {
		return nil, err
	}

	talents, err := generateTalents(ctx, config, &stats)
	if err != nil {
		return nil, fmt.Errorf("talent generation failed: %w", err)
	}
	if config.OutputFile != "" {
		if err := saveTalents(config.OutputFile, talents); err != nil {
			log.Warn(ctx, "failed to save talents", logger.Error(err))
		}
	}

	scores := submitMatches(ctx, config, talents, &stats)

	ranked, err := rankPool(ctx, config, talents, &stats)
	if err != nil {
		return nil, fmt.Errorf("pool ranking failed: %w", err)
	}

	if err := verifyRanking(scores, ranked); err != nil {
		return nil, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, log, stats)

	return &Report{Stats: stats, Scores: scores, Ranked: ranked}, nil
}

// checkServiceHealth verifies the service answers its metrics endpoint.
func checkServiceHealth(ctx context.Context, config *Config) error {
	resp, err := newHTTPClient(config).Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// saveTalents writes the generated pool as a "talents" document that
// matchctl rank reads back.
func saveTalents(filename string, talents []normalize.RawTalent) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(map[string]any{"talents": talents}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, filePermission)
}

func logFinalStats(ctx context.Context, log logger.Logger, stats Stats) {
	var matchesPerSecond float64
	if stats.Duration > 0 {
		matchesPerSecond = float64(stats.MatchesSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("talentsGenerated", stats.TalentsGenerated),
		logger.Int("matchesSubmitted", stats.MatchesSubmitted),
		logger.Int("matchesOK", stats.MatchesOK),
		logger.Int("matchesFailed", stats.MatchesFailed),
		logger.Int("rankedEntries", stats.RankedEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("matchesPerSecond", matchesPerSecond))
}
