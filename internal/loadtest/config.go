// Package loadtest drives a running maison server with generated talents and
// checks that single matches and pool rankings agree.
package loadtest

import (
	"errors"
	"time"

	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/normalize"
)

var (
	ErrUnhealthy    = errors.New("service is not healthy")
	ErrInconsistent = errors.New("ranking is inconsistent")
	ErrNoResults    = errors.New("no results to verify")
)

// Config holds the settings of one load test run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Token       string        // Bearer token for /v1 routes
	NumTalents  int           // Number of talents to generate
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Optional file the generated talents are written to
	Opportunity normalize.RawOpportunity
}

// Stats holds run statistics.
type Stats struct {
	TalentsGenerated int
	MatchesSubmitted int
	MatchesOK        int
	MatchesFailed    int
	RankedEntries    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Report is what Run returns on success.
type Report struct {
	Stats  Stats
	Scores map[string]int
	Ranked []matching.RankedMatch
}
