package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/pkg/logger"
)

const workerChannelMultiplier = 2

// HTTPClient wraps http.Client with the bearer token of the run.
type HTTPClient struct {
	client *http.Client
	base   string
	token  string
}

func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: config.Timeout},
		base:   config.BaseURL,
		token:  config.Token,
	}
}

// Get performs an unauthenticated GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post sends body as JSON and decodes a 200 response into out.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return json.Unmarshal(data, out)
}

type matchRequest struct {
	Talent      normalize.RawTalent      `json:"talent"`
	Opportunity normalize.RawOpportunity `json:"opportunity"`
}

type rankRequest struct {
	Opportunity normalize.RawOpportunity `json:"opportunity"`
	Talents     []normalize.RawTalent    `json:"talents"`
}

type rankResponse struct {
	Matches []matching.RankedMatch `json:"matches"`
}

// submitMatches scores every talent on its own through a worker pool and
// returns the overall score per talent id.
func submitMatches(ctx context.Context, config *Config, talents []normalize.RawTalent, stats *Stats) map[string]int {
	log := logger.Get().Named("loadtest")
	log.Info(ctx, "submitting matches", logger.Int("talents", len(talents)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config)
	var (
		mu        sync.Mutex
		scores    = make(map[string]int, len(talents))
		submitted int64
		failed    int64
	)

	talentChan := make(chan normalize.RawTalent, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range talentChan {
				if ctx.Err() != nil {
					return
				}
				atomic.AddInt64(&submitted, 1)
				var result model.MatchResult
				err := client.Post(ctx, "/v1/match", matchRequest{Talent: t, Opportunity: config.Opportunity}, &result)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Debug(ctx, "match failed", logger.String("talent_id", t.ID), logger.Error(err))
					continue
				}
				mu.Lock()
				scores[result.TalentID] = result.OverallScore
				mu.Unlock()
			}
		}()
	}

	start := time.Now()
	go func() {
		defer close(talentChan)
		for _, t := range talents {
			select {
			case <-ctx.Done():
				return
			case talentChan <- t:
			}
		}
	}()
	wg.Wait()

	stats.MatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.MatchesFailed = int(atomic.LoadInt64(&failed))
	stats.MatchesOK = len(scores)
	log.Info(ctx, "match submission completed",
		logger.Int("ok", stats.MatchesOK),
		logger.Int("failed", stats.MatchesFailed),
		logger.Duration("took", time.Since(start)))
	return scores
}

// rankPool ranks the whole pool in one request.
func rankPool(ctx context.Context, config *Config, talents []normalize.RawTalent, stats *Stats) ([]matching.RankedMatch, error) {
	var out rankResponse
	err := newHTTPClient(config).Post(ctx, "/v1/rank", rankRequest{Opportunity: config.Opportunity, Talents: talents}, &out)
	if err != nil {
		return nil, err
	}
	stats.RankedEntries = len(out.Matches)
	return out.Matches, nil
}
