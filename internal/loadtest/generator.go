package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/pkg/logger"
)

var (
	locations = []string{
		"EMEA, Paris, France",
		"Milan, Italy",
		"London, United Kingdom",
		"New York, United States",
		"Tokyo, Japan",
		"Dubai, United Arab Emirates",
		"Hong Kong",
	}
	divisionPool = []string{"Leather Goods", "Watches", "Fine Jewelry", "Ready-to-Wear", "Fragrance", "Beauty"}
	languagePool = []string{"en", "fr", "it", "ja", "zh", "ar", "de"}
	brandPool    = []string{"Hermès", "Cartier", "Chanel", "Dior", "Bulgari", "Loewe", "Celine"}
)

const (
	maxYears        = 20
	maxListed       = 3
	activityWindowH = 24 * 90
)

// pick returns a uniformly random index below n.
func pick(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// sample returns up to k distinct entries of pool.
func sample(pool []string, k int) []string {
	seen := make(map[int]struct{}, k)
	out := make([]string, 0, k)
	for len(out) < k && len(seen) < len(pool) {
		i := pick(len(pool))
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, pool[i])
	}
	return out
}

// generateTalents creates the configured number of talents with unique ids,
// fanned out over the configured worker count.
func generateTalents(ctx context.Context, config *Config, stats *Stats) ([]normalize.RawTalent, error) {
	logger.Get().Info(ctx, "generating talents", logger.Int("count", config.NumTalents))

	talents := make([]normalize.RawTalent, config.NumTalents)
	now := time.Now().UTC()

	type talentResult struct {
		index  int
		talent normalize.RawTalent
		err    error
	}
	resultChan := make(chan talentResult, config.NumTalents)

	workerCount := min(config.Workers, config.NumTalents)
	perWorker := config.NumTalents / workerCount
	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.NumTalents
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					resultChan <- talentResult{index: i, err: err}
					return
				}
				resultChan <- talentResult{index: i, talent: generateTalent(now)}
			}
		}(start, end)
	}

	for i := 0; i < config.NumTalents; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		case r := <-resultChan:
			if r.err != nil {
				return nil, fmt.Errorf("generate talent %d: %w", r.index, r.err)
			}
			talents[r.index] = r.talent
		}
	}

	stats.TalentsGenerated = len(talents)
	return talents, nil
}

// generateTalent builds one well-formed random talent record.
func generateTalent(now time.Time) normalize.RawTalent {
	t := normalize.RawTalent{
		ID:                 uuid.NewString(),
		CurrentRoleLevel:   fmt.Sprintf("L%d", 1+pick(5)),
		CurrentLocation:    locations[pick(len(locations))],
		DivisionsExpertise: sample(divisionPool, 1+pick(maxListed)),
		YearsInLuxury:      float64(pick(maxYears*2)) / 2,
		Languages:          sample(languagePool, 1+pick(maxListed)),
		InternalMobility:   pick(2) == 0,
		LastActiveAt:       now.Add(-time.Duration(pick(activityWindowH)) * time.Hour),
	}
	t.CareerPreferences.TargetBrands = sample(brandPool, pick(maxListed+1))
	if pick(2) == 0 {
		t.AssessmentScores = map[string]float64{
			"client_experience": float64(pick(101)),
			"product_expertise": float64(pick(101)),
			"sales_excellence":  float64(pick(101)),
		}
	}
	return t
}
