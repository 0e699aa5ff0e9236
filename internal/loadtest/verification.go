package loadtest

import (
	"fmt"

	"github.com/okian/maison/internal/domain/matching"
)

// verifyRanking checks that the ranking is ordered, that positions are
// contiguous and that every ranked score equals the single match score of the
// same talent.
func verifyRanking(scores map[string]int, ranked []matching.RankedMatch) error {
	if len(ranked) == 0 {
		return ErrNoResults
	}
	for i, m := range ranked {
		if m.Position != i+1 {
			return fmt.Errorf("%w: entry %d has position %d", ErrInconsistent, i, m.Position)
		}
		if i > 0 && m.Result.OverallScore > ranked[i-1].Result.OverallScore {
			return fmt.Errorf("%w: entry %d scores higher than entry %d", ErrInconsistent, i, i-1)
		}
		single, ok := scores[m.Result.TalentID]
		if !ok {
			continue
		}
		if single != m.Result.OverallScore {
			return fmt.Errorf("%w: talent %s scored %d alone and %d in the pool",
				ErrInconsistent, m.Result.TalentID, single, m.Result.OverallScore)
		}
	}
	return nil
}
