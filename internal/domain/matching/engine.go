// Package matching scores talent profiles against opportunity profiles.
//
// Every axis produces a sub-score in 0..100. The overall score is the weighted
// mean over the axes that have input (weights renormalised over those axes),
// plus a dream brand bonus that cannot by itself lift a match over the strong
// match threshold. The result is clamped to 0..100 and rounded.
package matching

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/maison/internal/domain/model"
)

const (
	maxScore = 100

	// Role fit by talent level minus opportunity level.
	roleExact      = 100
	roleOverByOne  = 70
	roleUnderByOne = 50
	roleOverFar    = 10
	roleUnderFar   = 0

	// Location fit tiers.
	locationCity    = 100
	locationCountry = 70
	locationRegion  = 40
)

// DefaultStrongMatchThreshold is the score from which a match is strong.
const DefaultStrongMatchThreshold = 75

// Weights are the relative importance of each axis. Only their ratios matter.
type Weights struct {
	Role       float64 `json:"role" koanf:"role"`
	Location   float64 `json:"location" koanf:"location"`
	Division   float64 `json:"division" koanf:"division"`
	Experience float64 `json:"experience" koanf:"experience"`
	Language   float64 `json:"language" koanf:"language"`
	Assessment float64 `json:"assessment" koanf:"assessment"`
}

// DefaultWeights returns the stock axis weights.
func DefaultWeights() Weights {
	return Weights{
		Role:       20,
		Location:   15,
		Division:   20,
		Experience: 15,
		Language:   10,
		Assessment: 20,
	}
}

// DefaultDreamBrandBonus returns the stock bonus for ranks 1..5.
func DefaultDreamBrandBonus() []float64 {
	return []float64{10, 8, 6, 4, 2}
}

// Validate checks that all weights are non-negative and that a talent without
// an assessment can still be scored.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Role, w.Location, w.Division, w.Experience, w.Language, w.Assessment} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weights must be finite and non-negative", ErrInvalidWeights)
		}
	}
	if w.Role+w.Location+w.Division+w.Experience+w.Language == 0 {
		return fmt.Errorf("%w: at least one non-assessment weight must be positive", ErrInvalidWeights)
	}
	return nil
}

func (w Weights) of(a model.Axis) float64 {
	switch a {
	case model.AxisRole:
		return w.Role
	case model.AxisLocation:
		return w.Location
	case model.AxisDivision:
		return w.Division
	case model.AxisExperience:
		return w.Experience
	case model.AxisLanguage:
		return w.Language
	case model.AxisAssessment:
		return w.Assessment
	}
	return 0
}

// Engine computes match results. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	weights   Weights
	bonus     []float64
	threshold float64
}

// New creates an Engine with default weights, bonus and threshold, then
// applies opts.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		weights:   DefaultWeights(),
		bonus:     DefaultDreamBrandBonus(),
		threshold: DefaultStrongMatchThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	for _, b := range e.bonus {
		if b < 0 {
			return nil, fmt.Errorf("%w: dream brand bonus must be non-negative", ErrInvalidWeights)
		}
	}
	return e, nil
}

var defaultEngine = &Engine{
	weights:   DefaultWeights(),
	bonus:     DefaultDreamBrandBonus(),
	threshold: DefaultStrongMatchThreshold,
}

// CalculateMatch scores talent against opportunity with the default engine.
func CalculateMatch(talent model.TalentProfile, opportunity model.OpportunityProfile) model.MatchResult {
	return defaultEngine.Calculate(talent, opportunity)
}

// Weights returns the engine's axis weights.
func (e *Engine) Weights() Weights { return e.weights }

// StrongMatchThreshold returns the score a strong match needs.
func (e *Engine) StrongMatchThreshold() float64 { return e.threshold }

// Calculate scores talent against opportunity. It depends on nothing but its
// arguments and the engine configuration.
func (e *Engine) Calculate(talent model.TalentProfile, opportunity model.OpportunityProfile) model.MatchResult {
	breakdown := make([]model.AxisScore, 0, len(model.Axes))
	add := func(a model.Axis, score float64, included bool) {
		breakdown = append(breakdown, model.AxisScore{
			Axis:     a,
			Score:    score,
			Weight:   e.weights.of(a),
			Included: included,
		})
	}

	add(model.AxisRole, roleFit(talent.CurrentRoleLevel, opportunity.RoleLevel), true)
	add(model.AxisLocation, locationFit(talent.CurrentLocation, opportunity.Location), true)
	add(model.AxisDivision, divisionFit(talent, opportunity.Division), true)
	add(model.AxisExperience, experienceFit(talent.YearsInLuxury, opportunity.RequiredExperienceYears), true)
	add(model.AxisLanguage, languageFit(talent, opportunity.RequiredLanguages), true)
	assessment, ok := assessmentFit(talent.Assessment)
	add(model.AxisAssessment, assessment, ok)

	var sum, total float64
	for _, s := range breakdown {
		if !s.Included {
			continue
		}
		sum += s.Score * s.Weight
		total += s.Weight
	}
	var base float64
	if total > 0 {
		base = sum / total
	}

	rank := talent.TargetBrandRank(opportunity.BrandKey)
	var bonus float64
	if rank > 0 && rank <= len(e.bonus) {
		bonus = e.bonus[rank-1]
	}
	boosted := e.boost(base, bonus)
	overall := int(math.Round(clamp(boosted)))

	return model.MatchResult{
		TalentID:        talent.ID,
		OpportunityID:   opportunity.ID,
		OverallScore:    overall,
		Breakdown:       breakdown,
		BaseScore:       base,
		DreamBrandRank:  rank,
		DreamBrandBonus: boosted - base,
		Strong:          float64(overall) >= e.threshold,
	}
}

// boost adds bonus to base. Below the strong threshold the bonus stops one
// point short of it.
func (e *Engine) boost(base, bonus float64) float64 {
	if bonus <= 0 {
		return base
	}
	if base >= e.threshold {
		return base + bonus
	}
	return math.Max(base, math.Min(base+bonus, e.threshold-1))
}

// BoostCapped reports whether the threshold cap reduced the bonus of r.
func (e *Engine) BoostCapped(r model.MatchResult) bool {
	if r.DreamBrandRank == 0 || r.DreamBrandRank > len(e.bonus) {
		return false
	}
	return r.DreamBrandBonus < e.bonus[r.DreamBrandRank-1]
}

func roleFit(talent, opportunity model.RoleLevel) float64 {
	switch diff := int(talent) - int(opportunity); {
	case diff == 0:
		return roleExact
	case diff == 1:
		return roleOverByOne
	case diff == -1:
		return roleUnderByOne
	case diff > 1:
		return roleOverFar
	default:
		return roleUnderFar
	}
}

func locationFit(talent, opportunity model.Location) float64 {
	switch {
	case talent.City != "" && talent.City == opportunity.City:
		return locationCity
	case talent.Country != "" && talent.Country == opportunity.Country:
		return locationCountry
	case talent.Region != "" && talent.Region == opportunity.Region:
		return locationRegion
	}
	return 0
}

func divisionFit(talent model.TalentProfile, division string) float64 {
	if talent.HasDivision(division) {
		return maxScore
	}
	return 0
}

// experienceFit gives full credit once the requirement is met and a square
// root curve below it.
func experienceFit(years, required float64) float64 {
	if required <= 0 || years >= required {
		return maxScore
	}
	if years <= 0 {
		return 0
	}
	return maxScore * math.Sqrt(years/required)
}

func languageFit(talent model.TalentProfile, required []string) float64 {
	if len(required) == 0 {
		return maxScore
	}
	var spoken int
	for _, l := range required {
		if talent.Speaks(l) {
			spoken++
		}
	}
	return maxScore * float64(spoken) / float64(len(required))
}

// assessmentFit averages the assessed competencies and reports false when
// nothing was assessed.
func assessmentFit(a *model.Assessment) (float64, bool) {
	var sum float64
	var n int
	for _, c := range model.Competencies {
		if v, ok := a.Score(c); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

// RankedMatch pairs a result with the talent's activity time used for ties.
type RankedMatch struct {
	Position     int               `json:"position"`
	Result       model.MatchResult `json:"result"`
	LastActiveAt string            `json:"last_active_at,omitempty"`
}

// Rank scores every talent against opportunity and orders the results by
// score descending, then most recent activity, then talent id.
func (e *Engine) Rank(opportunity model.OpportunityProfile, talents []model.TalentProfile) []RankedMatch {
	type scored struct {
		talent model.TalentProfile
		result model.MatchResult
	}
	all := make([]scored, len(talents))
	for i, t := range talents {
		all[i] = scored{talent: t, result: e.Calculate(t, opportunity)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.result.OverallScore != b.result.OverallScore {
			return a.result.OverallScore > b.result.OverallScore
		}
		if !a.talent.LastActiveAt.Equal(b.talent.LastActiveAt) {
			return a.talent.LastActiveAt.After(b.talent.LastActiveAt)
		}
		return a.talent.ID < b.talent.ID
	})

	out := make([]RankedMatch, len(all))
	for i, s := range all {
		out[i] = RankedMatch{Position: i + 1, Result: s.result}
		if !s.talent.LastActiveAt.IsZero() {
			out[i].LastActiveAt = s.talent.LastActiveAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}
