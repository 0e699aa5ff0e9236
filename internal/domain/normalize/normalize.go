// Package normalize converts raw talent and opportunity records into the
// canonical profiles consumed by the matching engine.
//
// Malformed input is rejected here with an errs.ErrValidation error; the
// engine never clamps or repairs values.
package normalize

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/model"
)

// MaxTargetBrands caps the dream brand list.
const MaxTargetBrands = 5

// RawTalent is a talent record as stored or submitted.
type RawTalent struct {
	ID                 string             `json:"id" koanf:"id"`
	CurrentRoleLevel   string             `json:"current_role_level" koanf:"current_role_level"`
	CurrentLocation    string             `json:"current_location" koanf:"current_location"`
	DivisionsExpertise []string           `json:"divisions_expertise" koanf:"divisions_expertise"`
	YearsInLuxury      float64            `json:"years_in_luxury" koanf:"years_in_luxury"`
	Languages          []string           `json:"languages" koanf:"languages"`
	AssessmentScores   map[string]float64 `json:"assessment_scores,omitempty" koanf:"assessment_scores"`
	CareerPreferences  struct {
		TargetBrands []string `json:"target_brands" koanf:"target_brands"`
	} `json:"career_preferences" koanf:"career_preferences"`
	InternalMobility bool      `json:"internal_mobility" koanf:"internal_mobility"`
	LastActiveAt     time.Time `json:"last_active_at" koanf:"last_active_at"`
}

// RawOpportunity is a job opening record as stored or submitted.
type RawOpportunity struct {
	ID                      string   `json:"id" koanf:"id"`
	BrandID                 string   `json:"brand_id" koanf:"brand_id"`
	BrandName               string   `json:"brand_name" koanf:"brand_name"`
	RoleLevel               string   `json:"role_level" koanf:"role_level"`
	Division                string   `json:"division" koanf:"division"`
	City                    string   `json:"city" koanf:"city"`
	Country                 string   `json:"country" koanf:"country"`
	RequiredExperienceYears float64  `json:"required_experience_years" koanf:"required_experience_years"`
	RequiredLanguages       []string `json:"required_languages" koanf:"required_languages"`
}

// Normalizer holds the lookup tables used while normalizing.
type Normalizer struct {
	regions map[string]string
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithRegions merges extra place → region entries into the default table.
func WithRegions(regions map[string]string) Option {
	return func(n *Normalizer) {
		for place, region := range regions {
			n.regions[n.fold(place)] = n.fold(region)
		}
	}
}

// New creates a Normalizer with the default region table.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{regions: make(map[string]string)}
	for place, region := range defaultRegions() {
		n.regions[n.fold(place)] = region
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// fold NFC-normalizes, case-folds and collapses whitespace. A Caser is
// stateful, so one is made per call.
func (n *Normalizer) fold(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Key returns the comparison key used for brand names and places.
func (n *Normalizer) Key(s string) string { return n.fold(s) }

// Region returns the region of a folded place, or "".
func (n *Normalizer) Region(place string) string {
	return n.regions[n.fold(place)]
}

// Talent validates and normalizes a raw talent record.
func (n *Normalizer) Talent(raw RawTalent) (model.TalentProfile, error) {
	const op = "normalize.talent"

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.TalentProfile{}, errs.Validation(op, "talent id is required")
	}
	level, err := model.ParseRoleLevel(raw.CurrentRoleLevel)
	if err != nil {
		return model.TalentProfile{}, errs.WrapKind(op, errs.ErrValidation, err)
	}
	if raw.YearsInLuxury < 0 || !finite(raw.YearsInLuxury) {
		return model.TalentProfile{}, errs.Validationf(op, "years_in_luxury must be a non-negative number, got %v", raw.YearsInLuxury)
	}
	assessment, err := n.assessment(op, raw.AssessmentScores)
	if err != nil {
		return model.TalentProfile{}, err
	}
	if len(raw.CareerPreferences.TargetBrands) > MaxTargetBrands {
		return model.TalentProfile{}, errs.Validationf(op, "at most %d target brands, got %d", MaxTargetBrands, len(raw.CareerPreferences.TargetBrands))
	}

	return model.TalentProfile{
		ID:                 id,
		CurrentRoleLevel:   level,
		CurrentLocation:    n.talentLocation(raw.CurrentLocation),
		DivisionsExpertise: divisions(raw.DivisionsExpertise),
		YearsInLuxury:      raw.YearsInLuxury,
		Languages:          languages(raw.Languages),
		Assessment:         assessment,
		TargetBrands:       n.uniqueKeys(raw.CareerPreferences.TargetBrands),
		InternalMobility:   raw.InternalMobility,
		LastActiveAt:       raw.LastActiveAt.UTC(),
	}, nil
}

// Opportunity validates and normalizes a raw opportunity record.
func (n *Normalizer) Opportunity(raw RawOpportunity) (model.OpportunityProfile, error) {
	const op = "normalize.opportunity"

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.OpportunityProfile{}, errs.Validation(op, "opportunity id is required")
	}
	level, err := model.ParseRoleLevel(raw.RoleLevel)
	if err != nil {
		return model.OpportunityProfile{}, errs.WrapKind(op, errs.ErrValidation, err)
	}
	division := access.DivisionKey(raw.Division)
	if division == "" {
		return model.OpportunityProfile{}, errs.Validation(op, "division is required")
	}
	if raw.RequiredExperienceYears < 0 || !finite(raw.RequiredExperienceYears) {
		return model.OpportunityProfile{}, errs.Validationf(op, "required_experience_years must be a non-negative number, got %v", raw.RequiredExperienceYears)
	}

	city := n.fold(raw.City)
	country := n.fold(raw.Country)
	region := n.regions[country]
	if region == "" {
		region = n.regions[city]
	}

	return model.OpportunityProfile{
		ID:                      id,
		BrandID:                 strings.TrimSpace(raw.BrandID),
		BrandName:               strings.TrimSpace(raw.BrandName),
		BrandKey:                n.fold(raw.BrandName),
		RoleLevel:               level,
		Division:                division,
		Location:                model.Location{City: city, Country: country, Region: region},
		RequiredExperienceYears: raw.RequiredExperienceYears,
		RequiredLanguages:       languages(raw.RequiredLanguages),
	}, nil
}

// talentLocation reads free text whose first token anchors the region: either
// a region code itself or a city whose region is looked up. A second token is
// the country.
func (n *Normalizer) talentLocation(raw string) model.Location {
	tokens := splitLocation(raw)
	if len(tokens) == 0 {
		return model.Location{}
	}
	var loc model.Location
	first := n.fold(tokens[0])
	if region, ok := n.regions[first]; ok && region == first {
		loc.Region = first
		tokens = tokens[1:]
		if len(tokens) > 0 {
			loc.City = n.fold(tokens[0])
		}
		if len(tokens) > 1 {
			loc.Country = n.fold(tokens[1])
		}
	} else {
		loc.City = first
		if len(tokens) > 1 {
			loc.Country = n.fold(tokens[1])
		}
	}
	if loc.Region == "" {
		loc.Region = n.regions[loc.City]
	}
	if loc.Region == "" && loc.Country != "" {
		loc.Region = n.regions[loc.Country]
	}
	return loc
}

func splitLocation(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '/' || r == '|'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (n *Normalizer) assessment(op string, raw map[string]float64) (*model.Assessment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	scores := make(map[model.Competency]float64, len(raw))
	for name, v := range raw {
		c, err := model.ParseCompetency(name)
		if err != nil {
			return nil, errs.WrapKind(op, errs.ErrValidation, err)
		}
		if !finite(v) || v < 0 || v > 100 {
			return nil, errs.Validationf(op, "assessment score %s must be within 0..100, got %v", c, v)
		}
		scores[c] = v
	}
	return &model.Assessment{Scores: scores}, nil
}

// uniqueKeys folds names, dropping blanks and later duplicates.
func (n *Normalizer) uniqueKeys(names []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		k := n.fold(name)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func divisions(raw []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, d := range raw {
		k := access.DivisionKey(d)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func languages(raw []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, l := range raw {
		k := strings.ToLower(strings.TrimSpace(l))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
