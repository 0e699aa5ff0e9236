// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RoleLevel is the ordinal seniority rank of a position, L1 (entry) to L5.
type RoleLevel int

const (
	LevelL1 RoleLevel = iota + 1
	LevelL2
	LevelL3
	LevelL4
	LevelL5
)

// MinRoleLevel and MaxRoleLevel bound valid role levels.
const (
	MinRoleLevel = LevelL1
	MaxRoleLevel = LevelL5
)

// Valid reports whether l is within L1..L5.
func (l RoleLevel) Valid() bool { return l >= MinRoleLevel && l <= MaxRoleLevel }

func (l RoleLevel) String() string { return "L" + strconv.Itoa(int(l)) }

// ParseRoleLevel accepts "L3", "l3" or "3".
func ParseRoleLevel(s string) (RoleLevel, error) {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "L")
	n, err := strconv.Atoi(v)
	if err != nil || !RoleLevel(n).Valid() {
		return 0, fmt.Errorf("unknown role level %q", s)
	}
	return RoleLevel(n), nil
}

// Competency is one of the six assessed dimensions.
type Competency string

const (
	CompetencyClientExperience  Competency = "client_experience"
	CompetencyProductExpertise  Competency = "product_expertise"
	CompetencySalesExcellence   Competency = "sales_excellence"
	CompetencyLeadership        Competency = "leadership"
	CompetencyBrandStorytelling Competency = "brand_storytelling"
	CompetencyOperationalRigor  Competency = "operational_rigor"
)

// Competencies lists the assessed dimensions in a fixed order.
var Competencies = []Competency{
	CompetencyClientExperience,
	CompetencyProductExpertise,
	CompetencySalesExcellence,
	CompetencyLeadership,
	CompetencyBrandStorytelling,
	CompetencyOperationalRigor,
}

// ParseCompetency validates a competency name.
func ParseCompetency(s string) (Competency, error) {
	c := Competency(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Competencies {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown competency %q", s)
}

// Assessment holds the scores of a completed assessment. A competency missing
// from Scores was not assessed and is excluded, never read as zero.
type Assessment struct {
	Scores map[Competency]float64
}

// Score returns the score of c and whether it was assessed.
func (a *Assessment) Score(c Competency) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v, ok := a.Scores[c]
	return v, ok
}

// Location is a normalized place. Fields are case-folded; empty means unknown.
type Location struct {
	City    string
	Country string
	Region  string
}

// TalentProfile is the canonical candidate shape consumed by the matching engine.
type TalentProfile struct {
	ID                 string
	CurrentRoleLevel   RoleLevel
	CurrentLocation    Location
	DivisionsExpertise []string
	YearsInLuxury      float64
	Languages          []string
	// Assessment is nil when no assessment was completed.
	Assessment *Assessment
	// TargetBrands is ordered by preference; rank = index + 1.
	TargetBrands     []string
	InternalMobility bool
	LastActiveAt     time.Time
}

// HasDivision reports whether d is among the talent's divisions.
func (t TalentProfile) HasDivision(d string) bool {
	for _, x := range t.DivisionsExpertise {
		if x == d {
			return true
		}
	}
	return false
}

// Speaks reports whether the talent speaks language code lang.
func (t TalentProfile) Speaks(lang string) bool {
	for _, l := range t.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// TargetBrandRank returns the 1-based rank of the folded brand key in
// TargetBrands, or 0.
func (t TalentProfile) TargetBrandRank(brand string) int {
	if brand == "" {
		return 0
	}
	for i, b := range t.TargetBrands {
		if b == brand {
			return i + 1
		}
	}
	return 0
}

// OpportunityProfile is the canonical job opening shape.
type OpportunityProfile struct {
	ID        string
	BrandID   string
	BrandName string
	// BrandKey is the case-folded brand name compared against TargetBrands.
	BrandKey                string
	RoleLevel               RoleLevel
	Division                string
	Location                Location
	RequiredExperienceYears float64
	RequiredLanguages       []string
}
