package model

// Axis names one scored dimension of a match.
type Axis string

const (
	AxisRole       Axis = "role"
	AxisLocation   Axis = "location"
	AxisDivision   Axis = "division"
	AxisExperience Axis = "experience"
	AxisLanguage   Axis = "language"
	AxisAssessment Axis = "assessment"
)

// Axes lists every axis in breakdown order.
var Axes = []Axis{AxisRole, AxisLocation, AxisDivision, AxisExperience, AxisLanguage, AxisAssessment}

// AxisScore is one line of a match breakdown. Included is false when the
// axis had no input and was left out of the weighted mean.
type AxisScore struct {
	Axis     Axis    `json:"axis"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Included bool    `json:"included"`
}

// MatchResult is the outcome of scoring one talent against one opportunity.
type MatchResult struct {
	TalentID      string      `json:"talent_id"`
	OpportunityID string      `json:"opportunity_id"`
	OverallScore  int         `json:"overall_score"`
	Breakdown     []AxisScore `json:"breakdown"`
	// BaseScore is the weighted mean before the dream brand bonus.
	BaseScore       float64 `json:"base_score"`
	DreamBrandRank  int     `json:"dream_brand_rank,omitempty"`
	DreamBrandBonus float64 `json:"dream_brand_bonus,omitempty"`
	Strong          bool    `json:"strong"`
}

// Axis returns the breakdown line for a, if present.
func (r MatchResult) Axis(a Axis) (AxisScore, bool) {
	for _, s := range r.Breakdown {
		if s.Axis == a {
			return s, true
		}
	}
	return AxisScore{}, false
}
