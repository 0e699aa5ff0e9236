package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
)

const defaultAlertThreshold = 70

// payloadNamespace scopes the name-based payload ids.
var payloadNamespace = uuid.MustParse("5b0f7c7e-2a7d-4d43-9c55-3f6e1d8a9b21")

// PayloadID derives the id of a payload from its type, audience and subject.
// The same event projected twice yields the same id, which is what the
// delivery deduper keys on.
func PayloadID(key string) string {
	return uuid.NewSHA1(payloadNamespace, []byte(key)).String()
}

// Option applies a configuration option to the Projector.
type Option func(*Projector)

// WithClock sets the time source stamped on payloads.
func WithClock(now func() time.Time) Option {
	return func(p *Projector) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator sets how a payload key becomes a payload id.
func WithIDGenerator(gen func(key string) string) Option {
	return func(p *Projector) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// WithAlertThreshold sets the score a dream brand match needs to alert.
func WithAlertThreshold(threshold int) Option {
	return func(p *Projector) {
		if threshold >= 0 && threshold <= 100 {
			p.alertThreshold = threshold
		}
	}
}

// Projector builds payloads from domain events.
type Projector struct {
	now            func() time.Time
	newID          func(key string) string
	alertThreshold int
}

// NewProjector creates a Projector.
func NewProjector(opts ...Option) *Projector {
	p := &Projector{
		now:            time.Now,
		newID:          PayloadID,
		alertThreshold: defaultAlertThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Projector) payload(t Type, aud Audience, subject []string, data map[string]any) Payload {
	key := strings.Join(append([]string{string(t), string(aud.Kind), aud.ID}, subject...), "|")
	return Payload{
		ID:         p.newID(key),
		Type:       t,
		Audience:   aud,
		OccurredAt: p.now().UTC(),
		Data:       data,
	}
}

// DreamBrandAlert tells a talent that one of their dream brands has a fitting
// opening. It reports false when the brand is not on the talent's list or
// the score is below the alert threshold.
func (p *Projector) DreamBrandAlert(talent model.TalentProfile, opportunity model.OpportunityProfile, result model.MatchResult) (Payload, bool) {
	if result.DreamBrandRank == 0 || result.OverallScore < p.alertThreshold {
		return Payload{}, false
	}
	breakdown := make(map[string]float64, len(result.Breakdown))
	for _, s := range result.Breakdown {
		if s.Included {
			breakdown[string(s.Axis)] = s.Score
		}
	}
	return p.payload(TypeDreamBrandAlert, Audience{Kind: AudienceTalent, ID: talent.ID}, []string{opportunity.ID}, map[string]any{
		"talent_id":        talent.ID,
		"opportunity_id":   opportunity.ID,
		"brand_id":         opportunity.BrandID,
		"brand_name":       opportunity.BrandName,
		"role_level":       opportunity.RoleLevel.String(),
		"division":         opportunity.Division,
		"city":             opportunity.Location.City,
		"dream_brand_rank": result.DreamBrandRank,
		"overall_score":    result.OverallScore,
		"strong":           result.Strong,
		"breakdown":        breakdown,
	}), true
}

// TalentPoolSummary aggregates a brand's candidate pool. No identifier or
// individual attribute leaves this function.
func (p *Projector) TalentPoolSummary(brandID string, talents []model.TalentProfile) Payload {
	byLevel := make(map[string]int)
	byRegion := make(map[string]int)
	mobility := map[string]int{"internal": 0, "external": 0}
	for _, t := range talents {
		byLevel[t.CurrentRoleLevel.String()]++
		region := t.CurrentLocation.Region
		if region == "" {
			region = "unknown"
		}
		byRegion[region]++
		if t.InternalMobility {
			mobility["internal"]++
		} else {
			mobility["external"]++
		}
	}
	// fmt prints maps in key order, so equal pools share a subject.
	subject := fmt.Sprint(len(talents), byLevel, byRegion, mobility)
	return p.payload(TypeTalentPoolSummary, Audience{Kind: AudienceBrand, ID: brandID}, []string{subject}, map[string]any{
		KeyBrandID:          brandID,
		KeyTotal:            len(talents),
		KeyByRoleLevel:      byLevel,
		KeyByRegion:         byRegion,
		KeyInternalMobility: mobility,
	})
}

// Decision builds the payloads for a request that reached a terminal state:
// one for the requester and one for the brand team, plus one for the group
// when the group reviewed it.
func (p *Projector) Decision(req model.TeamRequest, brand model.Brand) []Payload {
	own := map[string]any{
		"request_id": req.ID,
		"brand_id":   req.BrandID,
		"brand_name": brand.Name,
		"status":     string(req.Status),
	}
	switch req.Status {
	case model.StatusApproved:
		own["assigned_role"] = string(req.AssignedRole)
		if req.AssignedScope != nil {
			own["assigned_scope"] = *req.AssignedScope
		}
	case model.StatusRejected:
		own["reason"] = req.ReviewNotes
	case model.StatusExpired:
		own["expired_at"] = req.ExpiresAt.UTC()
	}
	if req.ReviewerLevel != "" {
		own["reviewer_level"] = string(req.ReviewerLevel)
	}

	org := func() map[string]any {
		m := map[string]any{
			KeyRequestID: req.ID,
			KeyBrandID:   req.BrandID,
			KeyStatus:    string(req.Status),
		}
		if req.ReviewerLevel != "" {
			m[KeyReviewerLevel] = string(req.ReviewerLevel)
		}
		if req.Department != "" {
			m[KeyDepartment] = req.Department
		}
		return m
	}

	subject := []string{req.ID, string(req.Status)}
	out := []Payload{
		p.payload(TypeRequestDecision, Audience{Kind: AudienceProfile, ID: req.ProfileID}, subject, own),
		p.payload(TypeRequestDecision, Audience{Kind: AudienceBrand, ID: req.BrandID}, subject, org()),
	}
	if req.ReviewerLevel == access.TierGroup && brand.GroupID != "" {
		data := org()
		data[KeyGroupID] = brand.GroupID
		out = append(out, p.payload(TypeRequestDecision, Audience{Kind: AudienceGroup, ID: brand.GroupID}, subject, data))
	}
	return out
}
