// Package notify turns match results and team request decisions into
// privacy-filtered payloads for downstream delivery.
//
// Talent-facing payloads may carry the talent's own data in full. Brand and
// group facing payloads carry aggregates and request bookkeeping only; every
// payload is checked with CheckPrivacy before it leaves the projector.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPrivacyViolation is returned when a brand or group payload carries a
// field that is not on the allow list.
var ErrPrivacyViolation = errors.New("privacy violation")

// Type names a payload kind.
type Type string

const (
	TypeDreamBrandAlert   Type = "dream_brand_alert"
	TypeTalentPoolSummary Type = "talent_pool_summary"
	TypeRequestDecision   Type = "team_request_decision"
)

// AudienceKind is who a payload is addressed to.
type AudienceKind string

const (
	AudienceTalent  AudienceKind = "talent"
	AudienceProfile AudienceKind = "profile"
	AudienceBrand   AudienceKind = "brand"
	AudienceGroup   AudienceKind = "group"
)

// Organisational reports whether payloads for k must stay aggregate.
func (k AudienceKind) Organisational() bool {
	return k == AudienceBrand || k == AudienceGroup
}

// Audience addresses a payload.
type Audience struct {
	Kind AudienceKind `json:"kind"`
	ID   string       `json:"id"`
}

// Payload is one notification for one audience.
type Payload struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Audience   Audience       `json:"audience"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// Sink receives payloads. Emission is fire-and-forget from the caller's point
// of view; implementations must not block on delivery.
type Sink interface {
	Emit(ctx context.Context, p Payload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Payload) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, p Payload) error { return f(ctx, p) }

// Discard drops every payload.
var Discard Sink = SinkFunc(func(context.Context, Payload) error { return nil })

// Keys allowed in organisational payloads.
const (
	KeyBrandID          = "brand_id"
	KeyGroupID          = "group_id"
	KeyRequestID        = "request_id"
	KeyStatus           = "status"
	KeyReviewerLevel    = "reviewer_level"
	KeyDepartment       = "department"
	KeyTotal            = "total"
	KeyByRoleLevel      = "by_role_level"
	KeyByRegion         = "by_region"
	KeyInternalMobility = "internal_mobility"
)

// organisationalKeys lists what brand and group audiences may see. Breakdown
// keys must hold counts.
var organisationalKeys = map[string]bool{
	KeyBrandID:          false,
	KeyGroupID:          false,
	KeyRequestID:        false,
	KeyStatus:           false,
	KeyReviewerLevel:    false,
	KeyDepartment:       false,
	KeyTotal:            false,
	KeyByRoleLevel:      true,
	KeyByRegion:         true,
	KeyInternalMobility: true,
}

// CheckPrivacy rejects organisational payloads carrying anything but
// allow-listed keys. Talent and profile payloads always pass.
func CheckPrivacy(p Payload) error {
	if !p.Audience.Kind.Organisational() {
		return nil
	}
	for k, v := range p.Data {
		counts, ok := organisationalKeys[k]
		if !ok {
			return fmt.Errorf("%w: %s payload %s exposes %q", ErrPrivacyViolation, p.Audience.Kind, p.Type, k)
		}
		if counts {
			if _, isCounts := v.(map[string]int); !isCounts {
				return fmt.Errorf("%w: %s payload %s field %q must hold counts", ErrPrivacyViolation, p.Audience.Kind, p.Type, k)
			}
		}
	}
	return nil
}
