package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/maison/internal/domain/access"
)

// RequestTTL is how long a team request stays pending before it expires.
const RequestTTL = 7 * 24 * time.Hour

// Status is the lifecycle state of a team request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool { return s != StatusPending }

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return v, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Brand is a single maison.
type Brand struct {
	ID      string `json:"id" yaml:"id" koanf:"id"`
	GroupID string `json:"group_id,omitempty" yaml:"group_id" koanf:"group_id"`
	Name    string `json:"name" yaml:"name" koanf:"name"`
	// RequiresGroupApproval routes new join requests to the owning group.
	RequiresGroupApproval bool `json:"requires_group_approval" yaml:"requires_group_approval" koanf:"requires_group_approval"`
}

// Group is a parent company owning several brands.
type Group struct {
	ID   string `json:"id" yaml:"id" koanf:"id"`
	Name string `json:"name" yaml:"name" koanf:"name"`
}

// BrandMember is a profile's membership in a brand team.
type BrandMember struct {
	BrandID   string       `json:"brand_id" yaml:"brand_id" koanf:"brand_id"`
	ProfileID string       `json:"profile_id" yaml:"profile_id" koanf:"profile_id"`
	Role      access.Role  `json:"role" yaml:"role" koanf:"role"`
	Scope     access.Scope `json:"scope" yaml:"scope" koanf:"scope"`
	Active    bool         `json:"active" yaml:"active" koanf:"active"`
	JoinedAt  time.Time    `json:"joined_at" yaml:"joined_at" koanf:"joined_at"`
}

// GroupMember is a profile's membership at group level.
type GroupMember struct {
	GroupID   string       `json:"group_id" yaml:"group_id" koanf:"group_id"`
	ProfileID string       `json:"profile_id" yaml:"profile_id" koanf:"profile_id"`
	Role      access.Role  `json:"role" yaml:"role" koanf:"role"`
	Scope     access.Scope `json:"scope" yaml:"scope" koanf:"scope"`
}

// Actor returns the role and scope the member acts with.
func (m BrandMember) Actor() access.Actor { return access.Actor{Role: m.Role, Scope: m.Scope} }

// Actor returns the role and scope the member acts with.
func (m GroupMember) Actor() access.Actor { return access.Actor{Role: m.Role, Scope: m.Scope} }

// TeamRequest is a profile's request to join a brand team.
type TeamRequest struct {
	ID             string       `json:"id"`
	BrandID        string       `json:"brand_id"`
	ProfileID      string       `json:"profile_id"`
	RequestedRole  access.Role  `json:"requested_role"`
	RequestedScope access.Scope `json:"requested_scope"`
	Department     string       `json:"department,omitempty"`
	Status         Status       `json:"status"`
	// RequiresGroupApproval is the brand setting captured at creation.
	RequiresGroupApproval bool      `json:"requires_group_approval"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`

	ReviewedBy    string        `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNotes   string        `json:"review_notes,omitempty"`
	ReviewerLevel access.Tier   `json:"reviewer_level,omitempty"`
	AssignedRole  access.Role   `json:"assigned_role,omitempty"`
	AssignedScope *access.Scope `json:"assigned_scope,omitempty"`
}

// Overdue reports whether a pending request has passed its expiry at now.
func (r TeamRequest) Overdue(now time.Time) bool {
	return r.Status == StatusPending && !now.Before(r.ExpiresAt)
}

// View returns r as observed at now: an overdue pending request reads as
// expired even before the store has been updated.
func (r TeamRequest) View(now time.Time) TeamRequest {
	if r.Overdue(now) {
		r.Status = StatusExpired
	}
	return r
}

// Resolution is the terminal state written by a reviewer.
type Resolution struct {
	Status        Status
	ReviewedBy    string
	ReviewedAt    time.Time
	ReviewNotes   string
	ReviewerLevel access.Tier
	AssignedRole  access.Role
	AssignedScope *access.Scope
}

// RequestFilter narrows request listings. Zero values match everything except
// Status, which defaults to pending.
type RequestFilter struct {
	Status        Status
	Department    string
	RequestedRole access.Role
}

// Match reports whether r passes the filter.
func (f RequestFilter) Match(r TeamRequest) bool {
	status := f.Status
	if status == "" {
		status = StatusPending
	}
	if r.Status != status {
		return false
	}
	if f.Department != "" && !strings.EqualFold(f.Department, r.Department) {
		return false
	}
	if f.RequestedRole != "" && f.RequestedRole != r.RequestedRole {
		return false
	}
	return true
}
