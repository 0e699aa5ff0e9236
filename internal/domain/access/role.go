// Package access resolves team permissions from a role and a scope.
//
// Resolution is identical at the brand tier and at the group tier; the tier
// only decides which membership the caller consults. Everything here is pure.
package access

import (
	"fmt"
	"strings"
)

// Role is a team role. The zero value is not a valid role.
type Role string

const (
	RoleOwner         Role = "owner"
	RoleAdmin         Role = "admin"
	RoleRecruiter     Role = "recruiter"
	RoleHiringManager Role = "hiring_manager"
	RoleViewer        Role = "viewer"
)

// roleRank is the fixed ordinal table. Recruiter and hiring manager share a rank.
var roleRank = map[Role]int{
	RoleViewer:        1,
	RoleRecruiter:     2,
	RoleHiringManager: 2,
	RoleAdmin:         3,
	RoleOwner:         4,
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the ordinal rank of r, 0 for unknown roles.
func (r Role) Rank() int { return roleRank[r] }

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

func (r Role) String() string { return string(r) }

// Tier is the authority level a membership belongs to.
type Tier string

const (
	TierBrand Tier = "brand"
	TierGroup Tier = "group"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierBrand, TierGroup:
		return t, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}
