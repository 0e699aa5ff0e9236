package access

import (
	"fmt"
	"strings"
)

// Action is something a team member may be allowed to do.
type Action string

const (
	ActionViewPipeline         Action = "view_pipeline"
	ActionViewAnalytics        Action = "view_analytics"
	ActionManageOpportunities  Action = "manage_opportunities"
	ActionContactTalent        Action = "contact_talent"
	ActionViewTeamRequests     Action = "view_team_requests"
	ActionApproveBrandRequests Action = "approve_brand_requests"
	ActionManageTeam           Action = "manage_team"
	ActionManageBrandSettings  Action = "manage_brand_settings"
)

// grant describes how an action is granted: either to every role ranked at
// or above minRole, or to an explicit role list.
type grant struct {
	minRole Role
	roles   []Role
}

var grants = map[Action]grant{
	ActionViewPipeline:         {minRole: RoleViewer},
	ActionViewAnalytics:        {minRole: RoleViewer},
	ActionManageOpportunities:  {minRole: RoleRecruiter},
	ActionContactTalent:        {roles: []Role{RoleRecruiter, RoleAdmin, RoleOwner}},
	ActionViewTeamRequests:     {roles: []Role{RoleAdmin, RoleOwner}},
	ActionApproveBrandRequests: {roles: []Role{RoleAdmin, RoleOwner}},
	ActionManageTeam:           {roles: []Role{RoleAdmin, RoleOwner}},
	ActionManageBrandSettings:  {roles: []Role{RoleOwner}},
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := grants[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Actions returns every known action.
func Actions() []Action {
	return []Action{
		ActionViewPipeline,
		ActionViewAnalytics,
		ActionManageOpportunities,
		ActionContactTalent,
		ActionViewTeamRequests,
		ActionApproveBrandRequests,
		ActionManageTeam,
		ActionManageBrandSettings,
	}
}

// Grants reports whether role may perform action anywhere in its scope.
func Grants(role Role, action Action) bool {
	g, ok := grants[action]
	if !ok || !role.Valid() {
		return false
	}
	if g.roles == nil {
		return role.AtLeast(g.minRole)
	}
	for _, r := range g.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor is the role and scope a member acts with at one tier.
type Actor struct {
	Role  Role
	Scope Scope
}

// CheckPermission reports whether actor may perform action on target. The
// role must grant the action and the actor scope must contain the target.
func CheckPermission(actor Actor, action Action, target Scope) bool {
	if !Grants(actor.Role, action) {
		return false
	}
	return actor.Scope.Normalize().Contains(target.Normalize())
}
