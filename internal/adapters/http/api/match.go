package api

import (
	"net/http"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/pkg/metrics"
)

type matchRequest struct {
	Talent      normalize.RawTalent      `json:"talent"`
	Opportunity normalize.RawOpportunity `json:"opportunity"`
}

type rankRequest struct {
	Opportunity normalize.RawOpportunity `json:"opportunity"`
	Talents     []normalize.RawTalent    `json:"talents"`
}

type rankResponse struct {
	Matches []matching.RankedMatch `json:"matches"`
}

type permissionRequest struct {
	Role   string       `json:"role"`
	Scope  access.Scope `json:"scope"`
	Action string       `json:"action"`
	Target access.Scope `json:"target"`
}

type permissionResponse struct {
	Allowed bool `json:"allowed"`
}

// handleMatch handles POST /v1/match requests.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	var req matchRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.Match(r.Context(), req.Talent, req.Opportunity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRank handles POST /v1/rank requests.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank"
	var req rankRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ranked, err := s.deps.Rank(r.Context(), req.Opportunity, req.Talents)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []matching.RankedMatch{}
	}
	writeJSON(w, http.StatusOK, rankResponse{Matches: ranked})
}

// handleCheckPermission handles POST /v1/permissions/check requests. It
// evaluates the submitted role and scope without consulting any membership.
func (s *Server) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	const op = "api.check_permission"
	var req permissionRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		s.fail(w, r, errs.WrapKind(op, errs.ErrValidation, err))
		return
	}
	action, err := access.ParseAction(req.Action)
	if err != nil {
		s.fail(w, r, errs.WrapKind(op, errs.ErrValidation, err))
		return
	}
	if err := req.Scope.Validate(); err != nil {
		s.fail(w, r, errs.WrapKind(op, errs.ErrValidation, err))
		return
	}
	if err := req.Target.Validate(); err != nil {
		s.fail(w, r, errs.WrapKind(op, errs.ErrValidation, err))
		return
	}

	allowed := access.CheckPermission(access.Actor{Role: role, Scope: req.Scope}, action, req.Target)
	metrics.RecordPermissionCheck("adhoc", string(action), allowed)
	writeJSON(w, http.StatusOK, permissionResponse{Allowed: allowed})
}
