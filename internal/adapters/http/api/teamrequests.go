package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/teamrequest"
)

type createRequest struct {
	BrandID        string       `json:"brand_id"`
	RequestedRole  string       `json:"requested_role"`
	RequestedScope access.Scope `json:"requested_scope"`
	Department     string       `json:"department"`
}

type createResponse struct {
	ID string `json:"id"`
}

type approveRequest struct {
	AssignedRole  string        `json:"assigned_role"`
	AssignedScope *access.Scope `json:"assigned_scope"`
	Notes         string        `json:"notes"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type listResponse struct {
	Requests []model.TeamRequest `json:"requests"`
}

type pendingResponse struct {
	RequestID string `json:"request_id"`
}

// handleCreateRequest handles POST /v1/team-requests. The caller is the
// requester.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_team_request"
	var req createRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.deps.Create(r.Context(), teamrequest.CreateParams{
		ActorID:        actor(r),
		BrandID:        req.BrandID,
		RequestedRole:  req.RequestedRole,
		RequestedScope: req.RequestedScope,
		Department:     req.Department,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{ID: id})
}

// handleGetRequest handles GET /v1/team-requests/{id}.
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.Get(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleApprove handles POST /v1/team-requests/{id}/approve.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.approve(w, r, "api.approve_team_request", s.deps.Approve)
}

// handleGroupApprove handles POST /v1/team-requests/{id}/group-approve.
func (s *Server) handleGroupApprove(w http.ResponseWriter, r *http.Request) {
	s.approve(w, r, "api.group_approve_team_request", s.deps.GroupApprove)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request, op string,
	decide func(ctx context.Context, p teamrequest.ApproveParams) (model.TeamRequest, error),
) {
	var req approveRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := decide(r.Context(), teamrequest.ApproveParams{
		ActorID:       actor(r),
		RequestID:     mux.Vars(r)["id"],
		AssignedRole:  req.AssignedRole,
		AssignedScope: req.AssignedScope,
		Notes:         req.Notes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleReject handles POST /v1/team-requests/{id}/reject.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	const op = "api.reject_team_request"
	var req rejectRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.deps.Reject(r.Context(), teamrequest.RejectParams{
		ActorID:   actor(r),
		RequestID: mux.Vars(r)["id"],
		Reason:    req.Reason,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListBrand handles GET /v1/brands/{id}/team-requests.
func (s *Server) handleListBrand(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, "api.list_brand_requests", teamrequest.ListParams{BrandID: mux.Vars(r)["id"]})
}

// handleListGroup handles GET /v1/groups/{id}/team-requests.
func (s *Server) handleListGroup(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, "api.list_group_requests", teamrequest.ListParams{GroupID: mux.Vars(r)["id"]})
}

// list reads the status, department and role query filters.
func (s *Server) list(w http.ResponseWriter, r *http.Request, op string, p teamrequest.ListParams) {
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status, err := model.ParseStatus(v)
		if err != nil {
			s.fail(w, r, errs.WrapKind(op, errs.ErrValidation, err))
			return
		}
		p.Filter.Status = status
	}
	if v := q.Get("role"); v != "" {
		role, err := access.ParseRole(v)
		if err != nil {
			s.fail(w, r, errs.WrapKind(op, errs.ErrValidation, err))
			return
		}
		p.Filter.RequestedRole = role
	}
	p.Filter.Department = q.Get("department")
	p.ActorID = actor(r)

	out, err := s.deps.ListPending(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out == nil {
		out = []model.TeamRequest{}
	}
	writeJSON(w, http.StatusOK, listResponse{Requests: out})
}

// handlePendingRequest handles GET /v1/profiles/{id}/pending-request. A
// profile may only read its own pending request.
func (s *Server) handlePendingRequest(w http.ResponseWriter, r *http.Request) {
	const op = "api.pending_request"
	profileID := mux.Vars(r)["id"]
	if profileID != actor(r) {
		s.fail(w, r, errs.NewKind(op, errs.ErrForbidden))
		return
	}
	id, err := s.deps.PendingRequestID(r.Context(), profileID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{RequestID: id})
}
