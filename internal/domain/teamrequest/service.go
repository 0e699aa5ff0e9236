// Package teamrequest runs the team join request workflow:
// pending -> approved | rejected | expired. Every transition goes through the
// store's conditional update, so concurrent reviewers cannot both win.
package teamrequest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/notify"
	"github.com/okian/maison/pkg/logger"
	"github.com/okian/maison/pkg/metrics"
)

const (
	opCreate       = "teamrequest.create"
	opApprove      = "teamrequest.approve"
	opGroupApprove = "teamrequest.group_approve"
	opReject       = "teamrequest.reject"
	opList         = "teamrequest.list"
	opGet          = "teamrequest.get"
	opPending      = "teamrequest.pending"
	opExpire       = "teamrequest.expire"
)

// CreateParams describes a join request. ActorID is the requester.
type CreateParams struct {
	ActorID        string
	BrandID        string
	RequestedRole  string
	RequestedScope access.Scope
	Department     string
}

// ApproveParams carries a reviewer's decision. An empty AssignedRole or a nil
// AssignedScope falls back to what was requested.
type ApproveParams struct {
	ActorID       string
	RequestID     string
	AssignedRole  string
	AssignedScope *access.Scope
	Notes         string
}

// RejectParams carries a rejection.
type RejectParams struct {
	ActorID   string
	RequestID string
	Reason    string
}

// ListParams selects the requests of one brand or of every brand in a group.
type ListParams struct {
	ActorID string
	BrandID string
	GroupID string
	Filter  model.RequestFilter
}

// Service implements the workflow on top of a Store.
type Service struct {
	store     Store
	now       func() time.Time
	newID     func() string
	sink      notify.Sink
	projector *notify.Projector
	log       logger.Logger
}

// New creates a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		now:       time.Now,
		newID:     uuid.NewString,
		sink:      notify.Discard,
		projector: notify.NewProjector(),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// Create files a pending join request for the actor.
func (s *Service) Create(ctx context.Context, p CreateParams) (string, error) {
	if strings.TrimSpace(p.ActorID) == "" {
		return "", errs.WrapKind(opCreate, errs.ErrUnauthenticated, ErrMissingActor)
	}
	role, err := access.ParseRole(p.RequestedRole)
	if err != nil {
		return "", errs.WrapKind(opCreate, errs.ErrValidation, err)
	}
	if role == access.RoleOwner {
		return "", errs.Validation(opCreate, "owner cannot be requested")
	}
	if err := p.RequestedScope.Validate(); err != nil {
		return "", errs.WrapKind(opCreate, errs.ErrValidation, err)
	}
	brand, err := s.store.Brand(ctx, p.BrandID)
	if err != nil {
		return "", storeErr(opCreate, err)
	}

	// An overdue pending request would otherwise be flipped silently by the
	// store's insert, without a decision payload.
	if _, err := s.ExpireOverdue(ctx); err != nil {
		s.log.Warn(ctx, "lazy expiry before create failed", logger.Error(err))
	}

	now := s.clock()
	req := model.TeamRequest{
		ID:                    s.newID(),
		BrandID:               brand.ID,
		ProfileID:             p.ActorID,
		RequestedRole:         role,
		RequestedScope:        p.RequestedScope.Normalize(),
		Department:            strings.TrimSpace(p.Department),
		Status:                model.StatusPending,
		RequiresGroupApproval: brand.RequiresGroupApproval,
		CreatedAt:             now,
		ExpiresAt:             now.Add(model.RequestTTL),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		if isConflict(err) {
			metrics.RecordTeamRequestConflict("create")
		}
		return "", storeErr(opCreate, err)
	}

	metrics.RecordTeamRequestTransition(string(model.StatusPending), "")
	s.log.Info(ctx, "team request created",
		logger.String("request_id", req.ID),
		logger.String("brand_id", req.BrandID),
		logger.String("profile_id", req.ProfileID),
		logger.Bool("requires_group_approval", req.RequiresGroupApproval),
	)
	return req.ID, nil
}

// Approve accepts a request on the brand path.
func (s *Service) Approve(ctx context.Context, p ApproveParams) (model.TeamRequest, error) {
	return s.approve(ctx, opApprove, access.TierBrand, p)
}

// GroupApprove accepts a request that the brand routed to its owning group.
func (s *Service) GroupApprove(ctx context.Context, p ApproveParams) (model.TeamRequest, error) {
	return s.approve(ctx, opGroupApprove, access.TierGroup, p)
}

func (s *Service) approve(ctx context.Context, op string, tier access.Tier, p ApproveParams) (model.TeamRequest, error) {
	if strings.TrimSpace(p.ActorID) == "" {
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrUnauthenticated, ErrMissingActor)
	}
	var assignedRole access.Role
	if strings.TrimSpace(p.AssignedRole) != "" {
		r, err := access.ParseRole(p.AssignedRole)
		if err != nil {
			return model.TeamRequest{}, errs.WrapKind(op, errs.ErrValidation, err)
		}
		if r == access.RoleOwner {
			return model.TeamRequest{}, errs.Validation(op, "owner cannot be assigned")
		}
		assignedRole = r
	}
	if p.AssignedScope != nil {
		if err := p.AssignedScope.Validate(); err != nil {
			return model.TeamRequest{}, errs.WrapKind(op, errs.ErrValidation, err)
		}
	}

	req, brand, err := s.load(ctx, op, p.RequestID)
	if err != nil {
		return model.TeamRequest{}, err
	}
	if assignedRole == "" {
		assignedRole = req.RequestedRole
	}
	assignedScope := req.RequestedScope
	if p.AssignedScope != nil {
		assignedScope = p.AssignedScope.Normalize()
	}

	actor, err := s.actorAt(ctx, tier, brand, p.ActorID)
	if err != nil {
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrForbidden, err)
	}
	if !s.allowed(tier, actor, req.RequestedScope) || !s.allowed(tier, actor, assignedScope) {
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrForbidden, ErrNotPermitted)
	}
	switch {
	case tier == access.TierBrand && req.RequiresGroupApproval:
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrForbidden, ErrGroupApprovalRequired)
	case tier == access.TierGroup && !req.RequiresGroupApproval:
		metrics.RecordTeamRequestConflict(string(model.StatusApproved))
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrConflict, ErrGroupApprovalNotSet)
	}

	return s.resolve(ctx, op, req, brand, model.Resolution{
		Status:        model.StatusApproved,
		ReviewedBy:    p.ActorID,
		ReviewNotes:   strings.TrimSpace(p.Notes),
		ReviewerLevel: tier,
		AssignedRole:  assignedRole,
		AssignedScope: &assignedScope,
	})
}

// Reject declines a request. A group reviewer of the owning group may reject
// at group tier; otherwise a brand reviewer may, unless the request was routed
// to the group.
func (s *Service) Reject(ctx context.Context, p RejectParams) (model.TeamRequest, error) {
	if strings.TrimSpace(p.ActorID) == "" {
		return model.TeamRequest{}, errs.WrapKind(opReject, errs.ErrUnauthenticated, ErrMissingActor)
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		return model.TeamRequest{}, errs.Validation(opReject, "a rejection reason is required")
	}

	req, brand, err := s.load(ctx, opReject, p.RequestID)
	if err != nil {
		return model.TeamRequest{}, err
	}

	tier := access.TierGroup
	actor, err := s.actorAt(ctx, access.TierGroup, brand, p.ActorID)
	if err != nil || !s.allowed(access.TierGroup, actor, req.RequestedScope) {
		if req.RequiresGroupApproval {
			cause := ErrGroupApprovalRequired
			if err != nil {
				cause = err
			}
			return model.TeamRequest{}, errs.WrapKind(opReject, errs.ErrForbidden, cause)
		}
		tier = access.TierBrand
		actor, err = s.actorAt(ctx, access.TierBrand, brand, p.ActorID)
		if err != nil {
			return model.TeamRequest{}, errs.WrapKind(opReject, errs.ErrForbidden, err)
		}
		if !s.allowed(access.TierBrand, actor, req.RequestedScope) {
			return model.TeamRequest{}, errs.WrapKind(opReject, errs.ErrForbidden, ErrNotPermitted)
		}
	}

	return s.resolve(ctx, opReject, req, brand, model.Resolution{
		Status:        model.StatusRejected,
		ReviewedBy:    p.ActorID,
		ReviewNotes:   reason,
		ReviewerLevel: tier,
	})
}

// ListPending returns the requests of a brand or of a group's brands that
// match the filter and fall inside the actor's scope. Overdue requests are
// expired first.
func (s *Service) ListPending(ctx context.Context, p ListParams) ([]model.TeamRequest, error) {
	if strings.TrimSpace(p.ActorID) == "" {
		return nil, errs.WrapKind(opList, errs.ErrUnauthenticated, ErrMissingActor)
	}
	if (p.BrandID == "") == (p.GroupID == "") {
		return nil, errs.Validation(opList, "exactly one of brand id or group id is required")
	}

	var (
		tier     access.Tier
		actor    access.Actor
		brandIDs []string
	)
	if p.BrandID != "" {
		brand, err := s.store.Brand(ctx, p.BrandID)
		if err != nil {
			return nil, storeErr(opList, err)
		}
		tier, brandIDs = access.TierBrand, []string{brand.ID}
		if actor, err = s.actorAt(ctx, tier, brand, p.ActorID); err != nil {
			return nil, errs.WrapKind(opList, errs.ErrForbidden, err)
		}
	} else {
		group, err := s.store.Group(ctx, p.GroupID)
		if err != nil {
			return nil, storeErr(opList, err)
		}
		tier = access.TierGroup
		m, err := s.store.GroupMember(ctx, group.ID, p.ActorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, errs.WrapKind(opList, errs.ErrForbidden, ErrNoMembership)
			}
			return nil, storeErr(opList, err)
		}
		actor = m.Actor()
		brands, err := s.store.BrandsInGroup(ctx, group.ID)
		if err != nil {
			return nil, storeErr(opList, err)
		}
		for _, b := range brands {
			brandIDs = append(brandIDs, b.ID)
		}
	}
	if !access.Grants(actor.Role, access.ActionViewTeamRequests) {
		metrics.RecordPermissionCheck(string(tier), string(access.ActionViewTeamRequests), false)
		return nil, errs.WrapKind(opList, errs.ErrForbidden, ErrNotPermitted)
	}

	if _, err := s.ExpireOverdue(ctx); err != nil {
		s.log.Warn(ctx, "lazy expiry before listing failed", logger.Error(err))
	}
	all, err := s.store.ListRequests(ctx, RequestQuery{BrandIDs: brandIDs, Filter: p.Filter})
	if err != nil {
		return nil, storeErr(opList, err)
	}
	out := make([]model.TeamRequest, 0, len(all))
	for _, r := range all {
		if access.CheckPermission(actor, access.ActionViewTeamRequests, r.RequestedScope) {
			out = append(out, r)
		}
	}
	metrics.RecordPermissionCheck(string(tier), string(access.ActionViewTeamRequests), true)
	return out, nil
}

// Get returns a request as of now. The requester and reviewers of the owning
// brand or group may read it.
func (s *Service) Get(ctx context.Context, actorID, requestID string) (model.TeamRequest, error) {
	if strings.TrimSpace(actorID) == "" {
		return model.TeamRequest{}, errs.WrapKind(opGet, errs.ErrUnauthenticated, ErrMissingActor)
	}
	req, brand, err := s.load(ctx, opGet, requestID)
	if err != nil {
		return model.TeamRequest{}, err
	}
	now := s.clock()
	if req.ProfileID == actorID {
		return req.View(now), nil
	}
	for _, tier := range []access.Tier{access.TierBrand, access.TierGroup} {
		actor, err := s.actorAt(ctx, tier, brand, actorID)
		if err != nil {
			continue
		}
		if access.CheckPermission(actor, access.ActionViewTeamRequests, req.RequestedScope) {
			return req.View(now), nil
		}
	}
	return model.TeamRequest{}, errs.WrapKind(opGet, errs.ErrForbidden, ErrNoMembership)
}

// PendingRequestID returns the profile's live pending request id, or "" when
// there is none. It is always derived from the request rows.
func (s *Service) PendingRequestID(ctx context.Context, profileID string) (string, error) {
	if strings.TrimSpace(profileID) == "" {
		return "", errs.WrapKind(opPending, errs.ErrUnauthenticated, ErrMissingActor)
	}
	id, err := s.store.PendingRequestID(ctx, profileID, s.clock())
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", storeErr(opPending, err)
	}
	return id, nil
}

// ExpireOverdue flips every overdue pending request to expired and notifies
// the affected parties. Running it twice is harmless.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireOverdue(ctx, s.clock())
	if err != nil {
		return 0, storeErr(opExpire, err)
	}
	for _, r := range expired {
		metrics.RecordTeamRequestTransition(string(model.StatusExpired), "")
		brand, err := s.store.Brand(ctx, r.BrandID)
		if err != nil {
			s.log.Warn(ctx, "expired request has no brand", logger.String("request_id", r.ID), logger.Error(err))
			continue
		}
		s.emit(ctx, r, brand)
	}
	metrics.RecordExpirySweep(len(expired))
	if len(expired) > 0 {
		s.log.Info(ctx, "expired overdue team requests", logger.Int("count", len(expired)))
	}
	return len(expired), nil
}

func (s *Service) load(ctx context.Context, op, requestID string) (model.TeamRequest, model.Brand, error) {
	req, err := s.store.Request(ctx, requestID)
	if err != nil {
		return model.TeamRequest{}, model.Brand{}, storeErr(op, err)
	}
	brand, err := s.store.Brand(ctx, req.BrandID)
	if err != nil {
		return model.TeamRequest{}, model.Brand{}, storeErr(op, err)
	}
	return req, brand, nil
}

// actorAt returns the actor's role and scope at tier for brand. A missing
// membership is a cross-tenant access and reported as ErrNoMembership.
func (s *Service) actorAt(ctx context.Context, tier access.Tier, brand model.Brand, actorID string) (access.Actor, error) {
	if tier == access.TierGroup {
		if brand.GroupID == "" {
			return access.Actor{}, ErrNoMembership
		}
		m, err := s.store.GroupMember(ctx, brand.GroupID, actorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return access.Actor{}, ErrNoMembership
			}
			return access.Actor{}, err
		}
		return m.Actor(), nil
	}
	m, err := s.store.BrandMember(ctx, brand.ID, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return access.Actor{}, ErrNoMembership
		}
		return access.Actor{}, err
	}
	return m.Actor(), nil
}

func (s *Service) allowed(tier access.Tier, actor access.Actor, target access.Scope) bool {
	ok := access.CheckPermission(actor, access.ActionApproveBrandRequests, target)
	metrics.RecordPermissionCheck(string(tier), string(access.ActionApproveBrandRequests), ok)
	return ok
}

// resolve applies a reviewer decision through the store's conditional update.
// An overdue request is expired first and the decision fails with a conflict.
func (s *Service) resolve(ctx context.Context, op string, req model.TeamRequest, brand model.Brand, res model.Resolution) (model.TeamRequest, error) {
	now := s.clock()
	res.ReviewedAt = now

	if req.Status.Terminal() {
		metrics.RecordTeamRequestConflict(string(res.Status))
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrConflict, ErrRequestClosed)
	}
	if req.Overdue(now) {
		s.expireOne(ctx, req, brand, now)
		metrics.RecordTeamRequestConflict(string(res.Status))
		return model.TeamRequest{}, errs.WrapKind(op, errs.ErrConflict, ErrRequestExpired)
	}

	updated, err := s.store.ResolveRequest(ctx, req.ID, res)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			metrics.RecordTeamRequestConflict(string(res.Status))
			return model.TeamRequest{}, errs.WrapKind(op, errs.ErrConflict, ErrRequestClosed)
		}
		return model.TeamRequest{}, storeErr(op, err)
	}

	metrics.RecordTeamRequestTransition(string(updated.Status), string(updated.ReviewerLevel))
	s.log.Info(ctx, "team request resolved",
		logger.String("request_id", updated.ID),
		logger.String("brand_id", updated.BrandID),
		logger.String("status", string(updated.Status)),
		logger.String("reviewer_level", string(updated.ReviewerLevel)),
		logger.String("reviewed_by", updated.ReviewedBy),
	)
	s.emit(ctx, updated, brand)
	return updated, nil
}

func (s *Service) expireOne(ctx context.Context, req model.TeamRequest, brand model.Brand, now time.Time) {
	expired, err := s.store.ResolveRequest(ctx, req.ID, model.Resolution{Status: model.StatusExpired, ReviewedAt: now})
	switch {
	case err == nil:
		metrics.RecordTeamRequestTransition(string(model.StatusExpired), "")
		s.emit(ctx, expired, brand)
	case errors.Is(err, ErrNotPending):
	default:
		s.log.Warn(ctx, "expire overdue request failed", logger.String("request_id", req.ID), logger.Error(err))
	}
}

// emit projects the decision and hands each payload to the sink. Delivery
// problems are logged, never returned.
func (s *Service) emit(ctx context.Context, req model.TeamRequest, brand model.Brand) {
	for _, p := range s.projector.Decision(req, brand) {
		if err := notify.CheckPrivacy(p); err != nil {
			s.log.Error(ctx, "decision payload withheld", logger.String("payload_id", p.ID), logger.Error(err))
			metrics.RecordErrorByComponent("teamrequest", "privacy")
			continue
		}
		if err := s.sink.Emit(ctx, p); err != nil {
			s.log.Warn(ctx, "emit decision payload failed", logger.String("payload_id", p.ID), logger.Error(err))
		}
	}
}

func isConflict(err error) bool {
	return errors.Is(err, ErrPendingExists) ||
		errors.Is(err, ErrAlreadyMember) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrDuplicateID)
}

// storeErr classifies a store error.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errs.WrapKind(op, errs.ErrNotFound, err)
	case isConflict(err):
		return errs.WrapKind(op, errs.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
