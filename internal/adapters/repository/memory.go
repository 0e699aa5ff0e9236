// Package repository holds the in-memory teamrequest.Store and the helpers
// the SQL implementations in the sqlite and postgres subpackages share.
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/teamrequest"
)

type memberKey struct {
	orgID     string
	profileID string
}

// MemoryStore keeps the workflow state in process memory. One mutex guards
// every table, so each method is atomic.
type MemoryStore struct {
	mu           sync.RWMutex
	groups       map[string]model.Group
	brands       map[string]model.Brand
	brandMembers map[memberKey]model.BrandMember
	groupMembers map[memberKey]model.GroupMember
	requests     map[string]model.TeamRequest
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:       make(map[string]model.Group),
		brands:       make(map[string]model.Brand),
		brandMembers: make(map[memberKey]model.BrandMember),
		groupMembers: make(map[memberKey]model.GroupMember),
		requests:     make(map[string]model.TeamRequest),
	}
}

var _ teamrequest.SeedStore = (*MemoryStore)(nil)

// SaveGroup implements teamrequest.Seeder.
func (s *MemoryStore) SaveGroup(_ context.Context, g model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

// SaveBrand implements teamrequest.Seeder.
func (s *MemoryStore) SaveBrand(_ context.Context, b model.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[b.ID] = b
	return nil
}

// SaveBrandMember implements teamrequest.Seeder.
func (s *MemoryStore) SaveBrandMember(_ context.Context, m model.BrandMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Scope = m.Scope.Normalize()
	s.brandMembers[memberKey{m.BrandID, m.ProfileID}] = m
	return nil
}

// SaveGroupMember implements teamrequest.Seeder.
func (s *MemoryStore) SaveGroupMember(_ context.Context, m model.GroupMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Scope = m.Scope.Normalize()
	s.groupMembers[memberKey{m.GroupID, m.ProfileID}] = m
	return nil
}

// Brand implements teamrequest.Store.
func (s *MemoryStore) Brand(_ context.Context, id string) (model.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brands[id]
	if !ok {
		return model.Brand{}, teamrequest.ErrNotFound
	}
	return b, nil
}

// Group implements teamrequest.Store.
func (s *MemoryStore) Group(_ context.Context, id string) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return model.Group{}, teamrequest.ErrNotFound
	}
	return g, nil
}

// BrandsInGroup implements teamrequest.Store.
func (s *MemoryStore) BrandsInGroup(_ context.Context, groupID string) ([]model.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Brand
	for _, b := range s.brands {
		if b.GroupID == groupID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BrandMember implements teamrequest.Store.
func (s *MemoryStore) BrandMember(_ context.Context, brandID, profileID string) (model.BrandMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.brandMembers[memberKey{brandID, profileID}]
	if !ok || !m.Active {
		return model.BrandMember{}, teamrequest.ErrNotFound
	}
	return m, nil
}

// GroupMember implements teamrequest.Store.
func (s *MemoryStore) GroupMember(_ context.Context, groupID, profileID string) (model.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.groupMembers[memberKey{groupID, profileID}]
	if !ok {
		return model.GroupMember{}, teamrequest.ErrNotFound
	}
	return m, nil
}

// CountBrandMembers implements teamrequest.Store.
func (s *MemoryStore) CountBrandMembers(_ context.Context, brandID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, m := range s.brandMembers {
		if k.orgID == brandID && m.Active {
			n++
		}
	}
	return n, nil
}

// Request implements teamrequest.Store.
func (s *MemoryStore) Request(_ context.Context, id string) (model.TeamRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return model.TeamRequest{}, teamrequest.ErrNotFound
	}
	return r, nil
}

// ListRequests implements teamrequest.Store.
func (s *MemoryStore) ListRequests(_ context.Context, q teamrequest.RequestQuery) ([]model.TeamRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	brands := make(map[string]struct{}, len(q.BrandIDs))
	for _, id := range q.BrandIDs {
		brands[id] = struct{}{}
	}
	var out []model.TeamRequest
	for _, r := range s.requests {
		if _, ok := brands[r.BrandID]; !ok {
			continue
		}
		if q.Filter.Match(r) {
			out = append(out, r)
		}
	}
	SortRequests(out)
	return out, nil
}

// SortRequests orders requests by creation time, then id.
func SortRequests(rs []model.TeamRequest) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

// PendingRequestID implements teamrequest.Store.
func (s *MemoryStore) PendingRequestID(_ context.Context, profileID string, now time.Time) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.ProfileID == profileID && r.Status == model.StatusPending && !r.Overdue(now) {
			return r.ID, nil
		}
	}
	return "", teamrequest.ErrNotFound
}

// CreateRequest implements teamrequest.Store.
func (s *MemoryStore) CreateRequest(_ context.Context, req model.TeamRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return teamrequest.ErrDuplicateID
	}
	for id, r := range s.requests {
		if r.ProfileID != req.ProfileID || r.Status != model.StatusPending {
			continue
		}
		if r.Overdue(req.CreatedAt) {
			r.Status = model.StatusExpired
			s.requests[id] = r
			continue
		}
		return teamrequest.ErrPendingExists
	}
	if m, ok := s.brandMembers[memberKey{req.BrandID, req.ProfileID}]; ok && m.Active {
		return teamrequest.ErrAlreadyMember
	}
	req.RequestedScope = req.RequestedScope.Normalize()
	s.requests[req.ID] = req
	return nil
}

// ResolveRequest implements teamrequest.Store.
func (s *MemoryStore) ResolveRequest(_ context.Context, id string, res model.Resolution) (model.TeamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return model.TeamRequest{}, teamrequest.ErrNotFound
	}
	if r.Status != model.StatusPending {
		return model.TeamRequest{}, teamrequest.ErrNotPending
	}
	overdue := r.Overdue(res.ReviewedAt)
	if (res.Status == model.StatusExpired) != overdue {
		return model.TeamRequest{}, teamrequest.ErrNotPending
	}

	ApplyResolution(&r, res)
	if r.Status == model.StatusApproved {
		s.brandMembers[memberKey{r.BrandID, r.ProfileID}] = MembershipFor(r, res.ReviewedAt)
	}
	s.requests[id] = r
	return r, nil
}

// ExpireOverdue implements teamrequest.Store.
func (s *MemoryStore) ExpireOverdue(_ context.Context, now time.Time) ([]model.TeamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TeamRequest
	for id, r := range s.requests {
		if !r.Overdue(now) {
			continue
		}
		r.Status = model.StatusExpired
		s.requests[id] = r
		out = append(out, r)
	}
	SortRequests(out)
	return out, nil
}

// CountRequests implements teamrequest.Store.
func (s *MemoryStore) CountRequests(_ context.Context) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Status]int)
	for _, r := range s.requests {
		out[r.Status]++
	}
	return out, nil
}

// Close implements teamrequest.Store.
func (s *MemoryStore) Close() error { return nil }

// ApplyResolution stamps res onto r. Expiry carries no reviewer.
func ApplyResolution(r *model.TeamRequest, res model.Resolution) {
	r.Status = res.Status
	if res.Status == model.StatusExpired {
		return
	}
	at := res.ReviewedAt.UTC()
	r.ReviewedBy = res.ReviewedBy
	r.ReviewedAt = &at
	r.ReviewNotes = res.ReviewNotes
	r.ReviewerLevel = res.ReviewerLevel
	if res.Status == model.StatusApproved {
		r.AssignedRole = res.AssignedRole
		if res.AssignedScope != nil {
			scope := res.AssignedScope.Normalize()
			r.AssignedScope = &scope
		}
	}
}

// MembershipFor builds the membership created by an approved request.
func MembershipFor(r model.TeamRequest, at time.Time) model.BrandMember {
	m := model.BrandMember{
		BrandID:   r.BrandID,
		ProfileID: r.ProfileID,
		Role:      r.AssignedRole,
		Active:    true,
		JoinedAt:  at.UTC(),
	}
	if r.AssignedScope != nil {
		m.Scope = *r.AssignedScope
	}
	return m
}
