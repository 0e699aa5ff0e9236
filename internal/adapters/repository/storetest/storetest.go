// Package storetest holds the behaviour suite every teamrequest.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/teamrequest"
	. "github.com/smartystreets/goconvey/convey"
)

// T0 is the reference creation time used by the suite. It has millisecond
// precision so every driver round-trips it exactly.
var T0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// Request builds a pending request created at T0.
func Request(id, brandID, profileID string) model.TeamRequest {
	return model.TeamRequest{
		ID:             id,
		BrandID:        brandID,
		ProfileID:      profileID,
		RequestedRole:  access.RoleRecruiter,
		RequestedScope: access.Scope{Geographic: "emea", Divisions: []string{"watches"}},
		Department:     "retail",
		Status:         model.StatusPending,
		CreatedAt:      T0,
		ExpiresAt:      T0.Add(model.RequestTTL),
	}
}

// Seed loads one group owning two brands, a brand admin and a group admin.
func Seed(ctx context.Context, s teamrequest.Seeder) {
	So(s.SaveGroup(ctx, model.Group{ID: "g-1", Name: "Group One"}), ShouldBeNil)
	So(s.SaveBrand(ctx, model.Brand{ID: "b-1", GroupID: "g-1", Name: "Maison A"}), ShouldBeNil)
	So(s.SaveBrand(ctx, model.Brand{ID: "b-2", GroupID: "g-1", Name: "Maison B", RequiresGroupApproval: true}), ShouldBeNil)
	So(s.SaveBrandMember(ctx, model.BrandMember{
		BrandID: "b-1", ProfileID: "admin-1", Role: access.RoleAdmin,
		Scope: access.GlobalScope(), Active: true, JoinedAt: T0,
	}), ShouldBeNil)
	So(s.SaveGroupMember(ctx, model.GroupMember{
		GroupID: "g-1", ProfileID: "gadmin-1", Role: access.RoleAdmin, Scope: access.GlobalScope(),
	}), ShouldBeNil)
}

// Run executes the suite. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) teamrequest.SeedStore) {
	ctx := context.Background()

	Convey("Given a seeded store", t, func() {
		s := open(t)
		Reset(func() { _ = s.Close() })
		Seed(ctx, s)

		Convey("When reading organisations", func() {
			b, err := s.Brand(ctx, "b-2")
			So(err, ShouldBeNil)
			So(b.RequiresGroupApproval, ShouldBeTrue)
			So(b.GroupID, ShouldEqual, "g-1")

			_, err = s.Brand(ctx, "nope")
			So(errors.Is(err, teamrequest.ErrNotFound), ShouldBeTrue)

			g, err := s.Group(ctx, "g-1")
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "Group One")

			brands, err := s.BrandsInGroup(ctx, "g-1")
			So(err, ShouldBeNil)
			So(len(brands), ShouldEqual, 2)
			So(brands[0].ID, ShouldEqual, "b-1")

			m, err := s.BrandMember(ctx, "b-1", "admin-1")
			So(err, ShouldBeNil)
			So(m.Role, ShouldEqual, access.RoleAdmin)
			So(m.Scope.AllDivisions, ShouldBeTrue)

			gm, err := s.GroupMember(ctx, "g-1", "gadmin-1")
			So(err, ShouldBeNil)
			So(gm.Scope.IsGlobal(), ShouldBeTrue)

			_, err = s.GroupMember(ctx, "g-1", "admin-1")
			So(errors.Is(err, teamrequest.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a request is created", func() {
			So(s.CreateRequest(ctx, Request("r-1", "b-1", "u-1")), ShouldBeNil)

			Convey("Then it reads back with its fields", func() {
				r, err := s.Request(ctx, "r-1")
				So(err, ShouldBeNil)
				So(r.Status, ShouldEqual, model.StatusPending)
				So(r.RequestedRole, ShouldEqual, access.RoleRecruiter)
				So(r.RequestedScope, ShouldResemble, access.Scope{Geographic: "emea", Divisions: []string{"watches"}})
				So(r.CreatedAt.Equal(T0), ShouldBeTrue)
				So(r.ExpiresAt.Equal(T0.Add(model.RequestTTL)), ShouldBeTrue)
				So(r.ReviewedAt, ShouldBeNil)
			})

			Convey("Then the pending request id is derived from the rows", func() {
				id, err := s.PendingRequestID(ctx, "u-1", T0.Add(time.Hour))
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "r-1")

				_, err = s.PendingRequestID(ctx, "u-1", T0.Add(8*24*time.Hour))
				So(errors.Is(err, teamrequest.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then a second pending request from the same profile conflicts anywhere", func() {
				err := s.CreateRequest(ctx, Request("r-2", "b-2", "u-1"))
				So(errors.Is(err, teamrequest.ErrPendingExists), ShouldBeTrue)
			})

			Convey("Then a new request is allowed once the old one is overdue", func() {
				later := Request("r-2", "b-2", "u-1")
				later.CreatedAt = T0.Add(8 * 24 * time.Hour)
				later.ExpiresAt = later.CreatedAt.Add(model.RequestTTL)
				So(s.CreateRequest(ctx, later), ShouldBeNil)

				old, err := s.Request(ctx, "r-1")
				So(err, ShouldBeNil)
				So(old.Status, ShouldEqual, model.StatusExpired)
			})

			Convey("Then listing by brand returns it", func() {
				So(s.CreateRequest(ctx, Request("r-0", "b-1", "u-2")), ShouldBeNil)
				rs, err := s.ListRequests(ctx, teamrequest.RequestQuery{BrandIDs: []string{"b-1"}})
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 2)
				So(rs[0].ID, ShouldEqual, "r-0")
				So(rs[1].ID, ShouldEqual, "r-1")

				rs, err = s.ListRequests(ctx, teamrequest.RequestQuery{
					BrandIDs: []string{"b-1"},
					Filter:   model.RequestFilter{Status: model.StatusApproved},
				})
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 0)

				rs, err = s.ListRequests(ctx, teamrequest.RequestQuery{
					BrandIDs: []string{"b-1", "b-2"},
					Filter:   model.RequestFilter{Department: "RETAIL", RequestedRole: access.RoleRecruiter},
				})
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 2)
			})

			Convey("Then an approval creates exactly one membership", func() {
				scope := access.Scope{Geographic: "emea", AllDivisions: true}
				res := model.Resolution{
					Status:        model.StatusApproved,
					ReviewedBy:    "admin-1",
					ReviewedAt:    T0.Add(time.Hour),
					ReviewNotes:   "welcome",
					ReviewerLevel: access.TierBrand,
					AssignedRole:  access.RoleViewer,
					AssignedScope: &scope,
				}
				r, err := s.ResolveRequest(ctx, "r-1", res)
				So(err, ShouldBeNil)
				So(r.Status, ShouldEqual, model.StatusApproved)
				So(r.ReviewedBy, ShouldEqual, "admin-1")
				So(r.ReviewerLevel, ShouldEqual, access.TierBrand)
				So(r.AssignedRole, ShouldEqual, access.RoleViewer)
				So(r.ReviewedAt, ShouldNotBeNil)

				_, err = s.ResolveRequest(ctx, "r-1", res)
				So(errors.Is(err, teamrequest.ErrNotPending), ShouldBeTrue)

				m, err := s.BrandMember(ctx, "b-1", "u-1")
				So(err, ShouldBeNil)
				So(m.Role, ShouldEqual, access.RoleViewer)
				So(m.Scope, ShouldResemble, scope)

				n, err := s.CountBrandMembers(ctx, "b-1")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				Convey("And the member cannot request the same brand again", func() {
					again := Request("r-3", "b-1", "u-1")
					again.CreatedAt = T0.Add(2 * time.Hour)
					again.ExpiresAt = again.CreatedAt.Add(model.RequestTTL)
					So(errors.Is(s.CreateRequest(ctx, again), teamrequest.ErrAlreadyMember), ShouldBeTrue)
				})
			})

			Convey("Then concurrent approvals let exactly one through", func() {
				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					wins int
				)
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := s.ResolveRequest(ctx, "r-1", model.Resolution{
							Status:        model.StatusApproved,
							ReviewedBy:    "admin-1",
							ReviewedAt:    T0.Add(time.Minute),
							ReviewerLevel: access.TierBrand,
							AssignedRole:  access.RoleRecruiter,
						})
						if err == nil {
							mu.Lock()
							wins++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()
				So(wins, ShouldEqual, 1)
			})

			Convey("Then a rejection after expiry does not apply", func() {
				_, err := s.ResolveRequest(ctx, "r-1", model.Resolution{
					Status:      model.StatusRejected,
					ReviewedBy:  "admin-1",
					ReviewedAt:  T0.Add(8 * 24 * time.Hour),
					ReviewNotes: "late",
				})
				So(errors.Is(err, teamrequest.ErrNotPending), ShouldBeTrue)

				r, err := s.ResolveRequest(ctx, "r-1", model.Resolution{
					Status:     model.StatusExpired,
					ReviewedAt: T0.Add(8 * 24 * time.Hour),
				})
				So(err, ShouldBeNil)
				So(r.Status, ShouldEqual, model.StatusExpired)
				So(r.ReviewedBy, ShouldBeEmpty)
			})

			Convey("Then the sweep expires only overdue rows and is idempotent", func() {
				fresh := Request("r-9", "b-2", "u-9")
				fresh.CreatedAt = T0.Add(5 * 24 * time.Hour)
				fresh.ExpiresAt = fresh.CreatedAt.Add(model.RequestTTL)
				So(s.CreateRequest(ctx, fresh), ShouldBeNil)

				at := T0.Add(7*24*time.Hour + time.Second)
				expired, err := s.ExpireOverdue(ctx, at)
				So(err, ShouldBeNil)
				So(len(expired), ShouldEqual, 1)
				So(expired[0].ID, ShouldEqual, "r-1")
				So(expired[0].Status, ShouldEqual, model.StatusExpired)

				expired, err = s.ExpireOverdue(ctx, at)
				So(err, ShouldBeNil)
				So(len(expired), ShouldEqual, 0)

				counts, err := s.CountRequests(ctx)
				So(err, ShouldBeNil)
				So(counts[model.StatusExpired], ShouldEqual, 1)
				So(counts[model.StatusPending], ShouldEqual, 1)
			})
		})

		Convey("When resolving an unknown request", func() {
			_, err := s.ResolveRequest(ctx, "missing", model.Resolution{Status: model.StatusRejected, ReviewedAt: T0})
			So(errors.Is(err, teamrequest.ErrNotFound), ShouldBeTrue)
		})

		Convey("When reusing a request id", func() {
			So(s.CreateRequest(ctx, Request("r-1", "b-1", "u-1")), ShouldBeNil)
			err := s.CreateRequest(ctx, Request("r-1", "b-2", "u-2"))
			So(errors.Is(err, teamrequest.ErrDuplicateID), ShouldBeTrue)
		})
	})
}
