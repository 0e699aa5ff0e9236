package access_test

import (
	"errors"
	"testing"

	"github.com/okian/maison/internal/domain/access"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRoles(t *testing.T) {
	Convey("Given the role ordinal table", t, func() {
		Convey("Then owner > admin > recruiter = hiring_manager > viewer", func() {
			So(access.RoleOwner.Rank(), ShouldBeGreaterThan, access.RoleAdmin.Rank())
			So(access.RoleAdmin.Rank(), ShouldBeGreaterThan, access.RoleRecruiter.Rank())
			So(access.RoleRecruiter.Rank(), ShouldEqual, access.RoleHiringManager.Rank())
			So(access.RoleHiringManager.Rank(), ShouldBeGreaterThan, access.RoleViewer.Rank())
		})

		Convey("When parsing role names", func() {
			r, err := access.ParseRole("  Hiring_Manager ")
			So(err, ShouldBeNil)
			So(r, ShouldEqual, access.RoleHiringManager)

			_, err = access.ParseRole("intern")
			So(err, ShouldNotBeNil)
		})

		Convey("Then unknown roles rank below everything", func() {
			So(access.Role("intern").AtLeast(access.RoleViewer), ShouldBeFalse)
			So(access.Role("intern").Rank(), ShouldEqual, 0)
		})

		Convey("When parsing tiers", func() {
			tier, err := access.ParseTier("GROUP")
			So(err, ShouldBeNil)
			So(tier, ShouldEqual, access.TierGroup)
			_, err = access.ParseTier("region")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGrants(t *testing.T) {
	Convey("Given the grant table", t, func() {
		Convey("Then viewer can never approve brand requests, regardless of scope", func() {
			viewer := access.Actor{Role: access.RoleViewer, Scope: access.GlobalScope()}
			targets := []access.Scope{
				access.GlobalScope(),
				{Geographic: "emea", Divisions: []string{"watches"}},
				{Geographic: "apac", AllDivisions: true},
			}
			for _, target := range targets {
				So(access.CheckPermission(viewer, access.ActionApproveBrandRequests, target), ShouldBeFalse)
			}
		})

		Convey("Then approval is enumerated to owner and admin", func() {
			So(access.Grants(access.RoleOwner, access.ActionApproveBrandRequests), ShouldBeTrue)
			So(access.Grants(access.RoleAdmin, access.ActionApproveBrandRequests), ShouldBeTrue)
			So(access.Grants(access.RoleRecruiter, access.ActionApproveBrandRequests), ShouldBeFalse)
			So(access.Grants(access.RoleHiringManager, access.ActionApproveBrandRequests), ShouldBeFalse)
		})

		Convey("Then minimum-role actions follow the ordinal table", func() {
			So(access.Grants(access.RoleHiringManager, access.ActionManageOpportunities), ShouldBeTrue)
			So(access.Grants(access.RoleViewer, access.ActionManageOpportunities), ShouldBeFalse)
			So(access.Grants(access.RoleViewer, access.ActionViewPipeline), ShouldBeTrue)
		})

		Convey("Then enumerated actions skip same-rank roles", func() {
			So(access.Grants(access.RoleRecruiter, access.ActionContactTalent), ShouldBeTrue)
			So(access.Grants(access.RoleHiringManager, access.ActionContactTalent), ShouldBeFalse)
			So(access.Grants(access.RoleAdmin, access.ActionManageBrandSettings), ShouldBeFalse)
		})

		Convey("Then unknown actions are never granted", func() {
			So(access.Grants(access.RoleOwner, access.Action("delete_brand")), ShouldBeFalse)
			_, err := access.ParseAction("delete_brand")
			So(err, ShouldNotBeNil)
			a, err := access.ParseAction("Approve_Brand_Requests")
			So(err, ShouldBeNil)
			So(a, ShouldEqual, access.ActionApproveBrandRequests)
			So(len(access.Actions()), ShouldEqual, 8)
		})
	})
}

func TestScopeContainment(t *testing.T) {
	Convey("Given actor scopes", t, func() {
		admin := func(s access.Scope) access.Actor { return access.Actor{Role: access.RoleAdmin, Scope: s} }
		target := access.Scope{Geographic: "emea", Divisions: []string{"Leather Goods"}}

		Convey("When the actor is global with all divisions", func() {
			So(access.CheckPermission(admin(access.GlobalScope()), access.ActionApproveBrandRequests, target), ShouldBeTrue)
		})

		Convey("When the actor region matches and the division is listed", func() {
			actor := admin(access.Scope{Geographic: "EMEA", Divisions: []string{"leather-goods", "watches"}})
			So(access.CheckPermission(actor, access.ActionApproveBrandRequests, target), ShouldBeTrue)
		})

		Convey("When the actor region differs", func() {
			actor := admin(access.Scope{Geographic: "apac", AllDivisions: true})
			So(access.CheckPermission(actor, access.ActionApproveBrandRequests, target), ShouldBeFalse)
		})

		Convey("When a regional actor faces a global target", func() {
			actor := admin(access.Scope{Geographic: "emea", AllDivisions: true})
			So(access.CheckPermission(actor, access.ActionApproveBrandRequests, access.GlobalScope()), ShouldBeFalse)
		})

		Convey("When the actor lists divisions but the target wants all divisions", func() {
			actor := admin(access.Scope{Geographic: "global", Divisions: []string{"watches"}})
			So(access.CheckPermission(actor, access.ActionApproveBrandRequests, access.Scope{Geographic: "emea", AllDivisions: true}), ShouldBeFalse)
		})

		Convey("When the actor has an empty division set without all_divisions", func() {
			actor := admin(access.Scope{Geographic: "global"})
			So(access.CheckPermission(actor, access.ActionApproveBrandRequests, target), ShouldBeFalse)
		})

		Convey("When the actor has no geographic scope", func() {
			actor := admin(access.Scope{AllDivisions: true})
			So(access.CheckPermission(actor, access.ActionApproveBrandRequests, access.Scope{AllDivisions: true}), ShouldBeFalse)
		})
	})
}

func TestScopeNormalizeAndValidate(t *testing.T) {
	Convey("Given raw scopes", t, func() {
		Convey("When normalizing", func() {
			s := access.Scope{Geographic: " EMEA ", Divisions: []string{"Watches", "leather goods", "watches", ""}}.Normalize()
			So(s.Geographic, ShouldEqual, "emea")
			So(s.Divisions, ShouldResemble, []string{"leather_goods", "watches"})

			all := access.Scope{Geographic: "global", AllDivisions: true, Divisions: []string{"watches"}}.Normalize()
			So(all.Divisions, ShouldBeNil)
		})

		Convey("When validating", func() {
			So(access.GlobalScope().Validate(), ShouldBeNil)
			So(errors.Is(access.Scope{AllDivisions: true}.Validate(), access.ErrInvalidScope), ShouldBeTrue)
			So(errors.Is(access.Scope{Geographic: "emea"}.Validate(), access.ErrInvalidScope), ShouldBeTrue)
		})

		Convey("When slugging division labels", func() {
			So(access.DivisionKey("  Fine  Jewelry "), ShouldEqual, "fine_jewelry")
			So(access.DivisionKey("ready-to-wear"), ShouldEqual, "ready_to_wear")
		})
	})
}
