package model_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
)

func TestRoleLevel(t *testing.T) {
	Convey("Given role level strings", t, func() {
		Convey("Prefixed, lower-case and bare forms parse", func() {
			for in, want := range map[string]model.RoleLevel{"L3": model.LevelL3, "l1": model.LevelL1, " 5 ": model.LevelL5} {
				got, err := model.ParseRoleLevel(in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Out of range and junk are rejected", func() {
			for _, in := range []string{"L0", "L6", "senior", ""} {
				_, err := model.ParseRoleLevel(in)
				So(err, ShouldNotBeNil)
			}
		})

		Convey("String renders the prefixed form", func() {
			So(model.LevelL4.String(), ShouldEqual, "L4")
			So(model.RoleLevel(9).Valid(), ShouldBeFalse)
		})
	})
}

func TestTalentProfileHelpers(t *testing.T) {
	Convey("Given a talent profile", t, func() {
		p := model.TalentProfile{
			DivisionsExpertise: []string{"leather_goods"},
			Languages:          []string{"fr"},
			TargetBrands:       []string{"hermès", "cartier"},
		}

		So(p.HasDivision("leather_goods"), ShouldBeTrue)
		So(p.HasDivision("watches"), ShouldBeFalse)
		So(p.Speaks("fr"), ShouldBeTrue)
		So(p.Speaks("en"), ShouldBeFalse)
		So(p.TargetBrandRank("cartier"), ShouldEqual, 2)
		So(p.TargetBrandRank("dior"), ShouldEqual, 0)
		So(p.TargetBrandRank(""), ShouldEqual, 0)
	})

	Convey("Given an assessment", t, func() {
		a := &model.Assessment{Scores: map[model.Competency]float64{model.CompetencyLeadership: 0}}

		Convey("A zero score is still assessed", func() {
			v, ok := a.Score(model.CompetencyLeadership)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 0)
		})

		Convey("A missing competency is not", func() {
			_, ok := a.Score(model.CompetencySalesExcellence)
			So(ok, ShouldBeFalse)
		})

		Convey("A nil assessment has no scores", func() {
			var none *model.Assessment
			_, ok := none.Score(model.CompetencyLeadership)
			So(ok, ShouldBeFalse)
		})

		Convey("Competency names are validated", func() {
			c, err := model.ParseCompetency(" Leadership ")
			So(err, ShouldBeNil)
			So(c, ShouldEqual, model.CompetencyLeadership)
			_, err = model.ParseCompetency("charisma")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTeamRequest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a pending request", t, func() {
		r := model.TeamRequest{
			Status:        model.StatusPending,
			Department:    "Retail",
			RequestedRole: access.RoleRecruiter,
			ExpiresAt:     now.Add(time.Hour),
		}

		Convey("It is not overdue before its expiry", func() {
			So(r.Overdue(now), ShouldBeFalse)
			So(r.View(now).Status, ShouldEqual, model.StatusPending)
		})

		Convey("It reads as expired from the expiry instant on", func() {
			at := now.Add(time.Hour)
			So(r.Overdue(at), ShouldBeTrue)
			So(r.View(at).Status, ShouldEqual, model.StatusExpired)
			So(r.Status, ShouldEqual, model.StatusPending)
		})

		Convey("A terminal request is never overdue", func() {
			r.Status = model.StatusApproved
			So(r.Status.Terminal(), ShouldBeTrue)
			So(r.Overdue(now.Add(24*time.Hour)), ShouldBeFalse)
		})

		Convey("The zero filter matches pending requests only", func() {
			So(model.RequestFilter{}.Match(r), ShouldBeTrue)
			r.Status = model.StatusRejected
			So(model.RequestFilter{}.Match(r), ShouldBeFalse)
			So(model.RequestFilter{Status: model.StatusRejected}.Match(r), ShouldBeTrue)
		})

		Convey("Department matches case-insensitively and role exactly", func() {
			So(model.RequestFilter{Department: "retail"}.Match(r), ShouldBeTrue)
			So(model.RequestFilter{Department: "ops"}.Match(r), ShouldBeFalse)
			So(model.RequestFilter{RequestedRole: access.RoleViewer}.Match(r), ShouldBeFalse)
		})
	})

	Convey("Given status names", t, func() {
		s, err := model.ParseStatus(" Approved ")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, model.StatusApproved)
		_, err = model.ParseStatus("cancelled")
		So(err, ShouldNotBeNil)
	})
}
