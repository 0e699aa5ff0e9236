package notify_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/notify"
	. "github.com/smartystreets/goconvey/convey"
)

func newProjector() *notify.Projector {
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return notify.NewProjector(notify.WithClock(func() time.Time { return fixed }))
}

func TestDreamBrandAlert(t *testing.T) {
	Convey("Given a talent whose dream brand has an opening", t, func() {
		p := newProjector()
		talent := model.TalentProfile{ID: "t-1", TargetBrands: []string{"cartier"}}
		opp := model.OpportunityProfile{ID: "o-1", BrandID: "b-1", BrandName: "Cartier", BrandKey: "cartier", RoleLevel: model.LevelL3}
		result := model.MatchResult{
			TalentID:       "t-1",
			OpportunityID:  "o-1",
			OverallScore:   82,
			DreamBrandRank: 1,
			Breakdown:      []model.AxisScore{{Axis: model.AxisRole, Score: 100, Included: true}},
		}

		Convey("When the score reaches the alert threshold", func() {
			payload, ok := p.DreamBrandAlert(talent, opp, result)
			So(ok, ShouldBeTrue)
			So(payload.ID, ShouldEqual, notify.PayloadID("dream_brand_alert|talent|t-1|o-1"))
			So(payload.Type, ShouldEqual, notify.TypeDreamBrandAlert)
			So(payload.Audience, ShouldResemble, notify.Audience{Kind: notify.AudienceTalent, ID: "t-1"})
			So(payload.Data["overall_score"], ShouldEqual, 82)
			So(payload.Data["role_level"], ShouldEqual, "L3")
			So(notify.CheckPrivacy(payload), ShouldBeNil)
		})

		Convey("When the same match is projected twice", func() {
			first, _ := p.DreamBrandAlert(talent, opp, result)
			second, _ := p.DreamBrandAlert(talent, opp, result)
			So(second.ID, ShouldEqual, first.ID)

			opp.ID = "o-2"
			other, _ := p.DreamBrandAlert(talent, opp, result)
			So(other.ID, ShouldNotEqual, first.ID)
		})

		Convey("When a custom id generator is set", func() {
			var keys []string
			custom := notify.NewProjector(notify.WithIDGenerator(func(key string) string {
				keys = append(keys, key)
				return "alert-1"
			}))
			payload, ok := custom.DreamBrandAlert(talent, opp, result)
			So(ok, ShouldBeTrue)
			So(payload.ID, ShouldEqual, "alert-1")
			So(keys, ShouldResemble, []string{"dream_brand_alert|talent|t-1|o-1"})
		})

		Convey("When the score is below the threshold", func() {
			result.OverallScore = 69
			_, ok := p.DreamBrandAlert(talent, opp, result)
			So(ok, ShouldBeFalse)
		})

		Convey("When the brand is not a dream brand", func() {
			result.DreamBrandRank = 0
			_, ok := p.DreamBrandAlert(talent, opp, result)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestTalentPoolSummary(t *testing.T) {
	Convey("Given a brand candidate pool", t, func() {
		p := newProjector()
		pool := []model.TalentProfile{
			{ID: "t-1", CurrentRoleLevel: model.LevelL2, CurrentLocation: model.Location{Region: "emea"}, InternalMobility: true},
			{ID: "t-2", CurrentRoleLevel: model.LevelL2, CurrentLocation: model.Location{Region: "apac"}},
			{ID: "t-3", CurrentRoleLevel: model.LevelL4},
		}

		payload := p.TalentPoolSummary("b-1", pool)

		Convey("Then only aggregates are exposed", func() {
			So(payload.Audience.Kind, ShouldEqual, notify.AudienceBrand)
			So(payload.Data[notify.KeyTotal], ShouldEqual, 3)
			So(payload.Data[notify.KeyByRoleLevel], ShouldResemble, map[string]int{"L2": 2, "L4": 1})
			So(payload.Data[notify.KeyByRegion], ShouldResemble, map[string]int{"emea": 1, "apac": 1, "unknown": 1})
			So(payload.Data[notify.KeyInternalMobility], ShouldResemble, map[string]int{"internal": 1, "external": 2})
			So(notify.CheckPrivacy(payload), ShouldBeNil)
			for _, v := range payload.Data {
				So(v, ShouldNotEqual, "t-1")
			}
		})
	})
}

func TestDecision(t *testing.T) {
	Convey("Given a terminal team request", t, func() {
		p := newProjector()
		brand := model.Brand{ID: "b-1", GroupID: "g-1", Name: "Maison A"}
		scope := access.Scope{Geographic: "emea", AllDivisions: true}
		req := model.TeamRequest{
			ID:            "r-1",
			BrandID:       "b-1",
			ProfileID:     "u-9",
			Status:        model.StatusApproved,
			ReviewerLevel: access.TierBrand,
			AssignedRole:  access.RoleRecruiter,
			AssignedScope: &scope,
			Department:    "retail",
		}

		Convey("When approved at brand tier", func() {
			out := p.Decision(req, brand)
			So(len(out), ShouldEqual, 2)
			So(out[0].Audience, ShouldResemble, notify.Audience{Kind: notify.AudienceProfile, ID: "u-9"})
			So(out[0].Data["assigned_role"], ShouldEqual, "recruiter")
			So(out[1].Audience, ShouldResemble, notify.Audience{Kind: notify.AudienceBrand, ID: "b-1"})
			for _, payload := range out {
				So(notify.CheckPrivacy(payload), ShouldBeNil)
			}
			_, leaked := out[1].Data["profile_id"]
			So(leaked, ShouldBeFalse)
			So(out[0].ID, ShouldNotEqual, out[1].ID)
			So(p.Decision(req, brand)[0].ID, ShouldEqual, out[0].ID)
		})

		Convey("When the same request later expires", func() {
			approved := p.Decision(req, brand)
			req.Status = model.StatusExpired
			expired := p.Decision(req, brand)
			So(expired[0].ID, ShouldNotEqual, approved[0].ID)
		})

		Convey("When rejected at group tier", func() {
			req.Status = model.StatusRejected
			req.ReviewerLevel = access.TierGroup
			req.ReviewNotes = "headcount frozen"
			out := p.Decision(req, brand)
			So(len(out), ShouldEqual, 3)
			So(out[0].Data["reason"], ShouldEqual, "headcount frozen")
			So(out[2].Audience, ShouldResemble, notify.Audience{Kind: notify.AudienceGroup, ID: "g-1"})
			So(out[2].Data[notify.KeyGroupID], ShouldEqual, "g-1")
			for _, payload := range out {
				So(notify.CheckPrivacy(payload), ShouldBeNil)
			}
		})
	})
}

func TestCheckPrivacy(t *testing.T) {
	Convey("Given organisational payloads", t, func() {
		Convey("When a talent identifier is added", func() {
			err := notify.CheckPrivacy(notify.Payload{
				Audience: notify.Audience{Kind: notify.AudienceBrand, ID: "b-1"},
				Data:     map[string]any{notify.KeyTotal: 1, "talent_id": "t-1"},
			})
			So(errors.Is(err, notify.ErrPrivacyViolation), ShouldBeTrue)
		})

		Convey("When a breakdown holds individual records", func() {
			err := notify.CheckPrivacy(notify.Payload{
				Audience: notify.Audience{Kind: notify.AudienceGroup, ID: "g-1"},
				Data:     map[string]any{notify.KeyByRegion: []string{"t-1"}},
			})
			So(errors.Is(err, notify.ErrPrivacyViolation), ShouldBeTrue)
		})

		Convey("When the audience is the talent", func() {
			err := notify.CheckPrivacy(notify.Payload{
				Audience: notify.Audience{Kind: notify.AudienceTalent, ID: "t-1"},
				Data:     map[string]any{"talent_id": "t-1", "languages": []string{"fr"}},
			})
			So(err, ShouldBeNil)
		})
	})
}
