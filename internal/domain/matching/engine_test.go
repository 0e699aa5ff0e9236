package matching_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func parisTalent() model.TalentProfile {
	return model.TalentProfile{
		ID:                 "talent-paris",
		CurrentRoleLevel:   model.LevelL2,
		CurrentLocation:    model.Location{City: "paris", Country: "france", Region: "emea"},
		DivisionsExpertise: []string{"leather_goods"},
		YearsInLuxury:      3,
		Languages:          []string{"en", "fr"},
	}
}

func parisOpportunity() model.OpportunityProfile {
	return model.OpportunityProfile{
		ID:                      "opp-paris",
		BrandID:                 "brand-h",
		BrandName:               "Hermès",
		BrandKey:                "hermès",
		RoleLevel:               model.LevelL2,
		Division:                "leather_goods",
		Location:                model.Location{City: "paris", Country: "france", Region: "emea"},
		RequiredExperienceYears: 2,
		RequiredLanguages:       []string{"fr"},
	}
}

func TestCalculateMatch(t *testing.T) {
	Convey("Given an L2 Paris leather goods talent and a matching opportunity", t, func() {
		talent, opp := parisTalent(), parisOpportunity()

		Convey("When scoring without an assessment", func() {
			r := matching.CalculateMatch(talent, opp)

			Convey("Then every present axis gives full credit and the score is the maximum", func() {
				So(r.OverallScore, ShouldEqual, 100)
				So(r.TalentID, ShouldEqual, "talent-paris")
				So(r.OpportunityID, ShouldEqual, "opp-paris")
				for _, axis := range []model.Axis{model.AxisRole, model.AxisLocation, model.AxisDivision, model.AxisExperience, model.AxisLanguage} {
					s, ok := r.Axis(axis)
					So(ok, ShouldBeTrue)
					So(s.Score, ShouldEqual, 100)
					So(s.Included, ShouldBeTrue)
				}
				a, ok := r.Axis(model.AxisAssessment)
				So(ok, ShouldBeTrue)
				So(a.Included, ShouldBeFalse)
				So(r.Strong, ShouldBeTrue)
			})
		})

		Convey("When scoring twice", func() {
			So(matching.CalculateMatch(talent, opp), ShouldResemble, matching.CalculateMatch(talent, opp))
		})

		Convey("When the opportunity requires no languages", func() {
			opp.RequiredLanguages = nil
			talent.Languages = nil
			r := matching.CalculateMatch(talent, opp)
			s, _ := r.Axis(model.AxisLanguage)
			So(s.Score, ShouldEqual, 100)
		})

		Convey("When the division is absent from the talent's set", func() {
			talent.DivisionsExpertise = []string{"watches"}
			r := matching.CalculateMatch(talent, opp)
			s, _ := r.Axis(model.AxisDivision)
			So(s.Score, ShouldEqual, 0)
			So(r.OverallScore, ShouldBeLessThan, 100)
		})

		Convey("When an assessment is present the axis joins the mean", func() {
			talent.Assessment = &model.Assessment{Scores: map[model.Competency]float64{
				model.CompetencyLeadership:       60,
				model.CompetencyClientExperience: 80,
			}}
			r := matching.CalculateMatch(talent, opp)
			s, _ := r.Axis(model.AxisAssessment)
			So(s.Included, ShouldBeTrue)
			So(s.Score, ShouldEqual, 70)
			// (100*80 + 70*20) / 100
			So(r.OverallScore, ShouldEqual, 94)
		})
	})
}

func TestAxisTiers(t *testing.T) {
	Convey("Given the role axis", t, func() {
		opp := parisOpportunity()
		opp.RoleLevel = model.LevelL3
		score := func(level model.RoleLevel) float64 {
			talent := parisTalent()
			talent.CurrentRoleLevel = level
			s, _ := matching.CalculateMatch(talent, opp).Axis(model.AxisRole)
			return s.Score
		}
		So(score(model.LevelL3), ShouldEqual, 100)
		So(score(model.LevelL4), ShouldEqual, 70)
		So(score(model.LevelL2), ShouldEqual, 50)
		So(score(model.LevelL5), ShouldEqual, 10)
		So(score(model.LevelL1), ShouldEqual, 0)
	})

	Convey("Given the location axis", t, func() {
		talent, opp := parisTalent(), parisOpportunity()
		score := func(loc model.Location) float64 {
			opp.Location = loc
			s, _ := matching.CalculateMatch(talent, opp).Axis(model.AxisLocation)
			return s.Score
		}
		So(score(model.Location{City: "paris", Country: "france", Region: "emea"}), ShouldEqual, 100)
		So(score(model.Location{City: "lyon", Country: "france", Region: "emea"}), ShouldEqual, 70)
		So(score(model.Location{City: "milan", Country: "italy", Region: "emea"}), ShouldEqual, 40)
		So(score(model.Location{City: "tokyo", Country: "japan", Region: "apac"}), ShouldEqual, 0)
		So(score(model.Location{}), ShouldEqual, 0)
	})

	Convey("Given an experience shortfall", t, func() {
		talent, opp := parisTalent(), parisOpportunity()
		opp.RequiredExperienceYears = 4
		talent.YearsInLuxury = 1
		s, _ := matching.CalculateMatch(talent, opp).Axis(model.AxisExperience)
		So(s.Score, ShouldAlmostEqual, 50, 0.0001)
	})

	Convey("Given a partial language match", t, func() {
		talent, opp := parisTalent(), parisOpportunity()
		opp.RequiredLanguages = []string{"fr", "it"}
		s, _ := matching.CalculateMatch(talent, opp).Axis(model.AxisLanguage)
		So(s.Score, ShouldEqual, 50)
	})
}

func TestMatchProperties(t *testing.T) {
	Convey("Given a grid of talents and opportunities", t, func() {
		var talents []model.TalentProfile
		for level := model.MinRoleLevel; level <= model.MaxRoleLevel; level++ {
			for _, years := range []float64{0, 0.5, 2, 7, 15} {
				tp := parisTalent()
				tp.CurrentRoleLevel = level
				tp.YearsInLuxury = years
				talents = append(talents, tp)
			}
		}
		opps := []model.OpportunityProfile{parisOpportunity()}
		far := parisOpportunity()
		far.Location = model.Location{City: "tokyo", Country: "japan", Region: "apac"}
		far.RequiredLanguages = []string{"ja", "en", "zh"}
		far.RequiredExperienceYears = 10
		opps = append(opps, far)

		Convey("Then every score is an integer within 0..100", func() {
			for _, tp := range talents {
				for _, o := range opps {
					r := matching.CalculateMatch(tp, o)
					So(r.OverallScore, ShouldBeBetweenOrEqual, 0, 100)
				}
			}
		})

		Convey("Then more years never lowers the score", func() {
			for _, o := range opps {
				prev := -1
				for _, years := range []float64{0, 0.25, 1, 2, 3, 5, 10, 20} {
					tp := parisTalent()
					tp.YearsInLuxury = years
					r := matching.CalculateMatch(tp, o)
					So(r.OverallScore, ShouldBeGreaterThanOrEqualTo, prev)
					prev = r.OverallScore
				}
			}
		})
	})
}

func TestDreamBrandBoost(t *testing.T) {
	Convey("Given a talent who lists the opportunity's brand", t, func() {
		talent, opp := parisTalent(), parisOpportunity()
		opp.RequiredExperienceYears = 10
		opp.Location = model.Location{City: "milan", Country: "italy", Region: "emea"}

		without := matching.CalculateMatch(talent, opp)
		talent.TargetBrands = []string{"hermès", "cartier"}
		with := matching.CalculateMatch(talent, opp)

		Convey("Then rank 1 scores at least as much as an absent brand", func() {
			So(with.OverallScore, ShouldBeGreaterThanOrEqualTo, without.OverallScore)
			So(with.DreamBrandRank, ShouldEqual, 1)
		})

		Convey("Then a lower rank earns a smaller bonus", func() {
			talent.TargetBrands = []string{"cartier", "chanel", "hermès"}
			third := matching.CalculateMatch(talent, opp)
			So(third.DreamBrandRank, ShouldEqual, 3)
			So(third.OverallScore, ShouldBeLessThanOrEqualTo, with.OverallScore)
		})
	})

	Convey("Given a weak base score", t, func() {
		engine, err := matching.New(matching.WithDreamBrandBonus([]float64{50}))
		So(err, ShouldBeNil)
		talent, opp := parisTalent(), parisOpportunity()
		opp.Division = "watches"
		opp.RequiredLanguages = []string{"it"}
		talent.TargetBrands = []string{"hermès"}

		r := engine.Calculate(talent, opp)

		Convey("Then the bonus alone cannot make the match strong", func() {
			So(r.BaseScore, ShouldBeLessThan, 75)
			So(r.OverallScore, ShouldEqual, 74)
			So(r.Strong, ShouldBeFalse)
			So(engine.BoostCapped(r), ShouldBeTrue)
		})
	})

	Convey("Given a strong base score", t, func() {
		talent, opp := parisTalent(), parisOpportunity()
		opp.RequiredLanguages = []string{"fr", "it"}
		talent.TargetBrands = []string{"hermès"}

		r := matching.CalculateMatch(talent, opp)

		Convey("Then the bonus applies in full and the result is clamped", func() {
			So(r.BaseScore, ShouldBeGreaterThanOrEqualTo, 75)
			So(r.DreamBrandBonus, ShouldEqual, 10)
			So(r.OverallScore, ShouldEqual, 100)
		})
	})
}

func TestEngineOptions(t *testing.T) {
	Convey("Given custom weights", t, func() {
		Convey("When a weight is negative", func() {
			w := matching.DefaultWeights()
			w.Role = -1
			_, err := matching.New(matching.WithWeights(w))
			So(errors.Is(err, matching.ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("When only the assessment carries weight", func() {
			_, err := matching.New(matching.WithWeights(matching.Weights{Assessment: 1}))
			So(errors.Is(err, matching.ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("When only the role axis counts", func() {
			e, err := matching.New(matching.WithWeights(matching.Weights{Role: 1}), matching.WithStrongMatchThreshold(90))
			So(err, ShouldBeNil)
			So(e.StrongMatchThreshold(), ShouldEqual, 90)
			talent, opp := parisTalent(), parisOpportunity()
			talent.CurrentRoleLevel = model.LevelL3
			So(e.Calculate(talent, opp).OverallScore, ShouldEqual, 70)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given talents with equal and different scores", t, func() {
		opp := parisOpportunity()
		now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

		best := parisTalent()
		best.ID = "c"
		best.LastActiveAt = now.Add(-72 * time.Hour)

		tieRecent := parisTalent()
		tieRecent.ID = "z"
		tieRecent.CurrentRoleLevel = model.LevelL3
		tieRecent.LastActiveAt = now

		tieOldA := tieRecent
		tieOldA.ID = "b"
		tieOldA.LastActiveAt = now.Add(-time.Hour)

		tieOldB := tieOldA
		tieOldB.ID = "a"

		engine, err := matching.New()
		So(err, ShouldBeNil)

		ranked := engine.Rank(opp, []model.TalentProfile{tieOldA, tieRecent, best, tieOldB})

		Convey("Then results are ordered by score, activity, then id", func() {
			So(len(ranked), ShouldEqual, 4)
			ids := make([]string, len(ranked))
			for i, r := range ranked {
				ids[i] = r.Result.TalentID
				So(r.Position, ShouldEqual, i+1)
			}
			So(ids, ShouldResemble, []string{"c", "z", "a", "b"})
		})

		Convey("Then ranking is stable across runs", func() {
			again := engine.Rank(opp, []model.TalentProfile{tieOldB, best, tieRecent, tieOldA})
			So(again, ShouldResemble, ranked)
		})
	})
}
