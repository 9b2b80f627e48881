package scoring_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/scoring"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

var opened = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func hiringOccurrence(magnitude float64, firings int) *model.SignalOccurrence {
	return &model.SignalOccurrence{
		CompanyID:     "acme",
		Kind:          model.KindHiringSpike,
		OpenedAt:      opened,
		LastUpdatedAt: opened.AddDate(0, 0, 3),
		Magnitude:     magnitude,
		Firings:       firings,
		Params:        map[string]string{"role_class": "data", "short_count": "6", "baseline": "2.0", "ratio": "3.00"},
		Evidence:      []model.Evidence{{URL: "https://jobs.example.com/1", Snippet: "posting", TS: opened}},
	}
}

func idealProfile() window.Profile {
	return window.Profile{
		Industry:      "fintech",
		EmployeeCount: 800,
		Technologies:  []string{"kubernetes", "aws", "python", "react"},
		FundingSeen:   true,
	}
}

func TestLeadScorer_Score(t *testing.T) {
	Convey("Given a scorer over the default calibration", t, func() {
		store := calibration.NewStore()
		scorer := scoring.NewLeadScorer(store)
		ctx := context.Background()

		Convey("When scoring a perfect-fit company", func() {
			occ := hiringOccurrence(3.0, 2)
			sig, err := scorer.Score(ctx, scoring.Input{
				Occurrence: occ,
				Profile:    idealProfile(),
				Now:        occ.LastUpdatedAt,
			})

			Convey("Then FIT hits every rubric row", func() {
				So(err, ShouldBeNil)
				// Industry 30, size sweet spot 30, tech overlap capped at 20,
				// funding 20.
				So(sig.Components.Fit, ShouldEqual, 100)
			})

			Convey("And the signal carries the deterministic id and episode span", func() {
				So(err, ShouldBeNil)
				So(sig.ID, ShouldEqual, model.SignalID("acme", model.KindHiringSpike, opened))
				So(sig.TSStart, ShouldEqual, occ.OpenedAt)
				So(sig.TSEnd, ShouldEqual, occ.LastUpdatedAt)
				So(sig.Evidence, ShouldHaveLength, 1)
				So(sig.Explanation, ShouldNotBeEmpty)
			})

			Convey("And the composite stays within bounds", func() {
				So(err, ShouldBeNil)
				So(sig.Score, ShouldBeGreaterThanOrEqualTo, 0)
				So(sig.Score, ShouldBeLessThanOrEqualTo, 100)
			})
		})

		Convey("When scoring a company with no profile data", func() {
			sig, err := scorer.Score(ctx, scoring.Input{
				Occurrence: hiringOccurrence(3.0, 2),
				Profile:    window.Profile{},
				Now:        opened,
			})

			Convey("Then FIT contributes nothing", func() {
				So(err, ShouldBeNil)
				So(sig.Components.Fit, ShouldEqual, 0)
				So(sig.Score, ShouldBeGreaterThanOrEqualTo, 0)
			})
		})

		Convey("When the same occurrence is scored twice", func() {
			in := scoring.Input{Occurrence: hiringOccurrence(3.0, 2), Profile: idealProfile(), Now: opened.AddDate(0, 0, 3)}
			a, errA := scorer.Score(ctx, in)
			b, errB := scorer.Score(ctx, in)

			Convey("Then the result is identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a.ID, ShouldEqual, b.ID)
				So(a.Score, ShouldEqual, b.Score)
				So(a.Components, ShouldResemble, b.Components)
			})
		})
	})
}

func TestLeadScorer_CompositeWeighting(t *testing.T) {
	Convey("Given a calibration tuned to produce known components", t, func() {
		store := calibration.NewStore()
		set := calibration.Default()
		// Intent becomes a flat 90 for hiring spikes regardless of magnitude.
		set.Thresholds[model.KindHiringSpike] = calibration.KindThresholds{
			SpikeRatio:      calibration.DefaultSpikeRatio,
			MinAbsolute:     calibration.DefaultMinAbsolute,
			MergeWindowDays: calibration.DefaultMergeWindowDays,
			IntentBase:      90,
			IntentScale:     0,
		}
		So(store.Apply(set), ShouldBeNil)
		scorer := scoring.NewLeadScorer(store)

		Convey("When fit is 80, intent is 90, and timing is 75", func() {
			// Industry 30 + sweet-spot size 30 + funding 20 = 80 fit.
			profile := window.Profile{Industry: "fintech", EmployeeCount: 800, FundingSeen: true}
			// Two firings scored at close time: velocity 0.75, no decay.
			occ := hiringOccurrence(0, 2)
			sig, err := scorer.Score(context.Background(), scoring.Input{
				Occurrence: occ,
				Profile:    profile,
				Now:        occ.LastUpdatedAt,
			})

			Convey("Then the composite is the 0.4/0.4/0.2 weighted sum", func() {
				So(err, ShouldBeNil)
				So(sig.Components.Fit, ShouldEqual, 80)
				So(sig.Components.Intent, ShouldEqual, 90)
				So(sig.Components.Timing, ShouldEqual, 75)
				// round(0.4*80 + 0.4*90 + 0.2*75) = round(83) = 83
				So(sig.Score, ShouldEqual, 83)
			})
		})

		Convey("When fit is 80, intent is 90, and timing decays to 70", func() {
			profile := window.Profile{Industry: "fintech", EmployeeCount: 800, FundingSeen: true}
			// Four firings saturate velocity; pick the elapsed time where the
			// half-life decay alone lands on 0.7.
			occ := hiringOccurrence(0, 4)
			elapsed := time.Duration(float64(calibration.DefaultTimingHalfLife) * math.Log2(1/0.7))
			sig, err := scorer.Score(context.Background(), scoring.Input{
				Occurrence: occ,
				Profile:    profile,
				Now:        occ.LastUpdatedAt.Add(elapsed),
			})

			Convey("Then the composite rounds to 82", func() {
				So(err, ShouldBeNil)
				So(sig.Components.Timing, ShouldAlmostEqual, 70, 0.001)
				// round(0.4*80 + 0.4*90 + 0.2*70) = round(82) = 82
				So(sig.Score, ShouldEqual, 82)
			})
		})
	})
}

func TestTimingDecay(t *testing.T) {
	Convey("Given a scorer over the default calibration", t, func() {
		store := calibration.NewStore()
		scorer := scoring.NewLeadScorer(store)
		ctx := context.Background()
		occ := hiringOccurrence(3.0, 4) // velocity saturates at 1.0

		score := func(now time.Time) float64 {
			sig, err := scorer.Score(ctx, scoring.Input{Occurrence: occ, Profile: window.Profile{}, Now: now})
			So(err, ShouldBeNil)
			return sig.Components.Timing
		}

		Convey("When scored at close time", func() {
			Convey("Then timing starts at 100", func() {
				So(score(occ.LastUpdatedAt), ShouldAlmostEqual, 100, 0.01)
			})
		})

		Convey("When one half-life has elapsed", func() {
			Convey("Then timing halves", func() {
				So(score(occ.LastUpdatedAt.Add(calibration.DefaultTimingHalfLife)), ShouldAlmostEqual, 50, 0.01)
			})
		})

		Convey("When more time passes", func() {
			Convey("Then timing never increases", func() {
				prev := 101.0
				for d := 0; d <= 90; d += 10 {
					cur := score(occ.LastUpdatedAt.AddDate(0, 0, d))
					So(cur, ShouldBeLessThanOrEqualTo, prev)
					prev = cur
				}
			})
		})

		Convey("When an episode had a single firing", func() {
			slow := hiringOccurrence(3.0, 1)
			sig, err := scorer.Score(ctx, scoring.Input{Occurrence: slow, Profile: window.Profile{}, Now: slow.LastUpdatedAt})

			Convey("Then the velocity modifier dampens timing", func() {
				So(err, ShouldBeNil)
				So(sig.Components.Timing, ShouldAlmostEqual, 62.5, 0.01)
			})
		})
	})
}

func TestIntentScaling(t *testing.T) {
	Convey("Given the default calibration", t, func() {
		store := calibration.NewStore()
		scorer := scoring.NewLeadScorer(store)
		ctx := context.Background()

		Convey("When the spike magnitude grows", func() {
			low, _ := scorer.Score(ctx, scoring.Input{Occurrence: hiringOccurrence(2.5, 1), Profile: window.Profile{}, Now: opened})
			high, _ := scorer.Score(ctx, scoring.Input{Occurrence: hiringOccurrence(5.0, 1), Profile: window.Profile{}, Now: opened})

			Convey("Then intent grows with it", func() {
				So(high.Components.Intent, ShouldBeGreaterThan, low.Components.Intent)
			})
		})

		Convey("When the magnitude is extreme", func() {
			sig, err := scorer.Score(ctx, scoring.Input{Occurrence: hiringOccurrence(100, 1), Profile: window.Profile{}, Now: opened})

			Convey("Then intent clamps at 100", func() {
				So(err, ShouldBeNil)
				So(sig.Components.Intent, ShouldEqual, 100)
			})
		})
	})
}

func TestExplanations(t *testing.T) {
	Convey("Given occurrences of each kind", t, func() {
		store := calibration.NewStore()
		scorer := scoring.NewLeadScorer(store)
		ctx := context.Background()

		Convey("When scoring a hiring spike", func() {
			sig, err := scorer.Score(ctx, scoring.Input{Occurrence: hiringOccurrence(3.0, 2), Profile: window.Profile{}, Now: opened})

			Convey("Then the explanation names the drivers", func() {
				So(err, ShouldBeNil)
				So(sig.Explanation, ShouldContainSubstring, "data")
			})
		})

		Convey("When scoring a funding event", func() {
			occ := &model.SignalOccurrence{
				CompanyID: "acme", Kind: model.KindFunding,
				OpenedAt: opened, LastUpdatedAt: opened,
				Magnitude: 3, Firings: 1,
				Params: map[string]string{"round_stage": "series_a"},
			}
			sig, err := scorer.Score(ctx, scoring.Input{Occurrence: occ, Profile: window.Profile{}, Now: opened})

			Convey("Then the explanation names the round", func() {
				So(err, ShouldBeNil)
				So(sig.Explanation, ShouldContainSubstring, "series a")
			})
		})
	})
}
