package calibration_test

import (
	"testing"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore_Defaults(t *testing.T) {
	Convey("Given a new calibration store", t, func() {
		store := calibration.NewStore()

		Convey("Then the default set is active at version 1", func() {
			set := store.Active()
			So(set, ShouldNotBeNil)
			So(set.Version, ShouldEqual, 1)
			So(set.Weights.Fit, ShouldEqual, 0.4)
			So(set.Weights.Intent, ShouldEqual, 0.4)
			So(set.Weights.Timing, ShouldEqual, 0.2)
		})

		Convey("And every signal kind has thresholds", func() {
			set := store.Active()
			So(set.For(model.KindHiringSpike).SpikeRatio, ShouldEqual, calibration.DefaultSpikeRatio)
			So(set.For(model.KindHiringSpike).MinAbsolute, ShouldEqual, calibration.DefaultMinAbsolute)
			So(set.For(model.KindTechAdopt).CorroborationDays, ShouldEqual, calibration.DefaultCorroborationDays)
			So(set.For(model.KindFunding).MinRoundStage, ShouldEqual, "seed")
			So(set.For(model.KindCompliance).Categories, ShouldNotBeEmpty)
		})

		Convey("And unknown kinds fall back to defaults", func() {
			t := store.Active().For(model.SignalKind("unknown"))
			So(t.SpikeRatio, ShouldEqual, calibration.DefaultSpikeRatio)
			So(t.MergeWindowDays, ShouldEqual, calibration.DefaultMergeWindowDays)
		})
	})
}

func TestStore_Apply(t *testing.T) {
	Convey("Given a calibration store with the default set", t, func() {
		store := calibration.NewStore()

		Convey("When applying a valid replacement set", func() {
			next := calibration.Default()
			next.Weights = calibration.Weights{Fit: 0.5, Intent: 0.3, Timing: 0.2}
			err := store.Apply(next)

			Convey("Then the version is bumped and the set is active", func() {
				So(err, ShouldBeNil)
				active := store.Active()
				So(active.Version, ShouldEqual, 2)
				So(active.Weights.Fit, ShouldEqual, 0.5)
			})
		})

		Convey("When the weights do not sum to 1.0", func() {
			next := calibration.Default()
			next.Weights = calibration.Weights{Fit: 0.4, Intent: 0.4, Timing: 0.1}
			err := store.Apply(next)

			Convey("Then the set is rejected and the old one stays active", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "rejected")
				So(store.Active().Version, ShouldEqual, 1)
				So(store.Active().Weights.Fit, ShouldEqual, 0.4)
			})
		})

		Convey("When a weight is negative", func() {
			next := calibration.Default()
			next.Weights = calibration.Weights{Fit: 1.2, Intent: -0.4, Timing: 0.2}
			err := store.Apply(next)

			Convey("Then the set is rejected", func() {
				So(err, ShouldNotBeNil)
				So(store.Active().Version, ShouldEqual, 1)
			})
		})

		Convey("When a threshold is negative", func() {
			next := calibration.Default()
			next.Thresholds[model.KindHiringSpike] = calibration.KindThresholds{SpikeRatio: -1}
			err := store.Apply(next)

			Convey("Then the set is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the window geometry is negative", func() {
			next := calibration.Default()
			next.IdleTTLDays = -1
			err := store.Apply(next)

			Convey("Then the set is rejected", func() {
				So(err, ShouldNotBeNil)
				So(store.Active().Version, ShouldEqual, 1)
			})
		})

		Convey("When the short window exceeds the baseline", func() {
			next := calibration.Default()
			next.ShortWindowDays = 90
			next.BaselineDays = 30
			err := store.Apply(next)

			Convey("Then the set is rejected", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "baseline")
			})
		})

		Convey("When applying a nil set", func() {
			err := store.Apply(nil)

			Convey("Then it is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When applying twice", func() {
			So(store.Apply(calibration.Default()), ShouldBeNil)
			So(store.Apply(calibration.Default()), ShouldBeNil)

			Convey("Then versions increase monotonically", func() {
				So(store.Active().Version, ShouldEqual, 3)
			})
		})
	})
}

func TestStore_WeightTolerance(t *testing.T) {
	Convey("Given a store with a wider weight tolerance", t, func() {
		store := calibration.NewStore(calibration.WithWeightTolerance(0.1))

		Convey("When the weight sum drifts inside the tolerance", func() {
			next := calibration.Default()
			next.Weights = calibration.Weights{Fit: 0.4, Intent: 0.4, Timing: 0.15}
			err := store.Apply(next)

			Convey("Then the set is accepted", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestSet_StageRank(t *testing.T) {
	Convey("Given the default stage ranking", t, func() {
		set := calibration.Default()

		Convey("Then later stages rank higher", func() {
			So(set.StageRank("seed"), ShouldBeLessThan, set.StageRank("series_a"))
			So(set.StageRank("series_a"), ShouldBeLessThan, set.StageRank("series_c"))
		})

		Convey("And unknown stages rank -1", func() {
			So(set.StageRank("ipo"), ShouldEqual, -1)
		})
	})
}

func TestSet_Durations(t *testing.T) {
	Convey("Given kind thresholds", t, func() {
		Convey("When days are set explicitly", func() {
			t := calibration.KindThresholds{MergeWindowDays: 7, CorroborationDays: 3}
			So(t.MergeWindow(), ShouldEqual, 7*24*time.Hour)
			So(t.Corroboration(), ShouldEqual, 3*24*time.Hour)
		})

		Convey("When days are zero the defaults apply", func() {
			t := calibration.KindThresholds{}
			So(t.MergeWindow(), ShouldEqual, time.Duration(calibration.DefaultMergeWindowDays)*24*time.Hour)
			So(t.Corroboration(), ShouldEqual, time.Duration(calibration.DefaultCorroborationDays)*24*time.Hour)
		})
	})

	Convey("Given a set with zero window geometry", t, func() {
		set := &calibration.Set{}

		Convey("Then window spans fall back to defaults", func() {
			So(set.ShortWindow(), ShouldEqual, time.Duration(calibration.DefaultShortWindowDays)*24*time.Hour)
			So(set.Baseline(), ShouldEqual, time.Duration(calibration.DefaultBaselineDays)*24*time.Hour)
			So(set.IdleTTL(), ShouldEqual, time.Duration(calibration.DefaultIdleTTLDays)*24*time.Hour)
		})
	})
}
