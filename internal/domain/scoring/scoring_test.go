package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestWeightsValidate(t *testing.T) {
	convey.Convey("Given a set of component weights", t, func() {
		convey.Convey("Then the defaults validate", func() {
			convey.So(DefaultWeights().Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then a sum off by more than the tolerance is rejected", func() {
			w := Weights{NPS: 0.4, Readmission: 0.4, Wait: 0.1, Followup: 0.05, Volume: 0.1}
			err := w.Validate()
			convey.So(errors.Is(err, ErrInvalidWeights), convey.ShouldBeTrue)
		})

		convey.Convey("Then a negative weight is rejected even when the sum is 1", func() {
			w := Weights{NPS: 1.1, Readmission: -0.1, Wait: 0, Followup: 0, Volume: 0}
			err := w.Validate()
			convey.So(errors.Is(err, ErrInvalidWeights), convey.ShouldBeTrue)
		})

		convey.Convey("Then a sum within tolerance passes", func() {
			w := Weights{NPS: 0.3, Readmission: 0.25, Wait: 0.15, Followup: 0.15, Volume: 0.15 + 5e-7}
			convey.So(w.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestVolumeAdjustment(t *testing.T) {
	convey.Convey("Given response volumes", t, func() {
		convey.Convey("Then the max-volume subject saturates at 1", func() {
			convey.So(VolumeAdjustment(200, 200), convey.ShouldEqual, 1)
		})

		convey.Convey("Then zero responses score zero", func() {
			convey.So(VolumeAdjustment(0, 200), convey.ShouldEqual, 0)
		})

		convey.Convey("Then an empty population scores zero", func() {
			convey.So(VolumeAdjustment(10, 0), convey.ShouldEqual, 0)
		})

		convey.Convey("Then the curve is log-dampened", func() {
			want := math.Log1p(50) / math.Log1p(200)
			convey.So(VolumeAdjustment(50, 200), convey.ShouldAlmostEqual, want, 1e-12)
		})

		convey.Convey("Then adjustment is monotone in volume", func() {
			prev := 0.0
			for _, n := range []int{1, 5, 20, 80, 200} {
				adj := VolumeAdjustment(n, 200)
				convey.So(adj, convey.ShouldBeGreaterThan, prev)
				prev = adj
			}
		})
	})
}

func TestScore(t *testing.T) {
	convey.Convey("Given a scorer with default weights", t, func() {
		scorer := NewScorer()
		at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		convey.Convey("When every component is perfect", func() {
			in := Input{
				SubjectID:      "doc-1",
				ResponsesCount: 100,
				NPSNorm:        1, ReadmissionNorm: 1, WaitNorm: 1, FollowupNorm: 1,
			}
			sc := scorer.Score(in, 100, at)

			convey.So(sc.Composite, convey.ShouldAlmostEqual, 100, 1e-9)
			convey.So(sc.VolumeAdjustment, convey.ShouldEqual, 1)
			convey.So(sc.ComputedAt, convey.ShouldEqual, at)
		})

		convey.Convey("When every component is worst-case", func() {
			sc := scorer.Score(Input{SubjectID: "doc-2"}, 100, at)
			convey.So(sc.Composite, convey.ShouldEqual, 0)
		})

		convey.Convey("When one component improves the composite rises", func() {
			base := scorer.Score(Input{NPSNorm: 0.2, ReadmissionNorm: 0.5}, 10, at)
			better := scorer.Score(Input{NPSNorm: 0.8, ReadmissionNorm: 0.5}, 10, at)
			convey.So(better.Composite, convey.ShouldBeGreaterThan, base.Composite)
		})

		convey.Convey("When custom weights are supplied", func() {
			s := NewScorer(WithWeights(Weights{NPS: 1}))
			sc := s.Score(Input{NPSNorm: 0.5, ReadmissionNorm: 1, WaitNorm: 1}, 0, at)
			convey.So(sc.Composite, convey.ShouldAlmostEqual, 50, 1e-9)
		})

		convey.Convey("Then the raw inputs are echoed into the row", func() {
			wait := 17.5
			in := Input{
				SubjectID:      "doc-3",
				SubjectName:    "Dr. Novak 3",
				ResponsesCount: 12,
				NPSPct:         40,
				ReadmissionPct: 3.5,
				AvgWaitMinutes: &wait,
				FollowupPct:    0.8,
			}
			sc := scorer.Score(in, 50, at)
			convey.So(sc.SubjectName, convey.ShouldEqual, "Dr. Novak 3")
			convey.So(sc.NPSPct, convey.ShouldEqual, 40)
			convey.So(sc.ReadmissionPct, convey.ShouldEqual, 3.5)
			convey.So(*sc.AvgWaitMinutes, convey.ShouldEqual, 17.5)
			convey.So(sc.FollowupPct, convey.ShouldEqual, 0.8)
		})
	})
}
