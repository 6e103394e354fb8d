package reinforcement

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValueTable(t *testing.T) {
	Convey("Given an empty value table", t, func() {
		vt := NewValueTable[string](3)

		Convey("Lookups do not insert, get-or-init does", func() {
			_, ok := vt.Get("a")
			So(ok, ShouldBeFalse)
			_, ok = vt.Argmax("a")
			So(ok, ShouldBeFalse)
			So(vt.Len(), ShouldEqual, 0)

			So(vt.GetOrInit("a"), ShouldResemble, []float64{0, 0, 0})
			So(vt.Len(), ShouldEqual, 1)
		})

		Convey("Max inserts unseen states as zero", func() {
			So(vt.Max("b"), ShouldEqual, 0.0)
			So(vt.Len(), ShouldEqual, 1)
		})

		Convey("Argmax returns the first maximal action", func() {
			copy(vt.GetOrInit("c"), []float64{1, 3, 3})
			a, ok := vt.Argmax("c")
			So(ok, ShouldBeTrue)
			So(a, ShouldEqual, 1)
		})
	})

	Convey("Update counts start at one and grow softly", t, func() {
		uc := NewUpdateCounts[int](2)
		So(uc.Count(1, 0), ShouldEqual, 1.0)
		uc.Increment(1, 0, CountIncrement)
		So(uc.Count(1, 0), ShouldEqual, 1.005)
		So(uc.Count(1, 1), ShouldEqual, 1.0)
	})
}

func TestRoundMetrics(t *testing.T) {
	Convey("Rounds are exported as metrics", t, func() {
		q := NewQLearning[int](testConfig(), 1)
		q.SingleEpisodeTrain(&loopEnv{reward: 1})
		observeRound(Round{Agent: "metrics-test", Steps: 12, MeanReward: 4, Epsilon: 0.5}, q)

		So(testutil.ToFloat64(metricSteps.WithLabelValues("metrics-test")), ShouldEqual, 12.0)
		So(testutil.ToFloat64(metricMeanReward.WithLabelValues("metrics-test")), ShouldEqual, 4.0)
		So(testutil.ToFloat64(metricEpsilon.WithLabelValues("metrics-test")), ShouldEqual, 0.5)
		So(testutil.ToFloat64(metricRounds.WithLabelValues("metrics-test")), ShouldEqual, 1.0)

		random, greedy := q.ActionCounts()
		So(testutil.ToFloat64(metricActions.WithLabelValues("metrics-test", "random")), ShouldEqual, float64(random))
		So(testutil.ToFloat64(metricActions.WithLabelValues("metrics-test", "greedy")), ShouldEqual, float64(greedy))
	})
}
