package plotting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"rlgym/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPlotting(t *testing.T) {
	Convey("Given results of unequal length", t, func() {
		results := []reinforcement.Result{
			{Agent: "qlearning", Rewards: []float64{-1, 4, 10}, Iterations: 3, Steps: 120},
			{Agent: "sarsa", Rewards: []float64{-1}, Iterations: 1, Steps: 40},
			{Agent: "idle"},
		}

		Convey("Curves are padded with their last value", func() {
			rounds, curves := Pad(results)
			So(rounds, ShouldEqual, 3)
			So(curves[0], ShouldResemble, []float64{-1, 4, 10})
			So(curves[1], ShouldResemble, []float64{-1, -1, -1})
			So(curves[2], ShouldBeEmpty)
		})

		Convey("The chart page names every agent", func() {
			out := &bytes.Buffer{}
			So(Render(out, "BasicGridWorld-v0", results), ShouldBeNil)
			So(out.String(), ShouldContainSubstring, "BasicGridWorld-v0")
			So(out.String(), ShouldContainSubstring, "qlearning, 3 iter, 120 steps")
			So(out.String(), ShouldContainSubstring, "sarsa, 1 iter, 40 steps")
		})

		Convey("Charts can be written to nested paths", func() {
			path := filepath.Join(t.TempDir(), "charts", "rewards.html")
			So(WriteFile(path, "BasicGridWorld-v0", results), ShouldBeNil)
			info, err := os.Stat(path)
			So(err, ShouldBeNil)
			So(info.Size(), ShouldBeGreaterThan, int64(0))
		})
	})
}
