package reinforcement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const trainingYaml = `kind: training
def:
  hyperParams:
    - key: epsilon
      val: 0.5
    - key: gamma
      val: 0.95
    - key: seed
      val: 7
    - key: stop_count
      val: 3
  algorithm:
    agent: sarsa
    env: BasicGridWorld-v1
  trainingDeadline:
    duration: 90s
`

func writeConfig(t *testing.T, doc string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrainingConfig(t *testing.T) {
	Convey("Given a training config file", t, func() {
		cfg, err := FromYaml(writeConfig(t, trainingYaml))
		So(err, ShouldBeNil)

		Convey("Hyper-parameters are read, with defaults for the rest", func() {
			agent := cfg.AgentConfig()
			So(agent.Epsilon, ShouldEqual, 0.5)
			So(agent.Gamma, ShouldEqual, 0.95)
			So(agent.Seed, ShouldEqual, int64(7))
			So(agent.Alpha, ShouldEqual, DefaultAgentConfig().Alpha)

			conv := cfg.ConvergenceConfig(16)
			So(conv.StopCount, ShouldEqual, 3)
			So(conv.TrainEpisodes, ShouldEqual, 16)
			So(conv.MaxIterations, ShouldEqual, 10)
			So(conv.Tolerance, ShouldEqual, 10e-3)
		})

		Convey("The algorithm selectors are read", func() {
			So(cfg.GetAlgorithmOrDefault("agent", "qlearning"), ShouldEqual, "sarsa")
			So(cfg.GetAlgorithmOrDefault("env", ""), ShouldEqual, "BasicGridWorld-v1")
			So(cfg.GetAlgorithmOrDefault("model", "linear"), ShouldEqual, "linear")
		})

		Convey("The training deadline bounds the context", func() {
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(time.Until(deadline), ShouldBeLessThanOrEqualTo, 90*time.Second)
		})
	})

	Convey("Without a deadline the context is only cancellable", t, func() {
		cfg := &TrainingConfig{}
		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)
		cancel()
		So(ctx.Err(), ShouldEqual, context.Canceled)
	})

	Convey("Malformed deadlines are rejected", t, func() {
		cfg := &TrainingConfig{TrainingDeadline: map[string]string{"duration": "soon"}}
		_, _, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldNotBeNil)
	})

	Convey("Missing files are reported", t, func() {
		_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}
