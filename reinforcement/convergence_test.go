package reinforcement

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// scriptedEnv ends every episode after one step, paying the next scripted reward.
type scriptedEnv struct {
	rewards []float64
	next    int
}

func (e *scriptedEnv) Reset() int       { return 0 }
func (e *scriptedEnv) ActionCount() int { return 2 }
func (e *scriptedEnv) Step(int) (int, float64, bool, Info) {
	r := e.rewards[e.next%len(e.rewards)]
	e.next++
	return 0, r, true, Info{}
}

// idleAgent trains without touching the environment, so that only evaluation
// consumes the script.
type idleAgent struct {
	trained int
}

func (a *idleAgent) SingleEpisodeTrain(Environment[int]) (int, float64, float64) {
	a.trained++
	return 2, -1, 0
}

func (a *idleAgent) OptimalAction(int, int) int { return 0 }

func scriptConfig() ConvergenceConfig {
	return ConvergenceConfig{
		TrainEpisodes: 3,
		EvalEpisodes:  1,
		GoalReward:    10,
		Tolerance:     10e-3,
		StopCount:     2,
		MaxIterations: 10,
	}
}

func TestConverge(t *testing.T) {
	Convey("Given an agent evaluated against scripted rewards", t, func() {
		ctx := context.Background()
		agent := &idleAgent{}
		cfg := scriptConfig()

		Convey("Reaching the goal reward ends training", func() {
			env := &scriptedEnv{rewards: []float64{-10, 10, -10}}
			res, err := Converge[int](ctx, "idle", agent, env, cfg, nil)
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, StopGoalReached)
			So(res.Reason.Converged(), ShouldBeTrue)
			So(res.Iterations, ShouldEqual, 2)
			So(res.Rewards, ShouldResemble, []float64{-10, 10})
			So(res.Steps, ShouldEqual, 2*3*2)
			So(agent.trained, ShouldEqual, 6)
		})

		Convey("The goal check takes priority over stability", func() {
			cfg.GoalReward = 5
			cfg.StopCount = 1
			cfg.EvalEpisodes = 2
			env := &scriptedEnv{rewards: []float64{1, 3, -1, 5}}
			res, err := Converge[int](ctx, "idle", agent, env, cfg, nil)
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, StopGoalReached)
			So(res.Rewards, ShouldResemble, []float64{2, 2})
			So(res.Final, ShouldResemble, []float64{-1, 5})
		})

		Convey("Consecutive stable rounds end training", func() {
			env := &scriptedEnv{rewards: []float64{1}}
			res, err := Converge[int](ctx, "idle", agent, env, cfg, nil)
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, StopStable)
			So(res.Iterations, ShouldEqual, 3)
		})

		Convey("A changing round resets the stability count", func() {
			env := &scriptedEnv{rewards: []float64{1, 1, 2, 2, 2, 7}}
			res, err := Converge[int](ctx, "idle", agent, env, cfg, nil)
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, StopStable)
			So(res.Iterations, ShouldEqual, 5)
		})

		Convey("Hitting the round cap is not an error", func() {
			cfg.MaxIterations = 4
			env := &scriptedEnv{rewards: []float64{1, 2, 3, 4, 5}}
			res, err := Converge[int](ctx, "idle", agent, env, cfg, nil)
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, StopIterationCap)
			So(res.Reason.Converged(), ShouldBeFalse)
			So(res.Iterations, ShouldEqual, 4)
			So(len(res.Rewards), ShouldEqual, 4)
		})

		Convey("Progress is reported after every round", func() {
			env := &scriptedEnv{rewards: []float64{1, 2, 3}}
			cfg.MaxIterations = 3
			var rounds []Round
			_, err := Converge[int](ctx, "idle", agent, env, cfg, func(_ context.Context, r Round) {
				rounds = append(rounds, r)
			})
			So(err, ShouldBeNil)
			So(len(rounds), ShouldEqual, 3)
			So(rounds[2].Iteration, ShouldEqual, 3)
			So(rounds[2].Agent, ShouldEqual, "idle")
			So(rounds[2].MeanReturn, ShouldEqual, -1.0)
			So(rounds[1].MeanReward, ShouldEqual, 2.0)
		})

		Convey("A cancelled context ends training with its error", func() {
			cctx, cancel := context.WithCancel(ctx)
			env := &scriptedEnv{rewards: []float64{1, 2, 3}}
			res, err := Converge[int](cctx, "idle", agent, env, cfg, func(context.Context, Round) {
				cancel()
			})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(res.Reason, ShouldEqual, StopCancelled)
			So(res.Iterations, ShouldEqual, 1)
		})
	})

	Convey("Q-learning on a corridor converges", t, func() {
		env := &corridor{length: 4, maxSteps: 20}
		q := NewQLearning[int](testConfig(), env.ActionCount())
		cfg := DefaultConvergenceConfig(50)
		res, err := Converge[int](context.Background(), "qlearning", q, env, cfg, nil)
		So(err, ShouldBeNil)
		So(res.Reason.Converged(), ShouldBeTrue)
		So(res.Iterations, ShouldBeLessThanOrEqualTo, cfg.MaxIterations)
		So(len(res.Final), ShouldEqual, 50)
	})
}

func TestTrainAndEvaluate(t *testing.T) {
	Convey("Train sums steps and averages returns", t, func() {
		steps, ret := Train[int](&idleAgent{}, &scriptedEnv{rewards: []float64{0}}, 4)
		So(steps, ShouldEqual, 8)
		So(ret, ShouldEqual, -1.0)
	})

	Convey("Evaluate returns the final reward of every greedy episode", t, func() {
		rewards := Evaluate[int](&idleAgent{}, &scriptedEnv{rewards: []float64{3, -3}}, 3)
		So(rewards, ShouldResemble, []float64{3, -3, 3})
	})
}
