package reinforcement

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// StopReason describes why the convergence loop ended.
type StopReason int

const (
	// StopGoalReached: an evaluation episode ended with the goal reward.
	StopGoalReached StopReason = iota
	// StopStable: the mean evaluation reward stopped changing.
	StopStable
	// StopIterationCap: the round limit was hit without convergence.
	StopIterationCap
	// StopCancelled: the context ended, e.g. a training deadline.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopGoalReached:
		return "goal reached"
	case StopStable:
		return "stable"
	case StopIterationCap:
		return "iteration cap"
	default:
		return "cancelled"
	}
}

// Converged reports whether the reason counts as convergence.
func (r StopReason) Converged() bool {
	return r == StopGoalReached || r == StopStable
}

// ConvergenceConfig holds the stop criteria of the training loop.
type ConvergenceConfig struct {
	// TrainEpisodes is the number of learning episodes per round.
	TrainEpisodes int
	// EvalEpisodes is the number of greedy evaluation episodes per round.
	EvalEpisodes int
	// GoalReward ends training as soon as any evaluation episode ends with it.
	GoalReward float64
	// Tolerance bounds the change of mean evaluation reward between rounds
	// that counts as stable.
	Tolerance float64
	// StopCount is the number of consecutive stable rounds that ends training.
	StopCount int
	// MaxIterations caps the number of rounds.
	MaxIterations int
}

// DefaultConvergenceConfig returns the criteria used by the grid world experiments,
// training and evaluating for iterations episodes per round.
func DefaultConvergenceConfig(iterations int) ConvergenceConfig {
	return ConvergenceConfig{
		TrainEpisodes: iterations,
		EvalEpisodes:  iterations,
		GoalReward:    10,
		Tolerance:     10e-3,
		StopCount:     2,
		MaxIterations: 10,
	}
}

// Round summarizes one train/evaluate round.
type Round struct {
	Agent      string
	Iteration  int
	Steps      int
	MeanReturn float64
	MeanReward float64
	MaxReward  float64
	Epsilon    float64
}

// Result is the outcome of Converge.
type Result struct {
	Agent string
	// Rewards holds the mean evaluation reward of every round.
	Rewards    []float64
	Iterations int
	Steps      int
	Reason     StopReason
	// Final holds the last round's per-episode evaluation rewards.
	Final []float64
}

// ProgressFunc is a callback by which the training loop lends progress details.
// It is synchronous and should complete quickly.
type ProgressFunc func(context.Context, Round)

// Train runs episodes learning episodes and returns the total step count and the
// mean undiscounted return.
func Train[S comparable](agent Agent[S], env Environment[S], episodes int) (steps int, meanReturn float64) {
	for i := 0; i < episodes; i++ {
		stps, ret, _ := agent.SingleEpisodeTrain(env)
		steps += stps
		meanReturn += ret
	}
	if episodes > 0 {
		meanReturn /= float64(episodes)
	}
	return
}

// Evaluate runs greedy episodes without learning and returns the final step reward
// of each. Environments are expected to bound episode length so that a greedy
// policy stuck in a cycle still terminates.
func Evaluate[S comparable](agent Agent[S], env Environment[S], episodes int) []float64 {
	rewards := make([]float64, 0, episodes)
	n := env.ActionCount()
	for i := 0; i < episodes; i++ {
		ep := &Episode[S]{}
		s := ep.Start(env)
		for ep.Running() {
			s2, r, done, _ := env.Step(agent.OptimalAction(s, n))
			ep.Advance(s2, r, done)
			s = s2
		}
		rewards = append(rewards, ep.LastReward)
	}
	return rewards
}

// Converge alternates training and evaluation rounds until an evaluation episode
// reaches the goal reward, the mean evaluation reward is stable for StopCount
// consecutive rounds, or MaxIterations rounds have run. The goal check takes
// priority over the stability check within a round. Hitting the round cap is not
// an error; an error is only returned when ctx ends first.
func Converge[S comparable](
	ctx context.Context,
	name string,
	agent Agent[S],
	env Environment[S],
	cfg ConvergenceConfig,
	progressFn ProgressFunc,
) (res Result, err error) {
	res.Agent = name
	res.Reason = StopIterationCap
	stable := 0

	for res.Iterations < cfg.MaxIterations {
		if err = ctx.Err(); err != nil {
			res.Reason = StopCancelled
			return
		}

		klog.V(1).InfoS("Train agent", "agent", name, "round", res.Iterations, "episodes", cfg.TrainEpisodes)
		steps, meanReturn := Train(agent, env, cfg.TrainEpisodes)
		res.Steps += steps

		klog.V(1).InfoS("Evaluate agent to test convergence", "agent", name, "round", res.Iterations)
		res.Final = Evaluate(agent, env, cfg.EvalEpisodes)
		mean, best := summarize(res.Final)
		res.Rewards = append(res.Rewards, mean)
		res.Iterations++

		round := Round{
			Agent:      name,
			Iteration:  res.Iterations,
			Steps:      res.Steps,
			MeanReturn: meanReturn,
			MeanReward: mean,
			MaxReward:  best,
		}
		if er, ok := agent.(EpsilonReporter); ok {
			round.Epsilon = er.Epsilon()
		}
		observeRound(round, agent)
		klog.InfoS("Round finished", "agent", name, "round", round.Iteration,
			"meanReward", mean, "maxReward", best, "steps", res.Steps)
		if progressFn != nil {
			progressFn(ctx, round)
		}

		if best == cfg.GoalReward {
			res.Reason = StopGoalReached
			return
		}
		if n := len(res.Rewards); n > 1 {
			if math.Abs(res.Rewards[n-1]-res.Rewards[n-2]) < cfg.Tolerance {
				stable++
			} else {
				stable = 0
			}
		}
		if stable >= cfg.StopCount {
			res.Reason = StopStable
			return
		}
	}
	return
}

func summarize(rewards []float64) (mean, best float64) {
	if len(rewards) == 0 {
		return 0, 0
	}
	return stat.Mean(rewards, nil), floats.Max(rewards)
}
