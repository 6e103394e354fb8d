package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"rlgym/features"
	"rlgym/grid_world"
	"rlgym/reinforcement"
	"rlgym/server/cell_views"
)

// ErrUnknownAgent is returned for agent names not in agentNames.
var ErrUnknownAgent = errors.New("unknown agent")

var agentNames = []string{"qlearning", "sarsa", "monte_carlo", "qlearning_fa"}

// Function approximation settings: an RBF union over several kernel widths of the
// standardized observation, fitted on states seen by a random walk.
var (
	rbfGammas        = []float64{0.05, 0.1, 0.5, 1.0, 1.5, 2.0}
	rbfComponents    = 100
	scalerSamples    = 2000
	faLearningRate   = 0.01
	faGamma          = 0.99
	faEpsilonDecay   = 0.9
	faEpsilonMinimum = 0.0
)

type gridAgent = reinforcement.Agent[grid_world.State]

// tabularView is implemented by the table-based agents.
type tabularView interface {
	Policy() map[grid_world.State]int
	StateValues() map[grid_world.State]float64
}

// newAgent builds the agent registered under name for env.
func newAgent(name string, cfg reinforcement.AgentConfig, env *grid_world.GridWorld) (gridAgent, error) {
	switch name {
	case "qlearning":
		return reinforcement.NewQLearning[grid_world.State](cfg, env.ActionCount()), nil
	case "sarsa":
		return reinforcement.NewSarsa[grid_world.State](cfg, env.ActionCount()), nil
	case "monte_carlo":
		return reinforcement.NewMonteCarlo[grid_world.State](cfg, env.ActionCount()), nil
	case "qlearning_fa":
		return newApproximateAgent(cfg, env), nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAgent, name, strings.Join(agentNames, ", "))
}

// valuesOf projects a tabular agent's values and policy onto env's current board.
// Agents without a value table have nothing to project.
func valuesOf(name string, agent gridAgent, env *grid_world.GridWorld) (cell_views.Values, bool) {
	view, ok := agent.(tabularView)
	if !ok {
		return cell_views.Values{}, false
	}
	return cell_views.Values{
		Agent: name,
		Grid:  env.ValueGrid(view.StateValues(), view.Policy()),
	}, true
}

func newApproximateAgent(cfg reinforcement.AgentConfig, env *grid_world.GridWorld) gridAgent {
	samples := sampleObservations(env, scalerSamples, cfg.Seed)
	phi := features.Pipeline{
		Scaler: features.FitScaler(samples),
		Next:   features.NewRBFUnion(len(samples[0]), rbfGammas, rbfComponents, uint64(cfg.Seed)),
	}
	model := reinforcement.NewLinearModel(phi, env.ActionCount(), faLearningRate)

	cfg.Gamma = faGamma
	cfg.EpsilonDecay = faEpsilonDecay
	cfg.EpsilonMin = faEpsilonMinimum
	return reinforcement.NewApproximateQLearning[grid_world.State](cfg, model, grid_world.State.Vector)
}

// sampleObservations random-walks env, resetting at episode ends, and returns n
// observation vectors. env is left reset.
func sampleObservations(env *grid_world.GridWorld, n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	samples := make([][]float64, 0, n)
	s := env.Reset()
	for len(samples) < n {
		samples = append(samples, s.Vector())
		var done bool
		if s, _, done, _ = env.Step(rng.Intn(env.ActionCount())); done {
			s = env.Reset()
		}
	}
	env.Reset()
	return samples
}
