package reinforcement

import "errors"

// Info carries auxiliary step details from an environment.
type Info struct {
	// Truncated is set when an episode ended because of a step limit rather
	// than by reaching a terminal state.
	Truncated bool
	// Event optionally names what happened on the step (e.g. "goal", "pit", "wall").
	Event string
}

// Environment is a discrete-action episodic environment, gym style.
// S is the environment's observation, which tabular agents use directly as a map key.
type Environment[S comparable] interface {
	Reset() S
	Step(action int) (next S, reward float64, done bool, info Info)
	ActionCount() int
}

// Agent is the capability set shared by tabular and approximating agents.
type Agent[S comparable] interface {
	// SingleEpisodeTrain runs one learning episode against env, returning the step count,
	// the undiscounted return and the reward of the final step.
	SingleEpisodeTrain(env Environment[S]) (steps int, totalReturn, lastReward float64)
	// OptimalAction returns the greedy action for s, in [0, actionCount).
	OptimalAction(s S, actionCount int) int
}

// ActionCounter reports how many actions were exploratory versus greedy.
type ActionCounter interface {
	ActionCounts() (random, greedy int)
}

// EpsilonReporter reports an agent's current exploration rate.
type EpsilonReporter interface {
	Epsilon() float64
}

// ErrPersistenceUnsupported is returned by SaveModel and LoadModel: agents keep
// no on-disk representation.
var ErrPersistenceUnsupported = errors.New("model persistence is not supported")

// Persister is satisfied by agents that expose save/load hooks.
type Persister interface {
	SaveModel(path string) error
	LoadModel(path string) error
}
