package reinforcement

import "fmt"

// Phase is the lifecycle of a single episode.
type Phase int

const (
	NotStarted Phase = iota
	Running
	Done
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	default:
		return "Done"
	}
}

// Episode tracks one pass of agent-environment interaction:
// NotStarted -> Running on reset, Running -> Running per step, Running -> Done
// when the environment signals the end of the episode.
type Episode[S comparable] struct {
	Phase      Phase
	State      S
	Steps      int
	Return     float64
	LastReward float64
}

// Start resets env and enters the Running phase.
func (ep *Episode[S]) Start(env Environment[S]) S {
	ep.State = env.Reset()
	ep.Phase = Running
	return ep.State
}

// Advance records a transition into next and moves to Done when done is set.
func (ep *Episode[S]) Advance(next S, reward float64, done bool) {
	ep.Steps++
	ep.Return += reward
	ep.LastReward = reward
	ep.State = next
	if done {
		ep.Phase = Done
	}
}

// Running reports whether the episode still accepts steps.
func (ep *Episode[S]) Running() bool {
	return ep.Phase == Running
}

// Results returns the driver's outputs: steps, undiscounted return, final step reward.
func (ep *Episode[S]) Results() (int, float64, float64) {
	return ep.Steps, ep.Return, ep.LastReward
}

func (ep *Episode[S]) String() string {
	return fmt.Sprintf("Episode | Phase: %v  |  Steps: %d  |  Return: %.2f  |  Last: %.2f",
		ep.Phase, ep.Steps, ep.Return, ep.LastReward)
}
