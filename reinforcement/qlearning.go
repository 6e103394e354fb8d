package reinforcement

import "k8s.io/klog/v2"

// QLearning is the tabular one-step Q-learning agent. Each (s,a) pair has its own
// step size alpha/count, where count starts at 1 and grows by CountIncrement per
// update, so step sizes shrink as pairs are revisited.
type QLearning[S comparable] struct {
	*tabular[S]
}

// NewQLearning returns an agent for an environment with the passed action count.
func NewQLearning[S comparable](cfg AgentConfig, actions int) *QLearning[S] {
	return &QLearning[S]{
		tabular: newTabular[S](cfg, actions),
	}
}

// Update applies one Q-learning step for the transition (s, a, reward, s2).
// Terminal transitions do not bootstrap: the successor of a terminal step has
// value zero by definition. Truncated episodes do bootstrap, since their last
// state is not terminal.
func (q *QLearning[S]) Update(s S, a int, reward float64, s2 S, done bool, info Info) {
	qs := q.values.GetOrInit(s)
	next := q.values.Max(s2)
	if done && !info.Truncated {
		next = 0
	}

	lr := q.cfg.Alpha / q.counts.GetOrInit(s)[a]
	q.counts.Increment(s, a, CountIncrement)
	qs[a] += lr * (reward + q.cfg.Gamma*next - qs[a])
}

// SingleEpisodeTrain runs one episode, updating after every transition, and
// decays epsilon once the episode is done.
func (q *QLearning[S]) SingleEpisodeTrain(env Environment[S]) (int, float64, float64) {
	n := env.ActionCount()
	ep := &Episode[S]{}
	s := ep.Start(env)
	for ep.Running() {
		q.values.GetOrInit(s)
		a := q.ChooseAction(s, n)
		s2, r, done, info := env.Step(a)
		q.Update(s, a, r, s2, done, info)
		ep.Advance(s2, r, done)
		s = s2
	}

	klog.V(2).InfoS("Episode finished", "agent", "qlearning", "steps", ep.Steps,
		"return", ep.Return, "reward", ep.LastReward, "epsilon", q.epsilon)
	q.endEpisode()
	return ep.Results()
}
