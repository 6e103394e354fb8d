package reinforcement

import "k8s.io/klog/v2"

// Sarsa is the on-policy TD counterpart of QLearning: the target bootstraps from
// the action the behaviour policy actually picks next. It shares QLearning's
// lazy tables and per-pair step size decay.
type Sarsa[S comparable] struct {
	*tabular[S]
}

// NewSarsa returns an agent for an environment with the passed action count.
func NewSarsa[S comparable](cfg AgentConfig, actions int) *Sarsa[S] {
	return &Sarsa[S]{
		tabular: newTabular[S](cfg, actions),
	}
}

// Update applies one SARSA step for (s, a, reward, s2, a2).
func (sa *Sarsa[S]) Update(s S, a int, reward float64, s2 S, a2 int, done bool, info Info) {
	qs := sa.values.GetOrInit(s)
	next := sa.values.GetOrInit(s2)[a2]
	if done && !info.Truncated {
		next = 0
	}

	lr := sa.cfg.Alpha / sa.counts.GetOrInit(s)[a]
	sa.counts.Increment(s, a, CountIncrement)
	qs[a] += lr * (reward + sa.cfg.Gamma*next - qs[a])
}

// SingleEpisodeTrain runs one epsilon-greedy episode, updating after every step
// with the next action already chosen, and decays epsilon at its end.
func (sa *Sarsa[S]) SingleEpisodeTrain(env Environment[S]) (int, float64, float64) {
	n := env.ActionCount()
	ep := &Episode[S]{}
	s := ep.Start(env)
	sa.values.GetOrInit(s)
	a := sa.ChooseAction(s, n)
	for ep.Running() {
		s2, r, done, info := env.Step(a)
		sa.values.GetOrInit(s2)
		// Truncated steps still bootstrap, so they need a next action too.
		a2 := a
		if !done || info.Truncated {
			a2 = sa.ChooseAction(s2, n)
		}
		sa.Update(s, a, r, s2, a2, done, info)
		ep.Advance(s2, r, done)
		s, a = s2, a2
	}

	klog.V(2).InfoS("Episode finished", "agent", "sarsa", "steps", ep.Steps,
		"return", ep.Return, "reward", ep.LastReward, "epsilon", sa.epsilon)
	sa.endEpisode()
	return ep.Results()
}
