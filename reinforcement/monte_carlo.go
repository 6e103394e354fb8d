package reinforcement

import "k8s.io/klog/v2"

// MonteCarlo is first-visit Monte Carlo control. Episodes are generated with the
// epsilon-greedy policy and each first-visited (s,a) moves to the sample average
// of its returns. Unlike the TD agents, visit counts here are integral.
type MonteCarlo[S comparable] struct {
	*tabular[S]
	returns map[stateAction[S]]int
}

type stateAction[S comparable] struct {
	state  S
	action int
}

// step is a single time step of an agent: do action in state, observe reward.
type step[S comparable] struct {
	state  S
	action int
	reward float64
}

// NewMonteCarlo returns an agent for an environment with the passed action count.
func NewMonteCarlo[S comparable](cfg AgentConfig, actions int) *MonteCarlo[S] {
	return &MonteCarlo[S]{
		tabular: newTabular[S](cfg, actions),
		returns: map[stateAction[S]]int{},
	}
}

// SingleEpisodeTrain generates one epsilon-greedy episode, then moves every
// first-visited pair toward the mean of its returns and decays epsilon.
func (mc *MonteCarlo[S]) SingleEpisodeTrain(env Environment[S]) (int, float64, float64) {
	n := env.ActionCount()
	ep := &Episode[S]{}
	s := ep.Start(env)
	var history []step[S]
	for ep.Running() {
		mc.values.GetOrInit(s)
		a := mc.ChooseAction(s, n)
		s2, r, done, _ := env.Step(a)
		history = append(history, step[S]{state: s, action: a, reward: r})
		ep.Advance(s2, r, done)
		s = s2
	}

	mc.learn(history)
	klog.V(2).InfoS("Episode finished", "agent", "monte_carlo", "steps", ep.Steps,
		"return", ep.Return, "reward", ep.LastReward, "epsilon", mc.epsilon)
	mc.endEpisode()
	return ep.Results()
}

// learn propagates discounted returns backward through the episode.
func (mc *MonteCarlo[S]) learn(history []step[S]) {
	first := make(map[stateAction[S]]int, len(history))
	for t := len(history) - 1; t >= 0; t-- {
		first[stateAction[S]{history[t].state, history[t].action}] = t
	}

	g := 0.0
	for t := len(history) - 1; t >= 0; t-- {
		st := history[t]
		g = st.reward + mc.cfg.Gamma*g
		key := stateAction[S]{st.state, st.action}
		if first[key] != t {
			continue
		}
		mc.returns[key]++
		qs := mc.values.GetOrInit(st.state)
		qs[st.action] += (g - qs[st.action]) / float64(mc.returns[key])
	}
}
