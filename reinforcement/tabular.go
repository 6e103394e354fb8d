package reinforcement

import (
	"math"
	"math/rand"

	"k8s.io/klog/v2"
)

// AgentConfig holds the agent hyper-parameters. Only epsilon changes over an
// agent's lifetime, decaying toward EpsilonMin after each episode.
type AgentConfig struct {
	// Epsilon is the initial exploration probability.
	Epsilon float64
	// EpsilonDecay multiplies epsilon after every episode.
	EpsilonDecay float64
	// EpsilonMin is the floor for epsilon.
	EpsilonMin float64
	// Gamma is the discount factor.
	Gamma float64
	// Alpha is the base learning rate.
	Alpha float64
	// Seed seeds the agent's random source.
	Seed int64
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Epsilon:      1.0,
		EpsilonDecay: 0.99,
		EpsilonMin:   0.05,
		Gamma:        0.9,
		Alpha:        0.1,
	}
}

// tabular is the epsilon-greedy core shared by the table-driven agents: the
// value table, the soft update counts and the exploration schedule.
type tabular[S comparable] struct {
	cfg     AgentConfig
	epsilon float64
	values  *ValueTable[S]
	counts  *UpdateCounts[S]
	rng     *rand.Rand

	randomActions int
	greedyActions int
	episodes      int
}

func newTabular[S comparable](cfg AgentConfig, actions int) *tabular[S] {
	return &tabular[S]{
		cfg:     cfg,
		epsilon: cfg.Epsilon,
		values:  NewValueTable[S](actions),
		counts:  NewUpdateCounts[S](actions),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// ChooseAction selects an action for s epsilon-greedily: with probability epsilon
// a uniformly random action in [0,n), otherwise OptimalAction.
func (t *tabular[S]) ChooseAction(s S, n int) (action int) {
	r := t.rng.Float64()
	if r < t.epsilon {
		action = t.rng.Intn(n)
		t.randomActions++
		klog.V(3).InfoS("Taking a random action", "action", action, "r", r, "epsilon", t.epsilon)
		return
	}
	t.greedyActions++
	action = t.OptimalAction(s, n)
	klog.V(3).InfoS("Taking a greedy action", "action", action)
	return
}

// OptimalAction returns the first maximal action of s. States never seen have no
// value information yet, so a uniformly random action is returned for them.
func (t *tabular[S]) OptimalAction(s S, n int) int {
	if a, ok := t.values.Argmax(s); ok {
		return a
	}
	return t.rng.Intn(n)
}

// endEpisode applies the per-episode epsilon decay, floored at EpsilonMin.
func (t *tabular[S]) endEpisode() {
	t.episodes++
	if t.epsilon > t.cfg.EpsilonMin {
		t.epsilon = math.Max(t.cfg.EpsilonMin, t.epsilon*t.cfg.EpsilonDecay)
	}
}

func (t *tabular[S]) Epsilon() float64 {
	return t.epsilon
}

func (t *tabular[S]) Episodes() int {
	return t.episodes
}

// ActionCounts returns how many actions were explored and how many were greedy.
func (t *tabular[S]) ActionCounts() (random, greedy int) {
	return t.randomActions, t.greedyActions
}

// Values exposes the agent's value table.
func (t *tabular[S]) Values() *ValueTable[S] {
	return t.values
}

// LearningRate returns the step size the next update of (s,a) will use.
func (t *tabular[S]) LearningRate(s S, a int) float64 {
	return t.cfg.Alpha / t.counts.Count(s, a)
}

// Policy returns the greedy action of every visited state.
func (t *tabular[S]) Policy() map[S]int {
	policy := make(map[S]int, t.values.Len())
	t.values.Visit(func(s S, _ []float64) {
		policy[s], _ = t.values.Argmax(s)
	})
	return policy
}

// StateValues returns V(s) = max_a Q(s,a) for every visited state.
func (t *tabular[S]) StateValues() map[S]float64 {
	vals := make(map[S]float64, t.values.Len())
	t.values.Visit(func(s S, _ []float64) {
		vals[s] = t.values.Max(s)
	})
	return vals
}

func (t *tabular[S]) SaveModel(path string) error {
	return ErrPersistenceUnsupported
}

func (t *tabular[S]) LoadModel(path string) error {
	return ErrPersistenceUnsupported
}
