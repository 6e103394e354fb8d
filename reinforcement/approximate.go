package reinforcement

import (
	"math"
	"math/rand"

	"rlgym/features"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Model approximates action-values from an observation vector.
type Model interface {
	// Predict returns one value per action.
	Predict(x []float64) []float64
	// Update moves the value of action toward target.
	Update(x []float64, action int, target float64)
}

// LinearModel is a linear action-value approximator over transformed features:
// q(x, a) = w_a · phi(x), trained with semi-gradient descent.
type LinearModel struct {
	features     features.Transformer
	weights      *mat.Dense // actions x features
	learningRate float64
}

func NewLinearModel(phi features.Transformer, actions int, learningRate float64) *LinearModel {
	return &LinearModel{
		features:     phi,
		weights:      mat.NewDense(actions, phi.Dim(), nil),
		learningRate: learningRate,
	}
}

// Predict returns the estimated value of every action for observation x.
func (m *LinearModel) Predict(x []float64) []float64 {
	phi := mat.NewVecDense(m.features.Dim(), m.features.Transform(x))
	actions, _ := m.weights.Dims()
	values := mat.NewVecDense(actions, nil)
	values.MulVec(m.weights, phi)
	return mat.Col(nil, 0, values)
}

// Update takes one gradient step moving q(x, action) toward target.
func (m *LinearModel) Update(x []float64, action int, target float64) {
	phi := mat.NewVecDense(m.features.Dim(), m.features.Transform(x))
	row := m.weights.RowView(action)
	estimate := mat.Dot(row, phi)

	// ∇w_a = lr * (target - estimate) * phi
	scale := m.learningRate * (target - estimate)
	updated := mat.NewVecDense(row.Len(), nil)
	updated.AddScaledVec(row, scale, phi)
	m.weights.SetRow(action, mat.Col(nil, 0, updated))
}

// ApproximateQLearning is Q-learning with a function approximator in place of the
// value table. Observations are turned into vectors with the featurize function.
type ApproximateQLearning[S comparable] struct {
	cfg       AgentConfig
	epsilon   float64
	model     Model
	featurize func(S) []float64
	rng       *rand.Rand

	randomActions int
	greedyActions int
	episodes      int
}

func NewApproximateQLearning[S comparable](
	cfg AgentConfig,
	model Model,
	featurize func(S) []float64,
) *ApproximateQLearning[S] {
	return &ApproximateQLearning[S]{
		cfg:       cfg,
		epsilon:   cfg.Epsilon,
		model:     model,
		featurize: featurize,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Config returns the hyperparameters the agent was built with.
func (aq *ApproximateQLearning[S]) Config() AgentConfig {
	return aq.cfg
}

// chooseAction is epsilon-greedy over already predicted values.
func (aq *ApproximateQLearning[S]) chooseAction(predicted []float64) int {
	r := aq.rng.Float64()
	if r < aq.epsilon {
		aq.randomActions++
		action := aq.rng.Intn(len(predicted))
		klog.V(3).InfoS("Taking a random action", "action", action, "r", r, "epsilon", aq.epsilon)
		return action
	}
	aq.greedyActions++
	action := floats.MaxIdx(predicted)
	klog.V(3).InfoS("Taking a greedy action", "action", action)
	return action
}

// SingleEpisodeTrain runs one episode, fitting the model toward the Q-learning
// target after every transition, and decays epsilon once it is done.
func (aq *ApproximateQLearning[S]) SingleEpisodeTrain(env Environment[S]) (int, float64, float64) {
	ep := &Episode[S]{}
	s := ep.Start(env)
	var actions []int
	for ep.Running() {
		x := aq.featurize(s)
		ys := aq.model.Predict(x)
		a := aq.chooseAction(ys)
		actions = append(actions, a)
		s2, r, done, info := env.Step(a)

		g := r
		if !done || info.Truncated {
			g = r + aq.cfg.Gamma*floats.Max(aq.model.Predict(aq.featurize(s2)))
		}
		klog.V(3).InfoS("Observed transition", "step", ep.Steps, "predicted", ys, "target", g)
		aq.model.Update(x, a, g)

		ep.Advance(s2, r, done)
		s = s2
	}

	aq.episodes++
	if aq.epsilon > aq.cfg.EpsilonMin {
		aq.epsilon = math.Max(aq.cfg.EpsilonMin, aq.epsilon*aq.cfg.EpsilonDecay)
	}
	klog.V(2).InfoS("Episode finished", "agent", "qlearning_fa", "steps", ep.Steps,
		"return", ep.Return, "reward", ep.LastReward, "actions", actions)
	return ep.Results()
}

// OptimalAction returns the action with the highest predicted value.
func (aq *ApproximateQLearning[S]) OptimalAction(s S, actionCount int) int {
	return floats.MaxIdx(aq.model.Predict(aq.featurize(s)))
}

func (aq *ApproximateQLearning[S]) Epsilon() float64 {
	return aq.epsilon
}

func (aq *ApproximateQLearning[S]) ActionCounts() (random, greedy int) {
	return aq.randomActions, aq.greedyActions
}
