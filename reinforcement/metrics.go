package reinforcement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rlgym",
			Name:      "rounds_total",
			Help:      "Train/evaluate rounds completed",
		},
		[]string{"agent"},
	)

	metricSteps = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rlgym",
			Name:      "training_steps",
			Help:      "Cumulative learning steps",
		},
		[]string{"agent"},
	)

	metricMeanReward = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rlgym",
			Name:      "eval_mean_reward",
			Help:      "Mean final reward of the last evaluation round",
		},
		[]string{"agent"},
	)

	metricEpsilon = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rlgym",
			Name:      "epsilon",
			Help:      "Current exploration probability",
		},
		[]string{"agent"},
	)

	metricActions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rlgym",
			Name:      "actions",
			Help:      "Actions taken while training, by kind (random or greedy)",
		},
		[]string{"agent", "kind"},
	)
)

func observeRound(round Round, agent interface{}) {
	metricRounds.WithLabelValues(round.Agent).Inc()
	metricSteps.WithLabelValues(round.Agent).Set(float64(round.Steps))
	metricMeanReward.WithLabelValues(round.Agent).Set(round.MeanReward)
	metricEpsilon.WithLabelValues(round.Agent).Set(round.Epsilon)
	if ac, ok := agent.(ActionCounter); ok {
		random, greedy := ac.ActionCounts()
		metricActions.WithLabelValues(round.Agent, "random").Set(float64(random))
		metricActions.WithLabelValues(round.Agent, "greedy").Set(float64(greedy))
	}
}
