package reinforcement

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of a config document: a kind and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes algorithmic and training parameters outside of code.
// It holds standard RL params like learning rates, gamma, epsilons for agent policy
// behavior, plus the convergence criteria of the training loop.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `mapstructure:"hyperParams" yaml:"hyperparams"`
	// Algorithm selects the agent and environment, e.g. {agent: qlearning, env: BasicGridWorld-v0}.
	Algorithm map[string]string `mapstructure:"algorithm" yaml:"algorithm"`
	// TrainingDeadline is a fixed duration describing when to terminate training.
	TrainingDeadline map[string]string `mapstructure:"trainingDeadline" yaml:"trainingdeadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// GetAlgorithmOrDefault returns an algorithm selector value, e.g. "agent" or "env".
func (cfg *TrainingConfig) GetAlgorithmOrDefault(key, defaultVal string) string {
	if val, ok := cfg.Algorithm[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// AgentConfig returns the agent parameters, falling back to the defaults of the
// tabular agents for anything unspecified.
func (cfg *TrainingConfig) AgentConfig() AgentConfig {
	def := DefaultAgentConfig()
	return AgentConfig{
		Epsilon:      cfg.GetHyperParamOrDefault("epsilon", def.Epsilon),
		EpsilonDecay: cfg.GetHyperParamOrDefault("epsilon_decay", def.EpsilonDecay),
		EpsilonMin:   cfg.GetHyperParamOrDefault("epsilon_min", def.EpsilonMin),
		Gamma:        cfg.GetHyperParamOrDefault("gamma", def.Gamma),
		Alpha:        cfg.GetHyperParamOrDefault("alpha", def.Alpha),
		Seed:         int64(cfg.GetHyperParamOrDefault("seed", float64(def.Seed))),
	}
}

// ConvergenceConfig returns the stop criteria of the training loop. The episode
// counts default to the passed per-environment iteration budget.
func (cfg *TrainingConfig) ConvergenceConfig(iterations int) ConvergenceConfig {
	def := DefaultConvergenceConfig(iterations)
	return ConvergenceConfig{
		TrainEpisodes: int(cfg.GetHyperParamOrDefault("train_episodes", float64(def.TrainEpisodes))),
		EvalEpisodes:  int(cfg.GetHyperParamOrDefault("eval_episodes", float64(def.EvalEpisodes))),
		GoalReward:    cfg.GetHyperParamOrDefault("goal_reward", def.GoalReward),
		Tolerance:     cfg.GetHyperParamOrDefault("tolerance", def.Tolerance),
		StopCount:     int(cfg.GetHyperParamOrDefault("stop_count", float64(def.StopCount))),
		MaxIterations: int(cfg.GetHyperParamOrDefault("max_iterations", float64(def.MaxIterations))),
	}
}

// FromYaml reads a training config. The outer document is read with viper, and its
// definition is re-serialized and decoded with yaml. Viper folds map keys to lower
// case, hence the lower case yaml tags on TrainingConfig.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode training def: %w", err)
	}

	return innerConfig, nil
}
