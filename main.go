/*
rlgym trains classical reinforcement learning agents on the BasicGridWorld family
of environments and reports how quickly each converges. Tabular agents (Q-learning,
SARSA, Monte Carlo) and a linear function approximator can be trained alone, or
compared side by side with progress served to a browser.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rlgym/grid_world"
	"rlgym/reinforcement"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// options are the flags shared by the commands. Flags override the config file.
type options struct {
	configPath string
	envName    string
	agentName  string
	agents     []string
	addr       string
	chartPath  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "rlgym",
		Short:         "Train and compare reinforcement learning agents on grid worlds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a training config yaml")
	root.PersistentFlags().StringVar(&opts.envName, "env", "", "environment name, see 'rlgym envs'")
	root.PersistentFlags().StringVar(&opts.chartPath, "chart", "", "write a reward chart html to this path")

	root.AddCommand(
		envsCommand(),
		trainCommand(opts),
		compareCommand(opts),
	)
	return root
}

func envsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List the registered environments",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range grid_world.EnvList() {
				kind, _ := grid_world.Lookup(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-24s %d episodes/round\n", name, kind, kind.Iterations())
			}
		},
	}
}

func trainCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a single agent until convergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.agentName, "agent", "", "agent: "+strings.Join(agentNames, ", "))
	return cmd
}

func compareCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Train several agents concurrently and compare their convergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.agents, "agents", agentNames, "agents to compare")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "serve training progress on this address, e.g. :8080")
	return cmd
}

// experiment is the resolved configuration of a run.
type experiment struct {
	cfg      *reinforcement.TrainingConfig
	envName  string
	kind     grid_world.EnvironmentType
	agentCfg reinforcement.AgentConfig
	convCfg  reinforcement.ConvergenceConfig
	maxSteps int
}

func loadExperiment(opts *options) (*experiment, error) {
	cfg := &reinforcement.TrainingConfig{}
	if opts.configPath != "" {
		var err error
		if cfg, err = reinforcement.FromYaml(opts.configPath); err != nil {
			return nil, err
		}
	}

	envName := opts.envName
	if envName == "" {
		envName = cfg.GetAlgorithmOrDefault("env", "BasicGridWorld-v0")
	}
	kind, err := grid_world.Lookup(envName)
	if err != nil {
		return nil, err
	}

	return &experiment{
		cfg:      cfg,
		envName:  envName,
		kind:     kind,
		agentCfg: cfg.AgentConfig(),
		convCfg:  cfg.ConvergenceConfig(kind.Iterations()),
		maxSteps: int(cfg.GetHyperParamOrDefault("max_steps", grid_world.DefaultMaxSteps)),
	}, nil
}

func printResult(cmd *cobra.Command, res reinforcement.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-14s rounds=%-3d steps=%-8d final mean reward=%.3f\n",
		res.Agent, res.Reason, res.Iterations, res.Steps, lastReward(res))
}

func lastReward(res reinforcement.Result) float64 {
	if len(res.Rewards) == 0 {
		return 0
	}
	return res.Rewards[len(res.Rewards)-1]
}
