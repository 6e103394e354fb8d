package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rlgym/grid_world"
	"rlgym/plotting"
	"rlgym/reinforcement"
	"rlgym/server"
	"rlgym/server/cell_views"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// runTrain trains one agent to convergence and shows what it learned.
func runTrain(ctx context.Context, cmd *cobra.Command, opts *options) error {
	exp, err := loadExperiment(opts)
	if err != nil {
		return err
	}
	agentName := opts.agentName
	if agentName == "" {
		agentName = exp.cfg.GetAlgorithmOrDefault("agent", "qlearning")
	}

	env := grid_world.NewGridWorld(exp.kind, exp.agentCfg.Seed, exp.maxSteps)
	agent, err := newAgent(agentName, exp.agentCfg, env)
	if err != nil {
		return err
	}

	trainCtx, cancel, err := exp.cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	klog.InfoS("Training", "agent", agentName, "env", exp.envName, "episodesPerRound", exp.convCfg.TrainEpisodes)
	res, err := reinforcement.Converge(trainCtx, agentName, agent, env, exp.convCfg, nil)
	printResult(cmd, res)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("train %s: %w", agentName, err)
	}

	out := cmd.OutOrStdout()
	env.Reset()
	env.Render(out)
	if view, ok := agent.(tabularView); ok {
		env.ShowValues(out, view.StateValues())
		env.ShowPolicy(out, view.Policy())
	}

	if opts.chartPath != "" {
		return plotting.WriteFile(opts.chartPath, exp.envName, []reinforcement.Result{res})
	}
	return nil
}

// runCompare trains every requested agent concurrently, each on its own
// environment, optionally serving their progress and values grids while they train.
func runCompare(ctx context.Context, cmd *cobra.Command, opts *options) error {
	exp, err := loadExperiment(opts)
	if err != nil {
		return err
	}

	factory := grid_world.NewFactory(exp.kind, exp.agentCfg.Seed, exp.maxSteps)
	envs := make([]*grid_world.GridWorld, len(opts.agents))
	agents := make([]gridAgent, len(opts.agents))
	for i, name := range opts.agents {
		envs[i] = factory.CreateEnvironment()
		if agents[i], err = newAgent(name, exp.agentCfg, envs[i]); err != nil {
			return err
		}
	}

	trainCtx, cancel, err := exp.cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	board := server.NewBoard()
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	served := make(chan error, 1)
	if opts.addr != "" {
		go func() {
			served <- server.NewServer(opts.addr, exp.envName, board).Serve(serveCtx)
		}()
	} else {
		close(served)
	}

	results := make([]reinforcement.Result, len(agents))
	progress := make([]<-chan reinforcement.Round, len(agents))
	values := make([]<-chan cell_views.Values, len(agents))
	group, groupCtx := errgroup.WithContext(trainCtx)
	for i := range agents {
		i := i
		rounds := make(chan reinforcement.Round)
		grids := make(chan cell_views.Values)
		progress[i] = rounds
		values[i] = grids
		group.Go(func() error {
			defer close(rounds)
			defer close(grids)
			// Called between rounds on this goroutine, so the agent and env are idle.
			report := func(ctx context.Context, round reinforcement.Round) {
				select {
				case rounds <- round:
				case <-ctx.Done():
				}
				if opts.addr == "" {
					return
				}
				if vals, ok := valuesOf(opts.agents[i], agents[i], envs[i]); ok {
					select {
					case grids <- vals:
					case <-ctx.Done():
					}
				}
			}
			res, err := reinforcement.Converge(groupCtx, opts.agents[i], agents[i], envs[i], exp.convCfg, report)
			results[i] = res
			board.Finish(res)
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("train %s: %w", opts.agents[i], err)
			}
			return nil
		})
	}

	var boards sync.WaitGroup
	boards.Add(2)
	go func() {
		defer boards.Done()
		board.Run(ctx.Done(), channerics.Merge(ctx.Done(), progress...))
	}()
	go func() {
		defer boards.Done()
		merged := channerics.Merge(ctx.Done(), values...)
		board.RunValues(ctx.Done(), channerics.Convert(ctx.Done(), merged, cell_views.Convert))
	}()

	trainErr := group.Wait()
	boards.Wait()
	for _, res := range results {
		printResult(cmd, res)
	}
	if trainErr != nil {
		return trainErr
	}

	if opts.chartPath != "" {
		if err := plotting.WriteFile(opts.chartPath, exp.envName, results); err != nil {
			return err
		}
	}

	if opts.addr != "" {
		klog.InfoS("Training finished, serving results until interrupted", "addr", opts.addr)
	}
	return <-served
}
