package server

import (
	"context"
	"sort"
	"sync"

	"rlgym/reinforcement"
	"rlgym/server/cell_views"
	"rlgym/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// AgentStatus is the training progress of one agent.
type AgentStatus struct {
	Latest reinforcement.Round `json:"latest"`
	// Rewards holds the mean evaluation reward of every round so far.
	Rewards []float64 `json:"rewards"`
	Done    bool      `json:"done"`
	Reason  string    `json:"reason,omitempty"`
}

// Snapshot is what subscribers are sent: the latest round of every agent, and the
// element updates bringing every values grid up to date. Both are idempotent.
type Snapshot struct {
	Rounds []reinforcement.Round `json:"rounds"`
	Values []fastview.EleUpdate  `json:"values"`
}

// Board aggregates round and value updates from concurrently training agents and
// fans snapshots out to subscribers. Slow subscribers only miss intermediate
// snapshots; they never block training.
type Board struct {
	mu     sync.RWMutex
	agents map[string]*AgentStatus
	order  []string
	grids  map[string]cell_views.Cells
	view   *cell_views.ValuesGrid
	subs   map[chan Snapshot]struct{}
}

func NewBoard() *Board {
	return &Board{
		agents: map[string]*AgentStatus{},
		grids:  map[string]cell_views.Cells{},
		view:   cell_views.NewValuesGrid("valuesgrid"),
		subs:   map[chan Snapshot]struct{}{},
	}
}

// ValuesView returns the view the board's element updates target.
func (b *Board) ValuesView() *cell_views.ValuesGrid {
	return b.view
}

// Run consumes rounds until the source closes or done is closed. Multiple sources
// can be merged with channerics.Merge beforehand.
func (b *Board) Run(done <-chan struct{}, rounds <-chan reinforcement.Round) {
	for round := range channerics.OrDone(done, rounds) {
		b.Observe(round)
	}
}

// RunValues consumes value grids until the source closes or done is closed.
func (b *Board) RunValues(done <-chan struct{}, grids <-chan cell_views.Cells) {
	for cells := range channerics.OrDone(done, grids) {
		b.ObserveValues(cells)
	}
}

// ObserveValues replaces an agent's values grid and notifies subscribers.
func (b *Board) ObserveValues(cells cell_views.Cells) {
	b.mu.Lock()
	b.status(cells.Agent)
	b.grids[cells.Agent] = cells
	snapshot := b.snapshot()
	b.mu.Unlock()

	b.publish(snapshot)
}

// Observe records a round and notifies subscribers.
func (b *Board) Observe(round reinforcement.Round) {
	b.mu.Lock()
	st := b.status(round.Agent)
	st.Latest = round
	st.Rewards = append(st.Rewards, round.MeanReward)
	snapshot := b.snapshot()
	b.mu.Unlock()

	b.publish(snapshot)
}

// Finish marks an agent's training as ended.
func (b *Board) Finish(res reinforcement.Result) {
	b.mu.Lock()
	st := b.status(res.Agent)
	st.Done = true
	st.Reason = res.Reason.String()
	b.mu.Unlock()
}

// must hold the write lock
func (b *Board) status(agent string) *AgentStatus {
	st, ok := b.agents[agent]
	if !ok {
		st = &AgentStatus{}
		b.agents[agent] = st
		b.order = append(b.order, agent)
		sort.Strings(b.order)
	}
	return st
}

// must hold a lock
func (b *Board) rounds() []reinforcement.Round {
	rounds := make([]reinforcement.Round, 0, len(b.order))
	for _, agent := range b.order {
		rounds = append(rounds, b.agents[agent].Latest)
	}
	return rounds
}

// must hold a lock
func (b *Board) snapshot() Snapshot {
	snapshot := Snapshot{Rounds: b.rounds()}
	for _, agent := range b.order {
		if cells, ok := b.grids[agent]; ok {
			snapshot.Values = append(snapshot.Values, b.view.Update(cells)...)
		}
	}
	return snapshot
}

func (b *Board) publish(snapshot Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		// Replace any unread snapshot with the newer one.
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- snapshot:
		default:
		}
	}
}

// Rounds returns the latest round of every agent, ordered by agent name.
func (b *Board) Rounds() []reinforcement.Round {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rounds()
}

// Snapshot returns what a new subscriber would be sent.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

// Grids returns the latest values grid of every agent that reported one, ordered
// by agent name.
func (b *Board) Grids() []cell_views.Cells {
	b.mu.RLock()
	defer b.mu.RUnlock()
	grids := make([]cell_views.Cells, 0, len(b.grids))
	for _, agent := range b.order {
		if cells, ok := b.grids[agent]; ok {
			grids = append(grids, cells)
		}
	}
	return grids
}

// Status returns a copy of every agent's progress.
func (b *Board) Status() map[string]AgentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	status := make(map[string]AgentStatus, len(b.agents))
	for agent, st := range b.agents {
		cp := *st
		cp.Rewards = append([]float64(nil), st.Rewards...)
		status[agent] = cp
	}
	return status
}

// Results returns the reward curves recorded so far, in the shape the plotting
// package consumes.
func (b *Board) Results() []reinforcement.Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	results := make([]reinforcement.Result, 0, len(b.order))
	for _, agent := range b.order {
		st := b.agents[agent]
		results = append(results, reinforcement.Result{
			Agent:      agent,
			Rewards:    append([]float64(nil), st.Rewards...),
			Iterations: st.Latest.Iteration,
			Steps:      st.Latest.Steps,
		})
	}
	return results
}

// Subscribe returns a channel of snapshots, primed with the current one. The
// channel is closed once ctx ends.
func (b *Board) Subscribe(ctx context.Context) <-chan Snapshot {
	sub := make(chan Snapshot, 1)

	b.mu.Lock()
	if len(b.order) > 0 {
		sub <- b.snapshot()
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub)
		b.mu.Unlock()
	}()
	return sub
}
