// Package grid_world implements the BasicGridWorld environment family: a small
// square grid holding a player, a goal, a pit and a wall. The player moves one
// cell per step; the goal and the pit end the episode, the wall blocks movement.
package grid_world

import (
	"math/rand"

	"rlgym/reinforcement"
)

// Position is a grid cell. Row 0 is the top row when rendered.
type Position struct {
	Row, Col int
}

// State is the full board configuration. All four positions are part of the
// state's identity, so states of the randomized variants stay Markov.
type State struct {
	Player, Goal, Pit, Wall Position
}

// Vector flattens the state into an observation for function approximation.
func (s State) Vector() []float64 {
	return []float64{
		float64(s.Player.Row), float64(s.Player.Col),
		float64(s.Goal.Row), float64(s.Goal.Col),
		float64(s.Pit.Row), float64(s.Pit.Col),
		float64(s.Wall.Row), float64(s.Wall.Col),
	}
}

const (
	// Cell types, for rendering.
	PLAYER = 'P'
	GOAL   = '+'
	PIT    = '-'
	WALL   = 'W'
	EMPTY  = 'o'

	// Actions
	UP    = 0
	DOWN  = 1
	LEFT  = 2
	RIGHT = 3

	NUM_ACTIONS = 4

	// Rewards
	GOAL_REWARD = 10
	PIT_REWARD  = -10
	STEP_REWARD = -1

	// GridSize is the width and height of the board.
	GridSize = 4
	// DefaultMaxSteps bounds episode length; reaching it truncates the episode.
	DefaultMaxSteps = 50
)

// The layout used for every piece that is not randomized by the variant.
var (
	defaultPlayer = Position{Row: 0, Col: 1}
	defaultWall   = Position{Row: 2, Col: 2}
	defaultPit    = Position{Row: 1, Col: 1}
	defaultGoal   = Position{Row: 3, Col: 3}
)

// ActionToString names an action.
func ActionToString(action int) string {
	switch action {
	case UP:
		return "up"
	case DOWN:
		return "down"
	case LEFT:
		return "left"
	case RIGHT:
		return "right"
	}
	return "unknown"
}

// GridWorld is a single BasicGridWorld instance. It is not safe for concurrent use.
type GridWorld struct {
	kind     EnvironmentType
	size     int
	maxSteps int
	steps    int
	state    State
	rng      *rand.Rand
}

// NewGridWorld returns an environment of the passed variant. Its board is laid out
// on Reset.
func NewGridWorld(kind EnvironmentType, seed int64, maxSteps int) *GridWorld {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	gw := &GridWorld{
		kind:     kind,
		size:     GridSize,
		maxSteps: maxSteps,
		rng:      rand.New(rand.NewSource(seed)),
	}
	gw.Reset()
	return gw
}

func (gw *GridWorld) Kind() EnvironmentType {
	return gw.kind
}

// State returns the current board.
func (gw *GridWorld) State() State {
	return gw.state
}

func (gw *GridWorld) ActionCount() int {
	return NUM_ACTIONS
}

// Reset lays out a new board per the variant and returns it. Randomized pieces
// never share a cell with another piece.
func (gw *GridWorld) Reset() State {
	gw.steps = 0
	taken := map[Position]bool{}
	place := func(randomize bool, fixed Position) Position {
		if !randomize && !taken[fixed] {
			taken[fixed] = true
			return fixed
		}
		pos := gw.randomFree(taken)
		taken[pos] = true
		return pos
	}

	// Fixed pieces first, so randomized ones avoid them.
	s := State{}
	s.Wall = place(gw.kind == AllRandom, defaultWall)
	if gw.kind < RandomPlayerGoalAndPit {
		s.Pit = place(false, defaultPit)
	}
	if gw.kind < RandomPlayerAndGoal {
		s.Goal = place(false, defaultGoal)
	}
	if gw.kind >= RandomPlayerGoalAndPit {
		s.Pit = place(true, defaultPit)
	}
	if gw.kind >= RandomPlayerAndGoal {
		s.Goal = place(true, defaultGoal)
	}
	s.Player = place(true, defaultPlayer)

	gw.state = s
	return s
}

func (gw *GridWorld) randomFree(taken map[Position]bool) Position {
	for {
		pos := Position{Row: gw.rng.Intn(gw.size), Col: gw.rng.Intn(gw.size)}
		if !taken[pos] {
			return pos
		}
	}
}

// Step moves the player. Moves into the wall or off the board leave the player in
// place. Entering the goal or the pit ends the episode; so does exhausting the step
// budget, which is reported as truncation.
func (gw *GridWorld) Step(action int) (State, float64, bool, reinforcement.Info) {
	gw.steps++
	next := gw.move(gw.state.Player, action)
	if next != gw.state.Wall {
		gw.state.Player = next
	}

	switch gw.state.Player {
	case gw.state.Goal:
		return gw.state, GOAL_REWARD, true, reinforcement.Info{Event: "goal"}
	case gw.state.Pit:
		return gw.state, PIT_REWARD, true, reinforcement.Info{Event: "pit"}
	}

	if gw.steps >= gw.maxSteps {
		return gw.state, STEP_REWARD, true, reinforcement.Info{Truncated: true, Event: "limit"}
	}
	return gw.state, STEP_REWARD, false, reinforcement.Info{}
}

func (gw *GridWorld) move(pos Position, action int) Position {
	switch action {
	case UP:
		pos.Row--
	case DOWN:
		pos.Row++
	case LEFT:
		pos.Col--
	case RIGHT:
		pos.Col++
	}
	if pos.Row < 0 || pos.Row >= gw.size || pos.Col < 0 || pos.Col >= gw.size {
		return gw.state.Player
	}
	return pos
}

// CellType returns the piece at pos, for rendering.
func (s State) CellType(pos Position) rune {
	switch pos {
	case s.Player:
		return PLAYER
	case s.Goal:
		return GOAL
	case s.Pit:
		return PIT
	case s.Wall:
		return WALL
	}
	return EMPTY
}
