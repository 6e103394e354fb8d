package grid_world

import (
	"errors"
	"fmt"
	"sort"
)

// EnvironmentType selects which pieces are randomized on reset.
type EnvironmentType int

const (
	// RandomPlayer randomizes only the player's start.
	RandomPlayer EnvironmentType = iota
	// RandomPlayerAndGoal also randomizes the goal.
	RandomPlayerAndGoal
	// RandomPlayerGoalAndPit also randomizes the pit.
	RandomPlayerGoalAndPit
	// AllRandom randomizes every piece, including the wall.
	AllRandom
)

func (t EnvironmentType) String() string {
	switch t {
	case RandomPlayer:
		return "RandomPlayer"
	case RandomPlayerAndGoal:
		return "RandomPlayerAndGoal"
	case RandomPlayerGoalAndPit:
		return "RandomPlayerGoalAndPit"
	default:
		return "AllRandom"
	}
}

// Iterations is the per-round episode budget of the variant: the grid size raised
// to one more power for every randomized piece beyond the player.
func (t EnvironmentType) Iterations() int {
	iters := GridSize
	for i := RandomPlayer; i < t; i++ {
		iters *= GridSize
	}
	return iters
}

var registry = map[string]EnvironmentType{
	"BasicGridWorld-v0": RandomPlayer,
	"BasicGridWorld-v1": RandomPlayerAndGoal,
	"BasicGridWorld-v2": RandomPlayerGoalAndPit,
	"BasicGridWorld-v3": AllRandom,
}

// ErrUnknownEnvironment is returned by Make for unregistered names.
var ErrUnknownEnvironment = errors.New("unknown environment")

// EnvList returns the registered environment names, sorted.
func EnvList() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the variant registered under name.
func Lookup(name string) (EnvironmentType, error) {
	kind, ok := registry[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEnvironment, name, EnvList())
	}
	return kind, nil
}

// Factory creates environments of a fixed variant. Each created environment gets
// its own random source derived from Seed.
type Factory struct {
	Type     EnvironmentType
	Seed     int64
	MaxSteps int
	created  int64
}

func NewFactory(kind EnvironmentType, seed int64, maxSteps int) *Factory {
	return &Factory{Type: kind, Seed: seed, MaxSteps: maxSteps}
}

// CreateEnvironment returns a freshly reset environment.
func (f *Factory) CreateEnvironment() *GridWorld {
	f.created++
	return NewGridWorld(f.Type, f.Seed+f.created, f.MaxSteps)
}

// Make creates the environment registered under name, gym style.
func Make(name string, seed int64, maxSteps int) (*GridWorld, error) {
	kind, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return NewGridWorld(kind, seed, maxSteps), nil
}
