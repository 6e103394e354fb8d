package reinforcement

import "gonum.org/v1/gonum/floats"

// ValueTable maps each visited state to its vector of action-values. Vectors
// are zero-initialized on first visit and always have length ActionCount.
// Entries are never removed.
type ValueTable[S comparable] struct {
	actions int
	values  map[S][]float64
}

// NewValueTable returns an empty table whose vectors have the passed length.
func NewValueTable[S comparable](actions int) *ValueTable[S] {
	return &ValueTable[S]{
		actions: actions,
		values:  map[S][]float64{},
	}
}

func (vt *ValueTable[S]) ActionCount() int {
	return vt.actions
}

// Get returns the action-values of s and whether s has been visited.
func (vt *ValueTable[S]) Get(s S) (vals []float64, ok bool) {
	vals, ok = vt.values[s]
	return
}

// GetOrInit returns the action-values for s, inserting a zero vector for an unseen state.
func (vt *ValueTable[S]) GetOrInit(s S) []float64 {
	vals, ok := vt.values[s]
	if !ok {
		vals = make([]float64, vt.actions)
		vt.values[s] = vals
	}
	return vals
}

// Max returns the largest action-value of s, inserting s if unseen.
func (vt *ValueTable[S]) Max(s S) float64 {
	return floats.Max(vt.GetOrInit(s))
}

// Argmax returns the index of the first maximal action-value of s. The boolean
// is false when s was never visited, in which case no index is meaningful.
func (vt *ValueTable[S]) Argmax(s S) (int, bool) {
	vals, ok := vt.values[s]
	if !ok {
		return 0, false
	}
	return floats.MaxIdx(vals), true
}

// Len returns the number of visited states.
func (vt *ValueTable[S]) Len() int {
	return len(vt.values)
}

// Visit calls fn for every visited state. Order is unspecified.
func (vt *ValueTable[S]) Visit(fn func(s S, vals []float64)) {
	for s, vals := range vt.values {
		fn(s, vals)
	}
}

// UpdateCounts tracks a soft visit count per state-action pair. Counts start at 1
// and are bumped by a fractional increment per update, so that alpha/count decays
// slower than a pure harmonic schedule.
type UpdateCounts[S comparable] struct {
	actions int
	counts  map[S][]float64
}

// CountIncrement is the amount added to a state-action count after each update.
const CountIncrement = 0.005

func NewUpdateCounts[S comparable](actions int) *UpdateCounts[S] {
	return &UpdateCounts[S]{
		actions: actions,
		counts:  map[S][]float64{},
	}
}

// GetOrInit returns the counts for s, initializing every action to 1 on first visit.
func (uc *UpdateCounts[S]) GetOrInit(s S) []float64 {
	c, ok := uc.counts[s]
	if !ok {
		c = make([]float64, uc.actions)
		for i := range c {
			c[i] = 1
		}
		uc.counts[s] = c
	}
	return c
}

// Count returns the count of (s,a) without inserting; unseen pairs report 1.
func (uc *UpdateCounts[S]) Count(s S, a int) float64 {
	if c, ok := uc.counts[s]; ok {
		return c[a]
	}
	return 1
}

// Increment adds delta to the count of (s,a).
func (uc *UpdateCounts[S]) Increment(s S, a int, delta float64) {
	uc.GetOrInit(s)[a] += delta
}
