// Package loadbalance implements the weighted round-robin selector (spec
// §3 "Weighted Round-Robin Selector (C6)", §4.6): caller-side selection
// among a list of candidate endpoints, weight-proportional over long runs,
// safe under heavy concurrent use.
//
// Per-key state is kept in a map guarded by a narrow lock, taken only to
// find or create a key's state, rather than one global lock held across
// the whole operation.
package loadbalance

import (
	"sync"
	"sync/atomic"

	"github.com/kryptonrpc/export/internal/xerr"
)

// Candidate is one selectable endpoint with its weight. A weight of 0 is
// treated as equal-weight for the purposes of the uniform path, but is
// excluded from the weighted path's positive-weight subset (spec §4.6).
type Candidate struct {
	Key    string
	Weight int
}

// keyState keeps the uniform and weighted paths' counters independent
// (spec §9 Open Question #1): a key whose weights change over the
// service's lifetime, and so is selected via both paths at different
// times, must not have one path's advance perturb the other's.
type keyState struct {
	uniformSeq    uint64
	weightedIdx   uint64
	weightedCycle uint64
}

// Selector holds per-key selection state for one logical caller (spec
// §3: "Per-Method Selector State"). The zero value is not usable; use New.
type Selector struct {
	mu     sync.Mutex
	states map[string]*keyState
}

// New returns an empty Selector. Tests construct their own rather than
// sharing a process-wide default, so state from one test run cannot leak
// into another (spec §9: "the selector state map must be injectable").
func New() *Selector {
	return &Selector{states: map[string]*keyState{}}
}

// stateFor returns the state for key, creating it on first use. A racing
// double-create collapses to a single surviving state object (spec §4.6
// "State lifecycle"): the mutex makes this trivially linearisable, which
// is sufficient since state creation is rare relative to selection.
func (s *Selector) stateFor(key string) *keyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		st = &keyState{}
		s.states[key] = st
	}
	return st
}

// Select picks one of candidates for the given call identity key (spec
// §4.6). It panics if candidates is empty; callers must not invoke the
// selector with no endpoints to choose from.
func (s *Selector) Select(key string, candidates []Candidate) Candidate {
	if len(candidates) == 0 {
		panic(xerr.ErrSelectorEmpty)
	}

	maxWeight := 0
	allEqual := true
	for _, c := range candidates {
		if c.Weight != candidates[0].Weight {
			allEqual = false
		}
		if c.Weight > maxWeight {
			maxWeight = c.Weight
		}
	}
	if allEqual || maxWeight == 0 {
		return s.selectUniform(key, candidates)
	}
	return s.selectWeighted(key, candidates, maxWeight)
}

func (s *Selector) selectUniform(key string, candidates []Candidate) Candidate {
	st := s.stateFor(key)
	n := atomicIncr(&st.uniformSeq)
	i := int(n % uint64(len(candidates)))
	return candidates[i]
}

func (s *Selector) selectWeighted(key string, candidates []Candidate, maxWeight int) Candidate {
	positive := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Weight > 0 {
			positive = append(positive, c)
		}
	}
	st := s.stateFor(key)
	n := len(positive)

	for {
		idx := atomicIncr(&st.weightedIdx)
		i := int(idx % uint64(n))
		if i == 0 {
			atomicIncr(&st.weightedCycle)
		}
		c := atomic.LoadUint64(&st.weightedCycle) % uint64(maxWeight)
		if uint64(positive[i].Weight) > c {
			return positive[i]
		}
	}
}

// atomicIncr performs an atomic fetch-and-add that never surfaces a
// negative value: the counter is unsigned and wraps at 2^64, and callers
// only ever reduce it modulo a small positive bound (spec §4.6
// "Concurrency contract").
func atomicIncr(counter *uint64) uint64 {
	return atomic.AddUint64(counter, 1) - 1
}
