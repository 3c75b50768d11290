package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DoneIndices returns every numAgents-th index among the instances
// whose done flag is set. Instances are laid out as contiguous groups
// of numAgents agents which share a done flag, so one representative
// index per finished group is returned.
func DoneIndices(dones []float64, numAgents int) []int {
	if numAgents <= 0 {
		panic(fmt.Sprintf("doneIndices: numAgents must be positive, have %v",
			numAgents))
	}
	all := AllDoneIndices(dones)
	indices := make([]int, 0, (len(all)+numAgents-1)/numAgents)
	for k := 0; k < len(all); k += numAgents {
		indices = append(indices, all[k])
	}
	return indices
}

// AllDoneIndices returns the indices of all instances whose done flag
// is set
func AllDoneIndices(dones []float64) []int {
	indices := make([]int, 0)
	for i, d := range dones {
		if d != 0 {
			indices = append(indices, i)
		}
	}
	return indices
}

// RNNState is the recurrent state of a policy across all environment
// instances, owned by the rollout that uses it. Each matrix has one row
// per instance.
type RNNState struct {
	states []*mat.Dense
}

// NewRNNState returns an RNNState holding copies of initial
func NewRNNState(initial []*mat.Dense) *RNNState {
	r := &RNNState{}
	r.Set(initial)
	return r
}

// States returns the current states. The returned matrices must not be
// modified.
func (r *RNNState) States() []*mat.Dense {
	return r.states
}

// Set replaces the states with copies of states
func (r *RNNState) Set(states []*mat.Dense) {
	r.states = make([]*mat.Dense, len(states))
	for i, s := range states {
		r.states[i] = mat.DenseCopyOf(s)
	}
}

// ResetRows zeroes the state rows of the given instances, leaving
// other instances untouched
func (r *RNNState) ResetRows(envIDs []int) {
	for _, s := range r.states {
		_, c := s.Dims()
		zeros := make([]float64, c)
		for _, id := range envIDs {
			s.SetRow(id, zeros)
		}
	}
}
