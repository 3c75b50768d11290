package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is
type SpecType int

const (
	Action SpecType = iota
	Observation
)

func (s SpecType) String() string {
	switch s {
	case Action:
		return "Action"
	default:
		return "Observation"
	}
}

// Spec tells the length and bounds of a single row of actions or
// observations in a vectorized environment
type Spec struct {
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
}

// NewSpec constructs a new environment specification. Both bounds must
// have the same length, which becomes the length of the specified row.
func NewSpec(t SpecType, lowerBound, upperBound []float64) Spec {
	if len(lowerBound) != len(upperBound) {
		panic(fmt.Sprintf("newSpec: lower bounds length %v must match "+
			"upper bounds length %v", len(lowerBound), len(upperBound)))
	}
	return Spec{
		Type:       t,
		LowerBound: mat.NewVecDense(len(lowerBound), lowerBound),
		UpperBound: mat.NewVecDense(len(upperBound), upperBound),
	}
}

// Len returns the number of elements in a row described by the Spec
func (s Spec) Len() int {
	return s.LowerBound.Len()
}

// Head returns a Spec describing only the first n elements of the row.
// It is used to describe the observation seen by a controller which
// does not see the task-conditioning slot.
func (s Spec) Head(n int) Spec {
	if n > s.Len() || n < 0 {
		panic(fmt.Sprintf("head: cannot take %v elements of a spec of "+
			"length %v", n, s.Len()))
	}
	low := make([]float64, n)
	high := make([]float64, n)
	copy(low, s.LowerBound.RawVector().Data[:n])
	copy(high, s.UpperBound.RawVector().Data[:n])
	return NewSpec(s.Type, low, high)
}
