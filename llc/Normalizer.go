package llc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/utils/floatutils"
)

const (
	normEpsilon = 1e-5
	normClip    = 5.0
)

// Normalizer standardizes inputs with a running mean and variance
// which were accumulated while the controller was trained. An empty
// Normalizer leaves inputs unchanged.
type Normalizer struct {
	Mean []float64
	Var  []float64
}

// IdentityNormalizer returns a Normalizer with zero mean and unit
// variance over size features
func IdentityNormalizer(size int) Normalizer {
	n := Normalizer{Mean: make([]float64, size), Var: make([]float64, size)}
	for i := range n.Var {
		n.Var[i] = 1 - normEpsilon
	}
	return n
}

// Empty returns whether the Normalizer is a no-op
func (n Normalizer) Empty() bool {
	return len(n.Mean) == 0
}

func (n Normalizer) validate(features int) error {
	if n.Empty() {
		return nil
	}
	if len(n.Mean) != features || len(n.Var) != features {
		return errors.Errorf("normalizer has %v/%v statistics for %v "+
			"features", len(n.Mean), len(n.Var), features)
	}
	for i, v := range n.Var {
		if v < 0 || math.IsNaN(v) {
			return errors.Errorf("normalizer variance %v at feature %v",
				v, i)
		}
	}
	return nil
}

// Apply returns a normalized copy of x. Each normalized value is
// clipped to [-5, 5].
func (n Normalizer) Apply(x mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(x)
	if n.Empty() {
		return out
	}
	out.Apply(func(_, j int, v float64) float64 {
		v = (v - n.Mean[j]) / math.Sqrt(n.Var[j]+normEpsilon)
		return floatutils.Clip(v, -normClip, normClip)
	}, out)
	return out
}
