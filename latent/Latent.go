// Package latent implements helpers for latent skill vectors and the
// bridge which executes a single high-level latent decision as several
// low-level environment steps.
package latent

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/utils/floatutils"
)

// minNorm is the smallest L2 norm a latent vector may have before it is
// considered to be the zero vector
const minNorm = 1e-12

// ErrZeroLatent is returned when a latent vector with zero L2 norm is
// normalized
var ErrZeroLatent = errors.New("zero-norm latent vector")

// Normalize L2-normalizes each row of z and stores the result in dst.
// If dst is nil, a new matrix is allocated. dst and z may be the same
// matrix. A row with (near) zero norm results in ErrZeroLatent.
func Normalize(dst, z *mat.Dense) (*mat.Dense, error) {
	r, c := z.Dims()
	if dst == nil {
		dst = mat.NewDense(r, c, nil)
	} else if dr, dc := dst.Dims(); dr != r || dc != c {
		return nil, errors.Errorf("normalize: destination shape mismatch "+
			"\n\twant(%v, %v)\n\thave(%v, %v)", r, c, dr, dc)
	}

	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, z)
		norm := floats.Norm(row, 2)
		if norm < minNorm || math.IsNaN(norm) {
			return nil, errors.Wrapf(ErrZeroLatent, "normalize: row %v", i)
		}
		floats.Scale(1/norm, row)
		dst.SetRow(i, row)
	}
	return dst, nil
}

// Clamp clips every element of z to [-1, 1] and stores the result in
// dst. If dst is nil, a new matrix is allocated.
func Clamp(dst, z *mat.Dense) *mat.Dense {
	if dst == nil {
		dst = mat.DenseCopyOf(z)
	} else if dst != z {
		dst.Copy(z)
	}
	dst.Apply(func(_, _ int, v float64) float64 {
		return floatutils.Clip(v, -1, 1)
	}, dst)
	return dst
}
