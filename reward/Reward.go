// Package reward combines task, discriminator, and style rewards into
// the single reward used for optimization.
package reward

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/anyskill/latent"
)

// ErrEmptyReference is returned when a style reward is requested
// without an encoded motion reference
var ErrEmptyReference = errors.New("empty encoded motion reference")

// Weights are the coefficients of each reward term
type Weights struct {
	Task  float64 `mapstructure:"task" yaml:"task"`
	Disc  float64 `mapstructure:"disc" yaml:"disc"`
	Style float64 `mapstructure:"style" yaml:"style"`
}

// Composer computes the weighted sum of reward terms
type Composer struct {
	Weights
}

// NewComposer returns a new Composer
func NewComposer(w Weights) Composer {
	return Composer{Weights: w}
}

// Compose returns w_task*task + w_disc*disc + w_style*style
// element-wise. A nil disc or style slice contributes nothing.
func (c Composer) Compose(task, disc, style []float64) []float64 {
	out := make([]float64, len(task))
	floats.AddScaled(out, c.Task, task)
	if disc != nil {
		floats.AddScaled(out, c.Disc, disc)
	}
	if style != nil {
		floats.AddScaled(out, c.Style, style)
	}
	return out
}

// StyleReward returns, for each row of z, the largest similarity
// (cos+1)/2 between the normalized row and any row of reference. Rows
// of reference are assumed to be unit norm.
func StyleReward(z, reference *mat.Dense) ([]float64, error) {
	if reference == nil || reference.IsEmpty() {
		return nil, ErrEmptyReference
	}
	refRows, refCols := reference.Dims()
	n, cols := z.Dims()
	if cols != refCols {
		return nil, errors.Errorf("styleReward: latent dimension %v does "+
			"not match reference dimension %v", cols, refCols)
	}

	normZ, err := latent.Normalize(nil, z)
	if err != nil {
		return nil, errors.Wrap(err, "styleReward")
	}

	refNorms := make([]float64, refRows)
	for j := range refNorms {
		refNorms[j] = floats.Norm(reference.RawRowView(j), 2)
	}

	// sim[i, j] = <z_i, ref_j>
	sim := mat.NewDense(n, refRows, nil)
	sim.Mul(normZ, reference.T())

	rewards := make([]float64, n)
	for i := 0; i < n; i++ {
		best := math.Inf(-1)
		for j := 0; j < refRows; j++ {
			cos := 0.0
			if refNorms[j] > 0 {
				cos = sim.At(i, j) / refNorms[j]
			}
			best = math.Max(best, (cos+1)/2)
		}
		rewards[i] = math.Min(math.Max(best, 0), 1)
	}
	return rewards, nil
}

// Stats returns the mean and standard deviation of x. Both are 0 for
// empty x and the standard deviation is 0 for a single element.
func Stats(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
