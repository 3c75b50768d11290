package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples starting states uniformly within per-feature
// bounds
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a UniformStarter seeded with seed
func NewUniformStarter(bounds []r1.Interval, seed uint64) *UniformStarter {
	source := rand.NewSource(seed)
	return &UniformStarter{
		features: len(bounds),
		rand:     distmv.NewUniform(bounds, source),
	}
}

// Start samples a starting state into dst and returns it. If dst is nil
// a new slice is allocated.
func (u *UniformStarter) Start(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, u.features)
	}
	return u.rand.Rand(dst)
}

// Features returns the length of sampled starting states
func (u *UniformStarter) Features() int {
	return u.features
}
