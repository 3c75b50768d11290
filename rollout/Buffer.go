package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Buffer holds the experience of a single rollout. Each field is
// indexed [step][instance]. A Buffer is owned by the Driver which
// filled it until it is flattened into a Batch.
type Buffer struct {
	horizon int
	numEnvs int

	Obs     []*mat.Dense
	Actions []*mat.Dense
	Mus     []*mat.Dense
	Sigmas  []*mat.Dense

	Values       [][]float64
	NegLogp      [][]float64
	Rewards      [][]float64
	DiscRewards  [][]float64
	StyleRewards [][]float64
	NextValues   [][]float64
	Dones        [][]float64
}

// NewBuffer returns a new Buffer for horizon steps of numEnvs
// environment instances
func NewBuffer(horizon, numEnvs int) *Buffer {
	return &Buffer{
		horizon:      horizon,
		numEnvs:      numEnvs,
		Obs:          make([]*mat.Dense, horizon),
		Actions:      make([]*mat.Dense, horizon),
		Mus:          make([]*mat.Dense, horizon),
		Sigmas:       make([]*mat.Dense, horizon),
		Values:       make([][]float64, horizon),
		NegLogp:      make([][]float64, horizon),
		Rewards:      make([][]float64, horizon),
		DiscRewards:  make([][]float64, horizon),
		StyleRewards: make([][]float64, horizon),
		NextValues:   make([][]float64, horizon),
		Dones:        make([][]float64, horizon),
	}
}

// Horizon returns the number of steps the Buffer holds
func (b *Buffer) Horizon() int {
	return b.horizon
}

// NumEnvs returns the number of environment instances
func (b *Buffer) NumEnvs() int {
	return b.numEnvs
}

// Transition is the experience of all instances at a single step
type Transition struct {
	Obs, Actions, Mus, Sigmas *mat.Dense

	Values, NegLogp                    []float64
	Rewards, DiscRewards, StyleRewards []float64
	NextValues, Dones                  []float64
}

// Store copies tr into step t of the Buffer. Store panics if t is out
// of range or tr has the wrong number of instances.
func (b *Buffer) Store(t int, tr Transition) {
	if t < 0 || t >= b.horizon {
		panic(fmt.Sprintf("store: step %v out of range [0, %v)", t,
			b.horizon))
	}
	for _, m := range []*mat.Dense{tr.Obs, tr.Actions, tr.Mus, tr.Sigmas} {
		if r, _ := m.Dims(); r != b.numEnvs {
			panic(fmt.Sprintf("store: expected %v rows but got %v",
				b.numEnvs, r))
		}
	}

	b.Obs[t] = mat.DenseCopyOf(tr.Obs)
	b.Actions[t] = mat.DenseCopyOf(tr.Actions)
	b.Mus[t] = mat.DenseCopyOf(tr.Mus)
	b.Sigmas[t] = mat.DenseCopyOf(tr.Sigmas)

	b.Values[t] = b.vec(tr.Values)
	b.NegLogp[t] = b.vec(tr.NegLogp)
	b.Rewards[t] = b.vec(tr.Rewards)
	b.DiscRewards[t] = b.vec(tr.DiscRewards)
	b.StyleRewards[t] = b.vec(tr.StyleRewards)
	b.NextValues[t] = b.vec(tr.NextValues)
	b.Dones[t] = b.vec(tr.Dones)
}

// vec returns a copy of v after checking its length
func (b *Buffer) vec(v []float64) []float64 {
	if len(v) != b.numEnvs {
		panic(fmt.Sprintf("store: expected %v instances but got %v",
			b.numEnvs, len(v)))
	}
	return append([]float64{}, v...)
}

// SwapAndFlatten flattens a [step][instance] grid so that the element
// of step t and instance i is at index i*horizon + t
func SwapAndFlatten(grid [][]float64) []float64 {
	horizon := len(grid)
	if horizon == 0 {
		return []float64{}
	}
	n := len(grid[0])
	out := make([]float64, horizon*n)
	for t, row := range grid {
		for i, v := range row {
			out[i*horizon+t] = v
		}
	}
	return out
}

// SwapAndFlattenRows flattens per-step matrices, whose rows are
// instances, so that the row of step t and instance i is at row
// i*horizon + t
func SwapAndFlattenRows(steps []*mat.Dense) *mat.Dense {
	horizon := len(steps)
	if horizon == 0 {
		return nil
	}
	n, c := steps[0].Dims()
	out := mat.NewDense(horizon*n, c, nil)
	for t, m := range steps {
		for i := 0; i < n; i++ {
			out.SetRow(i*horizon+t, m.RawRowView(i))
		}
	}
	return out
}
