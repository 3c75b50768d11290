package latent

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/environment"
)

func TestNormalizeUnitNorm(t *testing.T) {
	z := mat.NewDense(3, 4, []float64{
		1, 2, 3, 4,
		-0.5, 0, 0, 0,
		1e-3, 1e-3, -1e-3, 5,
	})
	out, err := Normalize(nil, z)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, floats.Norm(out.RawRowView(i), 2), 1e-12)
	}

	// In place
	_, err = Normalize(z, z)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, floats.Norm(z.RawRowView(0), 2), 1e-12)
}

func TestNormalizeZero(t *testing.T) {
	z := mat.NewDense(2, 2, []float64{1, 0, 0, 0})
	_, err := Normalize(nil, z)
	assert.True(t, errors.Is(err, ErrZeroLatent))
}

func TestClamp(t *testing.T) {
	z := mat.NewDense(1, 3, []float64{-3, 0.5, 2})
	out := Clamp(nil, z)
	assert.Equal(t, []float64{-1, 0.5, 1}, out.RawRowView(0))
	assert.Equal(t, []float64{-3, 0.5, 2}, z.RawRowView(0))
}

// scriptedEnv returns scripted rewards and dones at each step
type scriptedEnv struct {
	n, obsSize, taskSize int

	rewards   [][]float64
	dones     [][]float64
	terminate [][]float64
	noAMP     bool
	t         int
}

func (s *scriptedEnv) Reset() (*mat.Dense, error) {
	return mat.NewDense(s.n, s.obsSize, nil), nil
}

func (s *scriptedEnv) ResetDone([]int) (*mat.Dense, error) {
	return s.Reset()
}

func (s *scriptedEnv) Step(actions *mat.Dense) (environment.Step, error) {
	i := s.t
	s.t++
	term := make([]float64, s.n)
	if s.terminate != nil {
		term = s.terminate[i]
	}
	var amp *mat.Dense
	if !s.noAMP {
		amp = mat.NewDense(s.n, 1, nil)
	}
	return environment.Step{
		Obs:     mat.NewDense(s.n, s.obsSize, nil),
		Rewards: append([]float64{}, s.rewards[i]...),
		Dones:   append([]float64{}, s.dones[i]...),
		Info: environment.Info{
			AMPObs:    amp,
			Terminate: term,
		},
	}, nil
}

func (s *scriptedEnv) NumEnvs() int { return s.n }

func (s *scriptedEnv) ObservationSpec() environment.Spec {
	b := make([]float64, s.obsSize)
	return environment.NewSpec(environment.Observation, b, b)
}

func (s *scriptedEnv) ActionSpec() environment.Spec {
	return environment.NewSpec(environment.Action, []float64{-1}, []float64{1})
}

func (s *scriptedEnv) TaskObsSize() int { return s.taskSize }
func (s *scriptedEnv) AMPObsSize() int  { return 1 }

// constLLC returns zero actions and a constant discriminator reward per
// call, cycling through disc
type constLLC struct {
	disc  []float64
	calls int
	zs    []*mat.Dense
}

func (c *constLLC) ComputeAction(obs, z *mat.Dense) (*mat.Dense, error) {
	c.zs = append(c.zs, mat.DenseCopyOf(z))
	r, _ := obs.Dims()
	return mat.NewDense(r, 1, nil), nil
}

func (c *constLLC) DiscReward(ampObs *mat.Dense) ([]float64, error) {
	r, _ := ampObs.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = c.disc[c.calls%len(c.disc)]
	}
	c.calls++
	return out, nil
}

type fixedTask []float64

func (f fixedTask) Current() []float64 { return f }

func TestBridgeAveragesAndReduces(t *testing.T) {
	env := &scriptedEnv{
		n: 2, obsSize: 3,
		rewards: [][]float64{{1, 0}, {1, 2}, {1, 4}, {1, 6}, {1, 8}},
		dones:   [][]float64{{0, 0}, {0, 0}, {0, 0}, {1, 0}, {0, 0}},
	}
	llc := &constLLC{disc: []float64{0, 1, 2, 3, 4}}

	b, err := NewBridge(env, llc, 5)
	require.NoError(t, err)

	obs, _ := env.Reset()
	res, err := b.Step(obs, mat.NewDense(2, 2, []float64{3, -3, 0.5, 0.5}))
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 4}, res.Rewards)
	assert.Equal(t, []float64{2, 2}, res.DiscRewards)
	assert.Equal(t, []float64{1, 0}, res.Dones)
	assert.Equal(t, []float64{0, 0}, res.Terminate)
	assert.Len(t, res.LLCActions, 5)

	// Averages are bounded by the per-step extremes
	assert.True(t, res.Rewards[1] >= 0 && res.Rewards[1] <= 8)

	// The latent is clamped before reaching the low-level controller
	require.Len(t, llc.zs, 5)
	assert.Equal(t, []float64{1, -1}, llc.zs[0].RawRowView(0))
}

func TestBridgeTerminate(t *testing.T) {
	env := &scriptedEnv{
		n: 1, obsSize: 2,
		rewards:   [][]float64{{0}, {0}},
		dones:     [][]float64{{0}, {1}},
		terminate: [][]float64{{1}, {0}},
	}
	b, err := NewBridge(env, &constLLC{disc: []float64{0}}, 2)
	require.NoError(t, err)

	obs, _ := env.Reset()
	res, err := b.Step(obs, mat.NewDense(1, 2, []float64{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, res.Terminate)
	assert.Equal(t, []float64{1}, res.Info.Terminate)
	assert.Equal(t, []float64{1}, res.Dones)
}

func TestBridgeMissingAMPObs(t *testing.T) {
	env := &scriptedEnv{
		n: 1, obsSize: 2, noAMP: true,
		rewards: [][]float64{{0}},
		dones:   [][]float64{{0}},
	}
	llc := &constLLC{disc: []float64{0}}
	b, err := NewBridge(env, llc, 1)
	require.NoError(t, err)

	obs, _ := env.Reset()
	_, err = b.Step(obs, mat.NewDense(1, 2, []float64{1, 0}))
	assert.True(t, errors.Is(err, ErrMissingAMPObs))
	assert.Equal(t, 0, llc.calls)
}

func TestBridgeInjectsTask(t *testing.T) {
	env := &scriptedEnv{
		n: 2, obsSize: 4, taskSize: 2,
		rewards: [][]float64{{0, 0}},
		dones:   [][]float64{{0, 0}},
	}
	b, err := NewBridge(env, &constLLC{disc: []float64{0}}, 1,
		WithTaskSource(fixedTask{0.25, -0.75}))
	require.NoError(t, err)

	obs, _ := env.Reset()
	res, err := b.Step(obs, mat.NewDense(2, 1, []float64{1, 1}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.25, -0.75}, res.Obs.RawRowView(0))
	assert.Equal(t, []float64{0, 0, 0.25, -0.75}, res.Obs.RawRowView(1))
}

func TestNewBridgeInvalidSteps(t *testing.T) {
	env := &scriptedEnv{n: 1, obsSize: 1}
	for _, steps := range []int{0, -1} {
		_, err := NewBridge(env, &constLLC{}, steps)
		assert.True(t, errors.Is(err, ErrInvalidLLCSteps))
	}

	env = &scriptedEnv{n: 1, obsSize: 1, taskSize: 2}
	_, err := NewBridge(env, &constLLC{}, 1)
	assert.Error(t, err)
}

func TestInjectTaskLength(t *testing.T) {
	obs := mat.NewDense(1, 3, nil)
	assert.Error(t, InjectTask(obs, 2, []float64{1}))
	assert.NoError(t, InjectTask(obs, 0, nil))
}
