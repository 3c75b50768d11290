package pointmass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/environment"
)

func TestRegistered(t *testing.T) {
	env, err := environment.New(TaskName, environment.Config{
		NumEnvs:       2,
		EpisodeLength: 10,
		TaskObsSize:   3,
		Seed:          1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, env.NumEnvs())
	assert.Equal(t, StateSize+3, env.ObservationSpec().Len())
	assert.Equal(t, 3, env.TaskObsSize())
}

func TestStepShapes(t *testing.T) {
	p, err := New(3, 5, 2, 42)
	require.NoError(t, err)

	obs, err := p.Reset()
	require.NoError(t, err)
	r, c := obs.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, StateSize+2, c)

	step, err := p.Step(mat.NewDense(3, ActionSize, nil))
	require.NoError(t, err)
	assert.Len(t, step.Rewards, 3)
	assert.Len(t, step.Dones, 3)
	assert.Len(t, step.Info.Terminate, 3)

	ar, ac := step.Info.AMPObs.Dims()
	assert.Equal(t, 3, ar)
	assert.Equal(t, p.AMPObsSize(), ac)

	for _, rew := range step.Rewards {
		assert.True(t, rew > 0 && rew <= 1)
	}

	_, err = p.Step(mat.NewDense(2, ActionSize, nil))
	assert.Error(t, err)
}

func TestTimeoutIsNotTermination(t *testing.T) {
	p, err := New(2, 3, 0, 7)
	require.NoError(t, err)
	_, err = p.Reset()
	require.NoError(t, err)

	var step environment.Step
	for i := 0; i < 3; i++ {
		step, err = p.Step(mat.NewDense(2, ActionSize, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{1, 1}, step.Dones)
	assert.Equal(t, []float64{0, 0}, step.Info.Terminate)

	_, err = p.ResetDone([]int{0})
	require.NoError(t, err)
	step, err = p.Step(mat.NewDense(2, ActionSize, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, step.Dones[0])
	assert.Equal(t, 1.0, step.Dones[1])

	_, err = p.ResetDone([]int{5})
	assert.Error(t, err)
}

func TestLeavingBoundsTerminates(t *testing.T) {
	p, err := New(1, 1000, 0, 3)
	require.NoError(t, err)
	_, err = p.Reset()
	require.NoError(t, err)

	push := mat.NewDense(1, ActionSize, []float64{MaxForce, MaxForce})
	terminated := false
	for i := 0; i < 300 && !terminated; i++ {
		step, err := p.Step(push)
		require.NoError(t, err)
		if step.Info.Terminate[0] == 1 {
			terminated = true
			assert.Equal(t, 1.0, step.Dones[0])
		}
	}
	assert.True(t, terminated)
}

func TestDemoAndRender(t *testing.T) {
	p, err := New(2, 10, 2, 9)
	require.NoError(t, err)
	_, err = p.Reset()
	require.NoError(t, err)

	demo, err := p.FetchAMPObsDemo(16)
	require.NoError(t, err)
	r, c := demo.Dims()
	assert.Equal(t, 16, r)
	assert.Equal(t, AMPSteps*StateSize, c)

	_, err = p.FetchAMPObsDemo(0)
	assert.Error(t, err)

	img, err := p.Render()
	require.NoError(t, err)
	assert.Equal(t, int(2*Bound*Scale), img.Bounds().Dx())
}
