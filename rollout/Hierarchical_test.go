package rollout

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/agent/gaussian"
	"github.com/samuelfneumann/anyskill/environment/pointmass"
	"github.com/samuelfneumann/anyskill/latent"
	"github.com/samuelfneumann/anyskill/llc"
	"github.com/samuelfneumann/anyskill/reward"
)

const llcConfig = `
params:
  network:
    mlp: {units: [8], activation: relu}
    disc: {units: [8], activation: relu}
    enc: {units: [8], activation: tanh}
  config:
    latent_dim: 3
    disc_reward_scale: 1
`

type fixedTask []float64

func (f fixedTask) Current() []float64 { return f }

func newController(t *testing.T, env *pointmass.PointMass) *llc.Controller {
	t.Helper()
	cfg, err := llc.ParseConfig([]byte(llcConfig))
	require.NoError(t, err)
	ckpt, err := llc.NewRandom(cfg, pointmass.StateSize,
		pointmass.ActionSize, env.AMPObsSize())
	require.NoError(t, err)
	c, err := llc.New(cfg, ckpt, env.TaskObsSize())
	require.NoError(t, err)

	demos, err := env.FetchAMPObsDemo(8)
	require.NoError(t, err)
	require.NoError(t, c.SetReference(demos))
	return c
}

func TestHierarchicalRollout(t *testing.T) {
	env, err := pointmass.New(2, 20, 2, 5)
	require.NoError(t, err)
	controller := newController(t, env)

	task := fixedTask{0.5, -0.5}
	bridge, err := latent.NewBridge(env, controller, 3,
		latent.WithTaskSource(task))
	require.NoError(t, err)
	stepper, err := NewHierarchical(bridge, controller.EncodedReference())
	require.NoError(t, err)

	policy, err := gaussian.New(gaussian.Config{
		Hidden:     []int{8},
		Activation: "tanh",
		LogStd:     -1,
		Seed:       1,
	}, env.ObservationSpec().Len(), controller.LatentDim(), env.NumEnvs())
	require.NoError(t, err)

	dump := filepath.Join(t.TempDir(), "output", "llc_actions_1.gob")
	d, err := NewDriver(stepper, policy, Config{
		Horizon:    4,
		NumAgents:  1,
		Gamma:      0.99,
		Tau:        0.95,
		Weights:    reward.Weights{Task: 0.5, Disc: 0.25, Style: 0.25},
		ActionDump: dump,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, d.RewardScale())

	batch, err := d.PlaySteps(context.Background())
	require.NoError(t, err)

	r, c := batch.Obs.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, pointmass.StateSize+2, c)
	_, ac := batch.Actions.Dims()
	assert.Equal(t, 3, ac)

	for i := 0; i < r; i++ {
		assert.Equal(t, []float64{0.5, -0.5}, batch.Obs.RawRowView(i)[4:])
	}
	for _, s := range batch.StyleRewards {
		assert.True(t, s >= 0 && s <= 1)
	}
	for _, d := range batch.DiscRewards {
		assert.True(t, d >= 0)
	}
	for i := range batch.Rewards {
		want := 0.5*batch.TaskRewards[i] + 0.25*batch.DiscRewards[i] +
			0.25*batch.StyleRewards[i]
		assert.InDelta(t, want, batch.Rewards[i], 1e-12)
	}

	actions, err := ReadActionDump(dump)
	require.NoError(t, err)
	assert.Equal(t, 3, actions.Substeps)
	assert.Equal(t, 2, actions.Rows)
	assert.Equal(t, pointmass.ActionSize, actions.Cols)
	ar, _ := actions.At(2).Dims()
	assert.Equal(t, 2, ar)
}

func TestNewHierarchicalNeedsReference(t *testing.T) {
	env, err := pointmass.New(1, 10, 0, 1)
	require.NoError(t, err)
	bridge, err := latent.NewBridge(env, newController(t, env), 1)
	require.NoError(t, err)

	_, err = NewHierarchical(bridge, nil)
	assert.True(t, errors.Is(err, reward.ErrEmptyReference))
	_, err = NewHierarchical(bridge, &mat.Dense{})
	assert.True(t, errors.Is(err, reward.ErrEmptyReference))
}
