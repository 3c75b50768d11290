package gaussian

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/agent"
)

var _ agent.Policy = &Policy{}

func testConfig() Config {
	return Config{Hidden: []int{8}, Activation: "tanh", LogStd: -1, Seed: 3}
}

func TestActionValuesShapes(t *testing.T) {
	p, err := New(testConfig(), 5, 3, 4)
	require.NoError(t, err)

	obs := mat.NewDense(4, 5, nil)
	obs.Set(1, 2, 1)
	out, err := p.ActionValues(obs, nil)
	require.NoError(t, err)

	r, c := out.Actions.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Len(t, out.Values, 4)
	assert.Len(t, out.NegLogp, 4)
	assert.Nil(t, out.States)
	for _, s := range out.Sigmas.RawMatrix().Data {
		assert.InDelta(t, math.Exp(-1), s, 1e-12)
	}

	values, err := p.Values(obs)
	require.NoError(t, err)
	assert.Equal(t, out.Values, values)

	_, err = p.ActionValues(mat.NewDense(3, 5, nil), nil)
	assert.Error(t, err)
}

func TestEvalIsDeterministic(t *testing.T) {
	p, err := New(testConfig(), 2, 2, 1)
	require.NoError(t, err)
	p.Eval()
	assert.True(t, p.IsEval())

	obs := mat.NewDense(1, 2, []float64{0.3, -0.3})
	a, err := p.ActionValues(obs, nil)
	require.NoError(t, err)
	b, err := p.ActionValues(obs, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Mus.RawMatrix().Data, a.Actions.RawMatrix().Data)
	assert.Equal(t, a.Actions.RawMatrix().Data, b.Actions.RawMatrix().Data)

	// At the mean, the negative log density is the normalizer only
	want := 2 * (-1 + 0.5*math.Log(2*math.Pi))
	assert.InDelta(t, want, a.NegLogp[0], 1e-12)

	p.Train()
	c, err := p.ActionValues(obs, nil)
	require.NoError(t, err)
	assert.NotEqual(t, c.Mus.RawMatrix().Data, c.Actions.RawMatrix().Data)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy", "hlc.gob")
	src, err := New(testConfig(), 3, 2, 2)
	require.NoError(t, err)
	require.NoError(t, src.Save(path))

	cfg := testConfig()
	cfg.LogStd = 0
	dst, err := New(cfg, 3, 2, 2)
	require.NoError(t, err)
	require.NoError(t, dst.Load(path))

	src.Eval()
	dst.Eval()
	obs := mat.NewDense(2, 3, []float64{1, 2, 3, -1, -2, -3})
	a, err := src.ActionValues(obs, nil)
	require.NoError(t, err)
	b, err := dst.ActionValues(obs, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Actions.RawMatrix().Data,
		b.Actions.RawMatrix().Data, 1e-12)
	assert.InDeltaSlice(t, a.Values, b.Values, 1e-12)
	assert.Equal(t, a.Sigmas.RawMatrix().Data, b.Sigmas.RawMatrix().Data)

	other, err := New(testConfig(), 4, 2, 2)
	require.NoError(t, err)
	assert.Error(t, other.Load(path))
}
