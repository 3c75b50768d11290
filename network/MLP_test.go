package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func TestMLPForwardShape(t *testing.T) {
	net, err := NewMLP([]int{3, 2}, 4, 2, []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 2}, net.Features())
	assert.Equal(t, 4, net.BatchSize())
	assert.Equal(t, 2, net.Outputs())
	assert.Len(t, net.Learnables(), 4)

	out, err := net.Forward(make([]float64, 12), make([]float64, 8))
	require.NoError(t, err)
	assert.Len(t, out, 8)

	_, err = net.Forward(make([]float64, 12))
	assert.Error(t, err)
	_, err = net.Forward(make([]float64, 11), make([]float64, 8))
	assert.Error(t, err)
}

func TestMLPZeroWeights(t *testing.T) {
	net, err := NewMLP([]int{2}, 2, 3, []int{4}, []bool{true},
		G.Zeroes(), []*Activation{TanH()})
	require.NoError(t, err)

	out, err := net.Forward([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 6), out)
}

func TestMLPWeightsRoundTrip(t *testing.T) {
	src, err := NewMLP([]int{3}, 2, 2, []int{4, 4}, []bool{true, false},
		G.GlorotN(1.0), []*Activation{ReLU(), TanH()})
	require.NoError(t, err)
	dst, err := NewMLP([]int{3}, 2, 2, []int{4, 4}, []bool{true, false},
		G.GlorotN(1.0), []*Activation{ReLU(), TanH()})
	require.NoError(t, err)

	require.NoError(t, dst.SetWeights(src.Weights()))

	input := []float64{0.1, -0.2, 0.3, 0.4, 0.5, -0.6}
	want, err := src.Forward(input)
	require.NoError(t, err)
	got, err := dst.Forward(input)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	// Repeated forward passes are stable
	again, err := dst.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestMLPSetWeightsMismatch(t *testing.T) {
	a, err := NewMLP([]int{3}, 1, 2, []int{4}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	require.NoError(t, err)
	b, err := NewMLP([]int{3}, 1, 2, []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	require.NoError(t, err)

	assert.Error(t, b.SetWeights(a.Weights()))
	assert.Error(t, b.SetWeights(Weights{}))
}

func TestNewMLPValidation(t *testing.T) {
	_, err := NewMLP(nil, 1, 1, nil, nil, G.GlorotU(1), nil)
	assert.Error(t, err)
	_, err = NewMLP([]int{2}, 1, 1, []int{3}, []bool{true}, G.GlorotU(1),
		nil)
	assert.Error(t, err)
	_, err = NewMLP([]int{2}, 0, 1, nil, nil, G.GlorotU(1), nil)
	assert.Error(t, err)
}

func TestParseActivation(t *testing.T) {
	a, err := ParseActivation("relu")
	require.NoError(t, err)
	assert.Equal(t, "relu", a.String())

	a, err = ParseActivation("")
	require.NoError(t, err)
	assert.True(t, a.IsIdentity())

	_, err = ParseActivation("swish")
	assert.Error(t, err)
}
