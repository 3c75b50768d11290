package environment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownTask(t *testing.T) {
	Register("registry-test-task", func(Config) (VecEnv, error) {
		return nil, nil
	})

	_, err := New("NoSuchTask", Config{})
	require.Error(t, err)

	var unknown *UnknownTaskError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "NoSuchTask", unknown.Name)
	assert.Contains(t, unknown.Valid, "registry-test-task")
	assert.Contains(t, err.Error(), "registry-test-task")
}

func TestRegisterTwicePanics(t *testing.T) {
	Register("registry-test-dup", func(Config) (VecEnv, error) {
		return nil, nil
	})
	assert.Panics(t, func() {
		Register("registry-test-dup", func(Config) (VecEnv, error) {
			return nil, nil
		})
	})
}

func TestSpecHead(t *testing.T) {
	s := NewSpec(Observation, []float64{-1, -2, -3}, []float64{1, 2, 3})
	h := s.Head(2)

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, -2.0, h.LowerBound.AtVec(1))
	assert.Equal(t, 2.0, h.UpperBound.AtVec(1))
	assert.Panics(t, func() { s.Head(4) })
}
