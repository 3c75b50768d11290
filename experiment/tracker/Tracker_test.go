package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanWindow(t *testing.T) {
	m, err := NewMean(3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Mean())

	m.Update([]float64{1, 2})
	assert.Equal(t, 1.5, m.Mean())
	assert.Equal(t, 2, m.Len())

	m.Update([]float64{3, 4, 5})
	assert.Equal(t, 4.0, m.Mean())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, m.History())
}

func TestMeanInvalidWindow(t *testing.T) {
	_, err := NewMean(0)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	m, err := NewMean(2)
	require.NoError(t, err)
	m.Update([]float64{0.5, -1, 7})

	filename := filepath.Join(t.TempDir(), "data", "returns.bin")
	require.NoError(t, m.Save(filename))

	data, err := LoadData(filename)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1, 7}, data)
}

func TestLoadMissing(t *testing.T) {
	_, err := LoadData(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestSaveErrors(t *testing.T) {
	m, err := NewMean(1)
	require.NoError(t, err)
	m.Update([]float64{1})

	// Parent is a regular file
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, nil, 0o644))
	assert.Error(t, m.Save(filepath.Join(parent, "returns.bin")))

	// Writes to a full device fail
	if _, err := os.Stat("/dev/full"); err == nil {
		assert.Error(t, m.Save("/dev/full"))
	}
}
