package checkpointer

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	paths []string
	err   error
}

func (r *recordingSaver) Save(path string) error {
	r.paths = append(r.paths, path)
	return r.err
}

func TestNStep(t *testing.T) {
	s := &recordingSaver{}
	c, err := NewNStep(2, s, FilenameEnumerator(0, "out/hlc", ".gob"))
	require.NoError(t, err)

	for epoch := 0; epoch <= 5; epoch++ {
		require.NoError(t, c.Checkpoint(epoch))
	}
	assert.Equal(t, []string{"out/hlc1.gob", "out/hlc2.gob"}, s.paths)
}

func TestNStepError(t *testing.T) {
	s := &recordingSaver{err: errors.New("disk full")}
	c, err := NewNStep(1, s, Constant("hlc.gob"))
	require.NoError(t, err)

	err = c.Checkpoint(3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epoch 3")
	assert.Contains(t, err.Error(), "disk full")
}

func TestNStepInvalid(t *testing.T) {
	_, err := NewNStep(0, &recordingSaver{}, Constant("x"))
	assert.Error(t, err)
}

func TestFileTimer(t *testing.T) {
	at := time.Date(2021, 8, 9, 18, 40, 43, 1, time.FixedZone("MDT", -6*3600))
	name := fileTimer("out/hlc", ".gob", func() time.Time { return at })()
	assert.Equal(t, "out/hlc-20210810-004043.000000001.gob", name)

	name = FileTimer("run", ".bin")()
	assert.True(t, strings.HasPrefix(name, "run-"))
	assert.True(t, strings.HasSuffix(name, ".bin"))
}
