package experiment

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/anyskill/agent/gaussian"
	"github.com/samuelfneumann/anyskill/environment/pointmass"
	"github.com/samuelfneumann/anyskill/experiment/checkpointer"
	"github.com/samuelfneumann/anyskill/experiment/tracker"
	"github.com/samuelfneumann/anyskill/logging"
	"github.com/samuelfneumann/anyskill/metrics"
	"github.com/samuelfneumann/anyskill/reward"
	"github.com/samuelfneumann/anyskill/rollout"
)

func newDriver(t *testing.T, opts ...rollout.DriverOption) (*rollout.Driver,
	*gaussian.Policy) {
	t.Helper()
	env, err := pointmass.New(2, 3, 0, 7)
	require.NoError(t, err)

	policy, err := gaussian.New(gaussian.Config{
		Hidden:     []int{8},
		Activation: "relu",
		LogStd:     -1,
		Seed:       3,
	}, pointmass.StateSize, pointmass.ActionSize, env.NumEnvs())
	require.NoError(t, err)

	d, err := rollout.NewDriver(rollout.NewFlat(env), policy, rollout.Config{
		Horizon:   6,
		NumAgents: 1,
		Gamma:     0.99,
		Tau:       0.95,
		Weights:   reward.Weights{Task: 1},
	}, opts...)
	require.NoError(t, err)
	return d, policy
}

type failingUpdater struct{}

func (failingUpdater) Update(context.Context, rollout.Batch) (map[string]float64,
	error) {
	return nil, errors.New("diverged")
}

func TestTrainerRun(t *testing.T) {
	rewards, err := tracker.NewMean(100)
	require.NoError(t, err)
	lengths, err := tracker.NewMean(100)
	require.NoError(t, err)
	d, policy := newDriver(t, rollout.WithTrackers(rewards, lengths))

	dir := t.TempDir()
	ckpt, err := checkpointer.NewNStep(2, policy,
		checkpointer.FilenameEnumerator(0, filepath.Join(dir, "hlc"), ".gob"))
	require.NoError(t, err)

	var logs, bar bytes.Buffer
	log, err := logging.NewWithOutput(&logs, "info", "json")
	require.NoError(t, err)
	m := metrics.MustNewMetrics(prometheus.NewRegistry())

	tr, err := NewTrainer(d, nil, 3,
		WithEpisodeTrackers(rewards, lengths, dir),
		WithMetrics(m),
		WithCheckpointers(ckpt),
		WithProgressBar(&bar, 10),
		WithLogger(log),
	)
	require.NoError(t, err)

	stats, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 3, tr.Epoch())

	last := stats[2]
	assert.Equal(t, 3, last.Epoch)
	assert.Equal(t, 36, last.Frames)
	assert.Equal(t, 0.0, last.DiscMean)
	assert.Equal(t, 0.0, last.StyleMean)
	assert.True(t, last.RewardMean > 0 && last.RewardMean <= 1)
	assert.True(t, last.EpisodeLength > 0 && last.EpisodeLength <= 3)
	assert.True(t, last.EpisodeReward > 0)
	assert.Contains(t, last.Update, "advantage_mean")

	assert.FileExists(t, filepath.Join(dir, "hlc1.gob"))
	assert.NoFileExists(t, filepath.Join(dir, "hlc2.gob"))

	saved, err := tracker.LoadData(filepath.Join(dir, LengthsFile))
	require.NoError(t, err)
	assert.Equal(t, lengths.History(), saved)

	assert.Contains(t, logs.String(), `"msg":"epoch finished"`)
	assert.Contains(t, bar.String(), "100.00%")
}

func TestTrainerUpdateError(t *testing.T) {
	d, _ := newDriver(t)
	tr, err := NewTrainer(d, failingUpdater{}, 2)
	require.NoError(t, err)

	stats, err := tr.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged")
	assert.Empty(t, stats)
	assert.Equal(t, 0, tr.Epoch())
}

func TestTrainerCancelled(t *testing.T) {
	d, _ := newDriver(t)
	tr, err := NewTrainer(d, StatsUpdater{}, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewTrainerInvalid(t *testing.T) {
	d, _ := newDriver(t)
	_, err := NewTrainer(d, nil, 0)
	assert.Error(t, err)
}

func TestStatsUpdaterEmpty(t *testing.T) {
	_, err := StatsUpdater{}.Update(context.Background(), rollout.Batch{})
	assert.Error(t, err)
}
