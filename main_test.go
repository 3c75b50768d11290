package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/anyskill/config"
)

const llcConfig = `
params:
  network:
    mlp:
      units: [8]
      activation: relu
    disc:
      units: [8]
      activation: relu
    enc:
      units: [8]
      activation: tanh
  config:
    latent_dim: 3
`

const runConfigTemplate = `
task:
  num_envs: 2
  episode_length: 5
  task_size: 2
llc:
  config_file: %[1]v/llc.yaml
  checkpoint: %[1]v/llc.gob
  steps: 2
train:
  epochs: 1
  horizon: 4
  checkpoint_every: 0
policy:
  hidden: [8]
play:
  games_num: 1
  max_steps: 20
output:
  dir: %[1]v/output
  reward_log: %[1]v/output/reward.txt
  action_dump: %[1]v/output/actions.gob
log:
  level: error
`

// writeRun writes a small run configuration into a temporary directory
// and returns the directory and the configuration path
func writeRun(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llc.yaml"),
		[]byte(llcConfig), 0o644))

	cfgPath := filepath.Join(dir, "run.yaml")
	cfg := fmt.Sprintf(runConfigTemplate, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return dir, cfgPath
}

func execute(cfgPath string, args ...string) error {
	cmd := newRootCommand()
	cmd.SetArgs(append([]string{"-c", cfgPath}, args...))
	cmd.SetOut(os.Stderr)
	return cmd.ExecuteContext(context.Background())
}

func TestTrainThenPlay(t *testing.T) {
	dir, cfgPath := writeRun(t)

	require.NoError(t, execute(cfgPath, "init-llc"))
	require.FileExists(t, filepath.Join(dir, "llc.gob"))

	require.NoError(t, execute(cfgPath, "train"))
	policy := filepath.Join(dir, "output", "hlc.gob")
	require.FileExists(t, policy)
	assert.FileExists(t, filepath.Join(dir, "output", "actions.gob"))

	require.NoError(t, execute(cfgPath, "play", "--console=false"))
	assert.FileExists(t, filepath.Join(dir, "output", "reward.txt"))

	// A corrupt policy must not be replaced by a freshly initialized one
	require.NoError(t, os.WriteFile(policy, []byte("not a policy"), 0o644))
	err := execute(cfgPath, "play", "--console=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), policy)
}

func TestPlayWithoutPolicy(t *testing.T) {
	dir, cfgPath := writeRun(t)
	require.NoError(t, execute(cfgPath, "init-llc"))

	err := execute(cfgPath, "play", "--console=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join(dir, "output", "hlc.gob"))
	assert.NoFileExists(t, filepath.Join(dir, "output", "reward.txt"))
}

func TestCheckpointNames(t *testing.T) {
	_, cfgPath := writeRun(t)
	a := &app{v: config.NewViper(), configFile: cfgPath}
	require.NoError(t, a.initialize())
	assert.Equal(t, a.policyPath(), a.checkpointNames()())

	a.cfg.Train.KeepCheckpoints = true
	name := a.checkpointNames()()
	assert.True(t, strings.HasPrefix(name,
		filepath.Join(a.cfg.Output.Dir, "hlc-")), name)
	assert.True(t, strings.HasSuffix(name, ".gob"), name)
	assert.NotEqual(t, a.policyPath(), name)
}
