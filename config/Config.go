// Package config loads the run configuration of the training and
// inference commands
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/anyskill/agent/gaussian"
	"github.com/samuelfneumann/anyskill/environment/pointmass"
	"github.com/samuelfneumann/anyskill/latent"
	"github.com/samuelfneumann/anyskill/llc"
	"github.com/samuelfneumann/anyskill/player"
	"github.com/samuelfneumann/anyskill/reward"
	"github.com/samuelfneumann/anyskill/rollout"
	"github.com/samuelfneumann/anyskill/skill"
)

// EnvPrefix is the prefix of environment variables overriding
// configuration keys, e.g. ANYSKILL_LLC_STEPS overrides llc.steps
const EnvPrefix = "ANYSKILL"

// Config is the configuration of a run
type Config struct {
	// Number of environment instances controlled as a single agent
	// group. Only one instance per group is counted when episodes end.
	NumAgents int `mapstructure:"num_agents"`

	Task    TaskConfig      `mapstructure:"task"`
	LLC     LLCConfig       `mapstructure:"llc"`
	Train   TrainConfig     `mapstructure:"train"`
	Play    PlayConfig      `mapstructure:"play"`
	Policy  gaussian.Config `mapstructure:"policy"`
	Skill   SkillConfig     `mapstructure:"skill"`
	Output  OutputConfig    `mapstructure:"output"`
	Log     LogConfig       `mapstructure:"log"`
	Metrics MetricsConfig   `mapstructure:"metrics"`
}

// TaskConfig selects and sizes the environment
type TaskConfig struct {
	Name          string `mapstructure:"name"`
	NumEnvs       int    `mapstructure:"num_envs"`
	EpisodeLength int    `mapstructure:"episode_length"`
	TaskSize      int    `mapstructure:"task_size"`
	Seed          uint64 `mapstructure:"seed"`
}

// LLCConfig locates the low-level controller
type LLCConfig struct {
	ConfigFile  string `mapstructure:"config_file"`
	Checkpoint  string `mapstructure:"checkpoint"`
	Steps       int    `mapstructure:"steps"`
	EncodeBatch int    `mapstructure:"encode_batch"`
}

// TrainConfig configures the training loop
type TrainConfig struct {
	Epochs             int            `mapstructure:"epochs"`
	Horizon            int            `mapstructure:"horizon"`
	Gamma              float64        `mapstructure:"gamma"`
	Tau                float64        `mapstructure:"tau"`
	NormalizeAdvantage bool           `mapstructure:"normalize_advantage"`
	Weights            reward.Weights `mapstructure:"weights"`
	TrackerWindow      int            `mapstructure:"tracker_window"`

	// Save the policy every CheckpointEvery epochs, 0 disables
	CheckpointEvery int `mapstructure:"checkpoint_every"`

	// Keep every checkpoint in its own timestamped file instead of
	// overwriting the policy file
	KeepCheckpoints bool `mapstructure:"keep_checkpoints"`
}

// PlayConfig configures inference
type PlayConfig struct {
	GamesNum      int  `mapstructure:"games_num"`
	GameLife      int  `mapstructure:"game_life"`
	MaxSteps      int  `mapstructure:"max_steps"`
	Deterministic bool `mapstructure:"deterministic"`
}

// SkillConfig configures the skill command and its encoder
type SkillConfig struct {
	Command   string `mapstructure:"command"`
	CacheSize int    `mapstructure:"cache_size"`
}

// OutputConfig holds output paths. Empty paths disable the output.
type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	Policy     string `mapstructure:"policy"`
	RewardLog  string `mapstructure:"reward_log"`
	ActionDump string `mapstructure:"action_dump"`
	Frames     string `mapstructure:"frames"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the metrics endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// NewViper returns a viper instance holding the default configuration
// and reading overrides from ANYSKILL_* environment variables
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("num_agents", 1)

	v.SetDefault("task.name", pointmass.TaskName)
	v.SetDefault("task.num_envs", 4)
	v.SetDefault("task.episode_length", 300)
	v.SetDefault("task.task_size", 16)
	v.SetDefault("task.seed", 0)

	v.SetDefault("llc.config_file", "")
	v.SetDefault("llc.checkpoint", "")
	v.SetDefault("llc.steps", 5)
	v.SetDefault("llc.encode_batch", llc.DefaultEncodeBatch)

	v.SetDefault("train.epochs", 100)
	v.SetDefault("train.horizon", 32)
	v.SetDefault("train.gamma", 0.99)
	v.SetDefault("train.tau", 0.95)
	v.SetDefault("train.normalize_advantage", true)
	v.SetDefault("train.weights.task", 0.5)
	v.SetDefault("train.weights.disc", 0.25)
	v.SetDefault("train.weights.style", 0.25)
	v.SetDefault("train.tracker_window", 100)
	v.SetDefault("train.checkpoint_every", 10)
	v.SetDefault("train.keep_checkpoints", false)

	v.SetDefault("play.games_num", 100)
	v.SetDefault("play.game_life", 1)
	v.SetDefault("play.max_steps", 27000)
	v.SetDefault("play.deterministic", true)

	v.SetDefault("policy.hidden", []int{256, 128})
	v.SetDefault("policy.activation", "relu")
	v.SetDefault("policy.init.type", "GlorotU")
	v.SetDefault("policy.init.gain", 1.0)
	v.SetDefault("policy.log_std", -2.9)
	v.SetDefault("policy.seed", 0)

	v.SetDefault("skill.command", skill.DefaultCommand)
	v.SetDefault("skill.cache_size", 64)

	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.policy", "")
	v.SetDefault("output.reward_log", player.DefaultRewardLog)
	v.SetDefault("output.action_dump", rollout.DefaultActionDump)
	v.SetDefault("output.frames", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.addr", "")
	return v
}

// Load reads the configuration file at path, if not empty, into v and
// returns the resulting validated Config
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "load: could not read %v", path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "load: could not decode config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "load")
	}
	return c, nil
}

// Validate checks that the configuration describes a runnable setup
func (c Config) Validate() error {
	if c.LLC.Steps <= 0 {
		return errors.Wrapf(latent.ErrInvalidLLCSteps, "validate: llc.steps=%v",
			c.LLC.Steps)
	}
	if c.LLC.Checkpoint == "" {
		return errors.Wrap(llc.ErrNoCheckpoint, "validate: llc.checkpoint")
	}
	if c.LLC.ConfigFile == "" {
		return errors.New("validate: llc.config_file must be set")
	}
	if c.NumAgents < 1 {
		return errors.Errorf("validate: num_agents must be at least 1, "+
			"have %v", c.NumAgents)
	}
	if c.Task.NumEnvs <= 0 {
		return errors.Errorf("validate: task.num_envs must be positive, "+
			"have %v", c.Task.NumEnvs)
	}
	if c.Task.TaskSize < 0 {
		return errors.Errorf("validate: task.task_size must not be "+
			"negative, have %v", c.Task.TaskSize)
	}
	if c.Train.Horizon <= 0 {
		return errors.Errorf("validate: train.horizon must be positive, "+
			"have %v", c.Train.Horizon)
	}
	return nil
}
