// Package llc implements an adapter around a frozen, pretrained
// low-level controller. The controller consists of an actor which maps
// observations and latent skill vectors to actions, an adversarial
// discriminator which scores motion windows, and a motion encoder
// which maps motion windows to latent skill vectors.
package llc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/anyskill/initwfn"
	"github.com/samuelfneumann/anyskill/network"
)

// MLPConfig describes the hidden layers of a single network
type MLPConfig struct {
	Units       []int           `yaml:"units"`
	Activation  string          `yaml:"activation"`
	Initializer initwfn.InitWFn `yaml:"initializer"`
}

// activations returns one Activation per hidden layer
func (m MLPConfig) activations() ([]*network.Activation, error) {
	acts := make([]*network.Activation, len(m.Units))
	for i := range acts {
		act, err := network.ParseActivation(m.Activation)
		if err != nil {
			return nil, err
		}
		acts[i] = act
	}
	return acts, nil
}

// biases returns a bias flag for each hidden layer
func (m MLPConfig) biases() []bool {
	b := make([]bool, len(m.Units))
	for i := range b {
		b[i] = true
	}
	return b
}

// NetworkConfig describes the architecture of the low-level controller
type NetworkConfig struct {
	MLP  MLPConfig `yaml:"mlp"`
	Disc MLPConfig `yaml:"disc"`
	Enc  MLPConfig `yaml:"enc"`
}

// ParamsConfig holds the low-level controller hyperparameters used at
// inference time
type ParamsConfig struct {
	LatentDim       int     `yaml:"latent_dim"`
	DiscRewardScale float64 `yaml:"disc_reward_scale"`

	// Whether the checkpointed normalizers are applied to observations
	// and motion observations. Both default to true when parsed.
	NormalizeInput bool `yaml:"normalize_input"`
	NormalizeAMP   bool `yaml:"normalize_amp_input"`
}

// Config is the architecture description which accompanies a
// low-level controller checkpoint
type Config struct {
	Params struct {
		Network NetworkConfig `yaml:"network"`
		Config  ParamsConfig  `yaml:"config"`
	} `yaml:"params"`
}

// ReadConfig reads a Config from a YAML file
func ReadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "readConfig")
	}
	return ParseConfig(data)
}

// ParseConfig parses a Config from YAML. Omitted normalization flags
// are true.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	c.Params.Config.NormalizeInput = true
	c.Params.Config.NormalizeAMP = true
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "parseConfig")
	}
	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "parseConfig")
	}
	return c, nil
}

// Validate checks that the Config describes a usable controller
func (c Config) Validate() error {
	if c.Params.Config.LatentDim <= 0 {
		return errors.Errorf("latent_dim must be positive, have %v",
			c.Params.Config.LatentDim)
	}
	nets := map[string]MLPConfig{
		"mlp":  c.Params.Network.MLP,
		"disc": c.Params.Network.Disc,
		"enc":  c.Params.Network.Enc,
	}
	for name, net := range nets {
		for _, u := range net.Units {
			if u <= 0 {
				return errors.Errorf("%v: layer sizes must be positive, "+
					"have %v", name, net.Units)
			}
		}
		if _, err := network.ParseActivation(net.Activation); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return nil
}

// Marshal returns the YAML encoding of the Config
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
