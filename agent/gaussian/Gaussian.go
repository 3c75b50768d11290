// Package gaussian implements a Gaussian policy over latent skill
// vectors, parameterized by a multi-layered perceptron, together with a
// state value critic.
package gaussian

import (
	"encoding/gob"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/anyskill/agent"
	"github.com/samuelfneumann/anyskill/initwfn"
	"github.com/samuelfneumann/anyskill/network"
)

// Config describes a Gaussian policy
type Config struct {
	Hidden     []int           `mapstructure:"hidden" yaml:"hidden"`
	Activation string          `mapstructure:"activation" yaml:"activation"`
	InitWFn    initwfn.InitWFn `mapstructure:"init" yaml:"init"`

	// The standard deviation of the policy is fixed at exp(LogStd)
	LogStd float64 `mapstructure:"log_std" yaml:"log_std"`
	Seed   uint64  `mapstructure:"seed" yaml:"seed"`
}

// Policy is a Gaussian policy with a fixed standard deviation and a
// mean predicted by an MLP. The batch size of a Policy is fixed at
// construction.
//
// Given the mean μ and standard deviation σ of the policy, actions are
// selected by sampling ɛ ~ N(0, 1) and computing action := μ + σ * ɛ.
type Policy struct {
	actor  *network.MLP
	critic *network.MLP

	obsSize    int
	actionSize int
	batch      int
	logStd     float64

	normal distuv.Normal
	eval   bool
}

// New returns a new Gaussian Policy over actions of size actionSize
// for batch observations of obsSize features
func New(c Config, obsSize, actionSize, batch int) (*Policy, error) {
	if obsSize <= 0 || actionSize <= 0 || batch <= 0 {
		return nil, errors.Errorf("new: sizes must be positive "+
			"(obs=%v, action=%v, batch=%v)", obsSize, actionSize, batch)
	}

	init, err := c.InitWFn.Create()
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}

	acts := make([]*network.Activation, len(c.Hidden))
	biases := make([]bool, len(c.Hidden))
	for i := range acts {
		if acts[i], err = network.ParseActivation(c.Activation); err != nil {
			return nil, errors.Wrap(err, "new")
		}
		biases[i] = true
	}

	actor, err := network.NewMLP([]int{obsSize}, batch, actionSize,
		c.Hidden, biases, init, acts)
	if err != nil {
		return nil, errors.Wrap(err, "new: actor")
	}
	critic, err := network.NewMLP([]int{obsSize}, batch, 1, c.Hidden,
		biases, init, acts)
	if err != nil {
		return nil, errors.Wrap(err, "new: critic")
	}

	return &Policy{
		actor:      actor,
		critic:     critic,
		obsSize:    obsSize,
		actionSize: actionSize,
		batch:      batch,
		logStd:     c.LogStd,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(c.Seed),
		},
	}, nil
}

// ActionValues selects an action for each row of obs. The recurrent
// states are ignored.
func (p *Policy) ActionValues(obs *mat.Dense,
	_ []*mat.Dense) (agent.Output, error) {
	data, err := p.input(obs)
	if err != nil {
		return agent.Output{}, errors.Wrap(err, "actionValues")
	}

	mean, err := p.actor.Forward(data)
	if err != nil {
		return agent.Output{}, errors.Wrap(err, "actionValues")
	}
	values, err := p.critic.Forward(data)
	if err != nil {
		return agent.Output{}, errors.Wrap(err, "actionValues")
	}

	std := math.Exp(p.logStd)
	actions := make([]float64, len(mean))
	sigmas := make([]float64, len(mean))
	negLogp := make([]float64, p.batch)
	for i := range mean {
		sigmas[i] = std
		if p.eval {
			actions[i] = mean[i]
		} else {
			actions[i] = mean[i] + std*p.normal.Rand()
		}
		negLogp[i/p.actionSize] += negLogProb(actions[i], mean[i], std)
	}

	return agent.Output{
		Actions: mat.NewDense(p.batch, p.actionSize, actions),
		Mus:     mat.NewDense(p.batch, p.actionSize, mean),
		Sigmas:  mat.NewDense(p.batch, p.actionSize, sigmas),
		Values:  values,
		NegLogp: negLogp,
	}, nil
}

// Values returns the state value of each row of obs
func (p *Policy) Values(obs *mat.Dense) ([]float64, error) {
	data, err := p.input(obs)
	if err != nil {
		return nil, errors.Wrap(err, "values")
	}
	return p.critic.Forward(data)
}

// input returns obs as a row major slice after checking its shape
func (p *Policy) input(obs *mat.Dense) ([]float64, error) {
	r, c := obs.Dims()
	if r != p.batch || c != p.obsSize {
		return nil, errors.Errorf("expected observations of shape (%v, %v) "+
			"but got (%v, %v)", p.batch, p.obsSize, r, c)
	}
	return mat.DenseCopyOf(obs).RawMatrix().Data, nil
}

// negLogProb returns the negative log density of x under N(mu, std²)
func negLogProb(x, mu, std float64) float64 {
	z := (x - mu) / std
	return 0.5*z*z + math.Log(std) + 0.5*math.Log(2*math.Pi)
}

// ActionSize returns the dimension of actions
func (p *Policy) ActionSize() int {
	return p.actionSize
}

// Eval sets the policy to evaluation mode
func (p *Policy) Eval() {
	p.eval = true
}

// Train sets the policy to training mode
func (p *Policy) Train() {
	p.eval = false
}

// IsEval returns whether the policy is in evaluation mode
func (p *Policy) IsEval() bool {
	return p.eval
}

// params holds the serialized parameters of a Policy
type params struct {
	Actor  network.Weights
	Critic network.Weights
	LogStd float64
}

// Save gob encodes the parameters of the policy to path
func (p *Policy) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "save")
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "save")
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	err = enc.Encode(params{
		Actor:  p.actor.Weights(),
		Critic: p.critic.Weights(),
		LogStd: p.logStd,
	})
	if err != nil {
		return errors.Wrap(err, "save")
	}
	return file.Close()
}

// Load sets the parameters of the policy to those saved at path
func (p *Policy) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "load")
	}
	defer file.Close()

	var w params
	if err := gob.NewDecoder(file).Decode(&w); err != nil {
		return errors.Wrapf(err, "load: could not decode %v", path)
	}
	if err := p.actor.SetWeights(w.Actor); err != nil {
		return errors.Wrap(err, "load: actor")
	}
	if err := p.critic.SetWeights(w.Critic); err != nil {
		return errors.Wrap(err, "load: critic")
	}
	p.logStd = w.LogStd
	return nil
}
