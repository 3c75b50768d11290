// Package rollout collects experience from vectorized environments
// for a fixed horizon of high-level decisions. How a decision is
// executed in the environment is determined by a Stepper, so that the
// same Driver runs both flat policies and hierarchical policies which
// drive a frozen low-level controller.
package rollout

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/environment"
	"github.com/samuelfneumann/anyskill/latent"
	"github.com/samuelfneumann/anyskill/reward"
)

// Outcome is the result of executing one decision
type Outcome struct {
	Obs          *mat.Dense
	Rewards      []float64
	DiscRewards  []float64
	StyleRewards []float64
	Dones        []float64
	Terminate    []float64
	Info         environment.Info

	// Raw low-level actions of each substep, nil for flat steppers
	LLCActions []*mat.Dense
}

// Stepper executes decisions of a policy in a vectorized environment
type Stepper interface {
	Reset() (*mat.Dense, error)
	ResetDone(envIDs []int) (*mat.Dense, error)
	Step(obs, actions *mat.Dense) (Outcome, error)

	NumEnvs() int

	// Substeps returns the number of environment steps per decision
	Substeps() int
}

// Flat is a Stepper which applies actions directly to an environment
type Flat struct {
	env environment.VecEnv
}

// NewFlat returns a new Flat Stepper
func NewFlat(env environment.VecEnv) *Flat {
	return &Flat{env: env}
}

// Reset resets all environment instances
func (f *Flat) Reset() (*mat.Dense, error) {
	return f.env.Reset()
}

// ResetDone resets the environment instances envIDs
func (f *Flat) ResetDone(envIDs []int) (*mat.Dense, error) {
	return f.env.ResetDone(envIDs)
}

// Step applies actions to the environment. Discriminator and style
// rewards are zero.
func (f *Flat) Step(_, actions *mat.Dense) (Outcome, error) {
	step, err := f.env.Step(actions)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "step")
	}

	n := f.env.NumEnvs()
	terminate := step.Info.Terminate
	if terminate == nil {
		terminate = make([]float64, n)
	}
	return Outcome{
		Obs:          step.Obs,
		Rewards:      step.Rewards,
		DiscRewards:  make([]float64, n),
		StyleRewards: make([]float64, n),
		Dones:        step.Dones,
		Terminate:    terminate,
		Info:         step.Info,
	}, nil
}

// NumEnvs returns the number of environment instances
func (f *Flat) NumEnvs() int {
	return f.env.NumEnvs()
}

// Substeps returns 1
func (f *Flat) Substeps() int {
	return 1
}

// Hierarchical is a Stepper which treats actions as latent skill
// vectors and executes them through a latent.Bridge. The style reward
// of each latent action is measured against an encoded motion
// reference.
type Hierarchical struct {
	bridge    *latent.Bridge
	reference *mat.Dense
}

// NewHierarchical returns a new Hierarchical Stepper
func NewHierarchical(bridge *latent.Bridge,
	reference *mat.Dense) (*Hierarchical, error) {
	if reference == nil || reference.IsEmpty() {
		return nil, errors.Wrap(reward.ErrEmptyReference, "newHierarchical")
	}
	return &Hierarchical{bridge: bridge, reference: reference}, nil
}

// Reset resets all environment instances and writes the current task
// embedding into the observations
func (h *Hierarchical) Reset() (*mat.Dense, error) {
	obs, err := h.bridge.Env().Reset()
	if err != nil {
		return nil, errors.Wrap(err, "reset")
	}
	return obs, errors.Wrap(h.bridge.Inject(obs), "reset")
}

// ResetDone resets environment instances envIDs and writes the current
// task embedding into the observations
func (h *Hierarchical) ResetDone(envIDs []int) (*mat.Dense, error) {
	obs, err := h.bridge.Env().ResetDone(envIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resetDone")
	}
	return obs, errors.Wrap(h.bridge.Inject(obs), "resetDone")
}

// Step executes the latent actions through the bridge
func (h *Hierarchical) Step(obs, actions *mat.Dense) (Outcome, error) {
	style, err := reward.StyleReward(actions, h.reference)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "step")
	}

	res, err := h.bridge.Step(obs, actions)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "step")
	}
	return Outcome{
		Obs:          res.Obs,
		Rewards:      res.Rewards,
		DiscRewards:  res.DiscRewards,
		StyleRewards: style,
		Dones:        res.Dones,
		Terminate:    res.Terminate,
		Info:         res.Info,
		LLCActions:   res.LLCActions,
	}, nil
}

// NumEnvs returns the number of environment instances
func (h *Hierarchical) NumEnvs() int {
	return h.bridge.Env().NumEnvs()
}

// Substeps returns the number of low-level steps per decision
func (h *Hierarchical) Substeps() int {
	return h.bridge.LLCSteps()
}
