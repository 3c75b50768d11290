package latent

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/environment"
)

// ErrInvalidLLCSteps is returned when a Bridge is built with a
// non-positive number of low-level steps per decision
var ErrInvalidLLCSteps = errors.New("llc steps must be positive")

// ErrMissingAMPObs is returned when an environment step carries no
// motion observations to compute discriminator rewards from
var ErrMissingAMPObs = errors.New("environment step has no motion observations")

// LowLevel is a frozen low-level controller which maps observations and
// latent skill vectors to environment actions
type LowLevel interface {
	ComputeAction(obs, z *mat.Dense) (*mat.Dense, error)
	DiscReward(ampObs *mat.Dense) ([]float64, error)
}

// TaskSource provides the skill embedding written into the task slot
// of each observation
type TaskSource interface {
	Current() []float64
}

// Result is the outcome of a single high-level decision
type Result struct {
	Obs         *mat.Dense
	Rewards     []float64 // Task rewards averaged over low-level steps
	DiscRewards []float64 // Discriminator rewards averaged over low-level steps
	Dones       []float64
	Terminate   []float64
	Info        environment.Info

	// Raw low-level actions, one matrix per low-level step
	LLCActions []*mat.Dense
}

// Bridge executes a latent action for a fixed number of low-level
// environment steps
type Bridge struct {
	env      environment.VecEnv
	llc      LowLevel
	llcSteps int
	task     TaskSource
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithTaskSource causes the Bridge to overwrite the task slot of each
// observation returned by the environment with the current embedding
// of src
func WithTaskSource(src TaskSource) BridgeOption {
	return func(b *Bridge) {
		b.task = src
	}
}

// NewBridge returns a new Bridge which runs llcSteps low-level steps of
// env for each latent action
func NewBridge(env environment.VecEnv, llc LowLevel, llcSteps int,
	opts ...BridgeOption) (*Bridge, error) {
	if llcSteps <= 0 {
		return nil, errors.Wrapf(ErrInvalidLLCSteps, "newBridge: have %v",
			llcSteps)
	}
	if env.TaskObsSize() > env.ObservationSpec().Len() {
		return nil, errors.Errorf("newBridge: task size %v exceeds "+
			"observation length %v", env.TaskObsSize(),
			env.ObservationSpec().Len())
	}

	b := &Bridge{env: env, llc: llc, llcSteps: llcSteps}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// LLCSteps returns the number of low-level steps per decision
func (b *Bridge) LLCSteps() int {
	return b.llcSteps
}

// Env returns the environment stepped by the Bridge
func (b *Bridge) Env() environment.VecEnv {
	return b.env
}

// Inject writes the current task embedding into the task slot of obs,
// if the Bridge has a TaskSource
func (b *Bridge) Inject(obs *mat.Dense) error {
	if b.task == nil {
		return nil
	}
	return InjectTask(obs, b.env.TaskObsSize(), b.task.Current())
}

// Step runs a single high-level decision. The latent action is clamped
// to [-1, 1] and given to the low-level controller at each low-level
// step. Task and discriminator rewards are averaged over the low-level
// steps, and done and terminate flags are set if any low-level step
// reported them.
func (b *Bridge) Step(obs, action *mat.Dense) (Result, error) {
	n := b.env.NumEnvs()
	if r, _ := action.Dims(); r != n {
		return Result{}, errors.Errorf("step: expected %v latent actions "+
			"but got %v", n, r)
	}
	z := Clamp(nil, action)

	rewards := make([]float64, n)
	discRewards := make([]float64, n)
	doneCount := make([]float64, n)
	terminateCount := make([]float64, n)
	llcActions := make([]*mat.Dense, 0, b.llcSteps)

	current := obs
	var info environment.Info
	for t := 0; t < b.llcSteps; t++ {
		act, err := b.llc.ComputeAction(current, z)
		if err != nil {
			return Result{}, errors.Wrapf(err, "step: low-level step %v", t)
		}
		llcActions = append(llcActions, act)

		step, err := b.env.Step(act)
		if err != nil {
			return Result{}, errors.Wrapf(err, "step: low-level step %v", t)
		}
		current = step.Obs
		info = step.Info
		if err := b.Inject(current); err != nil {
			return Result{}, errors.Wrap(err, "step")
		}

		floats.Add(rewards, step.Rewards)
		floats.Add(doneCount, step.Dones)
		if info.Terminate != nil {
			floats.Add(terminateCount, info.Terminate)
		}

		if info.AMPObs == nil {
			return Result{}, errors.Wrapf(ErrMissingAMPObs,
				"step: low-level step %v", t)
		}
		disc, err := b.llc.DiscReward(info.AMPObs)
		if err != nil {
			return Result{}, errors.Wrapf(err, "step: low-level step %v", t)
		}
		floats.Add(discRewards, disc)
	}

	floats.Scale(1/float64(b.llcSteps), rewards)
	floats.Scale(1/float64(b.llcSteps), discRewards)
	dones := anyPositive(doneCount)
	terminate := anyPositive(terminateCount)
	info.Terminate = terminate

	return Result{
		Obs:         current,
		Rewards:     rewards,
		DiscRewards: discRewards,
		Dones:       dones,
		Terminate:   terminate,
		Info:        info,
		LLCActions:  llcActions,
	}, nil
}

// InjectTask overwrites the trailing taskSize columns of each row of
// obs with embedding
func InjectTask(obs *mat.Dense, taskSize int, embedding []float64) error {
	if taskSize == 0 {
		return nil
	}
	if len(embedding) != taskSize {
		return errors.Errorf("injectTask: embedding length %v does not "+
			"match task size %v", len(embedding), taskSize)
	}
	r, c := obs.Dims()
	if taskSize > c {
		return errors.Errorf("injectTask: task size %v exceeds "+
			"observation length %v", taskSize, c)
	}
	for i := 0; i < r; i++ {
		for j, v := range embedding {
			obs.Set(i, c-taskSize+j, v)
		}
	}
	return nil
}

// anyPositive converts counts into 0/1 flags
func anyPositive(counts []float64) []float64 {
	flags := make([]float64, len(counts))
	for i, c := range counts {
		if c > 0 {
			flags[i] = 1
		}
	}
	return flags
}
