package rollout

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/agent"
	"github.com/samuelfneumann/anyskill/buffer/gae"
	"github.com/samuelfneumann/anyskill/logging"
	"github.com/samuelfneumann/anyskill/reward"
)

// Estimator estimates advantages from [step][instance] grids
type Estimator interface {
	Advantages(dones, values, rewards, nextValues [][]float64) ([][]float64,
		error)
}

// Tracker accumulates statistics of finished episodes
type Tracker interface {
	Update(values []float64)
}

// Config configures a Driver
type Config struct {
	Horizon   int     // Number of decisions per rollout
	NumAgents int     // Number of agents sharing a done flag
	Gamma     float64 // Discount for the default estimator
	Tau       float64 // GAE(λ) trace parameter for the default estimator

	Weights            reward.Weights
	NormalizeAdvantage bool

	// If not empty, the raw low-level actions of every decision are
	// written to this file, overwriting the previous decision's
	ActionDump string
}

// Batch is a flattened rollout. Row (or element) i*horizon + t holds
// step t of instance i.
type Batch struct {
	Obs     *mat.Dense
	Actions *mat.Dense
	Mus     *mat.Dense
	Sigmas  *mat.Dense

	Values       []float64
	NegLogp      []float64
	Rewards      []float64 // Composed rewards
	TaskRewards  []float64
	DiscRewards  []float64
	StyleRewards []float64
	Dones        []float64
	Returns      []float64
	Advantages   []float64

	PlayedFrames int
}

// Driver runs a policy through a Stepper for a fixed horizon of
// decisions per rollout. Episodes are not aligned with rollouts: the
// Driver keeps the current observations and per-instance episode
// counters between calls to PlaySteps.
type Driver struct {
	cfg       Config
	stepper   Stepper
	policy    agent.Policy
	estimator Estimator
	composer  reward.Composer
	log       logrus.FieldLogger

	rewardTracker Tracker
	lengthTracker Tracker

	obs            *mat.Dense
	doneIndices    []int
	currentRewards []float64
	currentLengths []float64
	rnn            *RNNState
	frames         int
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithEstimator sets the advantage estimator
func WithEstimator(e Estimator) DriverOption {
	return func(d *Driver) {
		d.estimator = e
	}
}

// WithTrackers sets trackers which receive the cumulative reward and
// length of each finished episode
func WithTrackers(rewards, lengths Tracker) DriverOption {
	return func(d *Driver) {
		d.rewardTracker = rewards
		d.lengthTracker = lengths
	}
}

// WithLogger sets the logger of the Driver
func WithLogger(log logrus.FieldLogger) DriverOption {
	return func(d *Driver) {
		d.log = log
	}
}

// NewDriver returns a new Driver
func NewDriver(stepper Stepper, policy agent.Policy, cfg Config,
	opts ...DriverOption) (*Driver, error) {
	if cfg.Horizon <= 0 {
		return nil, errors.Errorf("newDriver: horizon must be positive, "+
			"have %v", cfg.Horizon)
	}
	if cfg.NumAgents <= 0 {
		return nil, errors.Errorf("newDriver: numAgents must be positive, "+
			"have %v", cfg.NumAgents)
	}

	n := stepper.NumEnvs()
	d := &Driver{
		cfg:            cfg,
		stepper:        stepper,
		policy:         policy,
		estimator:      gae.New(cfg.Gamma, cfg.Tau),
		composer:       reward.NewComposer(cfg.Weights),
		currentRewards: make([]float64, n),
		currentLengths: make([]float64, n),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrDiscard(d.log)

	if rec, ok := policy.(agent.Recurrent); ok {
		d.rnn = NewRNNState(rec.InitialStates(n))
	}
	return d, nil
}

// RewardScale returns the factor by which per-decision rewards are
// scaled to report rewards per environment step. Hierarchical steppers
// average rewards over their substeps.
func (d *Driver) RewardScale() float64 {
	return float64(d.stepper.Substeps())
}

// RNNState returns the recurrent state of the policy, or nil for feed
// forward policies
func (d *Driver) RNNState() *RNNState {
	return d.rnn
}

// Frames returns the total number of decisions taken across all
// instances
func (d *Driver) Frames() int {
	return d.frames
}

// PlaySteps collects a rollout of cfg.Horizon decisions for all
// environment instances and returns it flattened, together with
// returns and advantages computed from the composed reward.
func (d *Driver) PlaySteps(ctx context.Context) (Batch, error) {
	if d.obs == nil {
		obs, err := d.stepper.Reset()
		if err != nil {
			return Batch{}, errors.Wrap(err, "playSteps")
		}
		d.obs = obs
	}

	n := d.stepper.NumEnvs()
	buf := NewBuffer(d.cfg.Horizon, n)
	for t := 0; t < d.cfg.Horizon; t++ {
		if err := ctx.Err(); err != nil {
			return Batch{}, errors.Wrap(err, "playSteps")
		}
		if err := d.step(t, buf); err != nil {
			return Batch{}, errors.Wrapf(err, "playSteps: step %v", t)
		}
	}
	d.frames += d.cfg.Horizon * n

	return d.finish(buf)
}

// step takes a single decision for all instances and stores it in buf
func (d *Driver) step(t int, buf *Buffer) error {
	if len(d.doneIndices) > 0 {
		obs, err := d.stepper.ResetDone(d.doneIndices)
		if err != nil {
			return err
		}
		d.obs = obs
	}

	var states []*mat.Dense
	if d.rnn != nil {
		states = d.rnn.States()
	}
	out, err := d.policy.ActionValues(d.obs, states)
	if err != nil {
		return err
	}
	if d.rnn != nil && out.States != nil {
		d.rnn.Set(out.States)
	}

	res, err := d.stepper.Step(d.obs, out.Actions)
	if err != nil {
		return err
	}
	if d.cfg.ActionDump != "" && res.LLCActions != nil {
		if err := WriteActionDump(d.cfg.ActionDump, res.LLCActions); err != nil {
			return err
		}
	}

	// Bootstrap from the next state unless the episode terminated
	nextValues, err := d.policy.Values(res.Obs)
	if err != nil {
		return err
	}
	for i := range nextValues {
		nextValues[i] *= 1 - res.Terminate[i]
	}

	buf.Store(t, Transition{
		Obs:          d.obs,
		Actions:      out.Actions,
		Mus:          out.Mus,
		Sigmas:       out.Sigmas,
		Values:       out.Values,
		NegLogp:      out.NegLogp,
		Rewards:      res.Rewards,
		DiscRewards:  res.DiscRewards,
		StyleRewards: res.StyleRewards,
		NextValues:   nextValues,
		Dones:        res.Dones,
	})
	d.obs = res.Obs

	d.track(res.Rewards, res.Dones)
	if d.rnn != nil {
		d.rnn.ResetRows(AllDoneIndices(res.Dones))
	}
	d.doneIndices = DoneIndices(res.Dones, d.cfg.NumAgents)
	return nil
}

// track updates the per-instance episode counters. Counters of
// finished episodes are reported to the trackers, then reset.
func (d *Driver) track(rewards, dones []float64) {
	floats.Add(d.currentRewards, rewards)
	floats.AddConst(1, d.currentLengths)

	indices := DoneIndices(dones, d.cfg.NumAgents)
	if len(indices) > 0 {
		finishedRewards := make([]float64, len(indices))
		finishedLengths := make([]float64, len(indices))
		for k, i := range indices {
			finishedRewards[k] = d.currentRewards[i]
			finishedLengths[k] = d.currentLengths[i]
		}
		if d.rewardTracker != nil {
			d.rewardTracker.Update(finishedRewards)
		}
		if d.lengthTracker != nil {
			d.lengthTracker.Update(finishedLengths)
		}
		d.log.WithField("episodes", len(indices)).Debug("episodes finished")
	}

	for i, done := range dones {
		notDone := 1 - done
		d.currentRewards[i] *= notDone
		d.currentLengths[i] *= notDone
	}
}

// finish composes rewards, estimates advantages, and flattens buf
func (d *Driver) finish(buf *Buffer) (Batch, error) {
	horizon := buf.Horizon()
	combined := make([][]float64, horizon)
	for t := 0; t < horizon; t++ {
		combined[t] = d.composer.Compose(buf.Rewards[t], buf.DiscRewards[t],
			buf.StyleRewards[t])
	}

	advantages, err := d.estimator.Advantages(buf.Dones, buf.Values,
		combined, buf.NextValues)
	if err != nil {
		return Batch{}, errors.Wrap(err, "finish")
	}

	returns := make([][]float64, horizon)
	for t := range returns {
		returns[t] = append([]float64{}, advantages[t]...)
		floats.Add(returns[t], buf.Values[t])
	}

	flatAdv := SwapAndFlatten(advantages)
	if d.cfg.NormalizeAdvantage {
		gae.Standardize(flatAdv)
	}

	return Batch{
		Obs:          SwapAndFlattenRows(buf.Obs),
		Actions:      SwapAndFlattenRows(buf.Actions),
		Mus:          SwapAndFlattenRows(buf.Mus),
		Sigmas:       SwapAndFlattenRows(buf.Sigmas),
		Values:       SwapAndFlatten(buf.Values),
		NegLogp:      SwapAndFlatten(buf.NegLogp),
		Rewards:      SwapAndFlatten(combined),
		TaskRewards:  SwapAndFlatten(buf.Rewards),
		DiscRewards:  SwapAndFlatten(buf.DiscRewards),
		StyleRewards: SwapAndFlatten(buf.StyleRewards),
		Dones:        SwapAndFlatten(buf.Dones),
		Returns:      SwapAndFlatten(returns),
		Advantages:   flatAdv,
		PlayedFrames: horizon * buf.NumEnvs(),
	}, nil
}
