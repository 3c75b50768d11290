package llc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/environment"
	"github.com/samuelfneumann/anyskill/latent"
	"github.com/samuelfneumann/anyskill/utils/floatutils"
)

// DefaultEncodeBatch is the number of demonstration motion windows
// encoded into the motion reference
const DefaultEncodeBatch = 128

// minDiscProb bounds the probability used in the discriminator reward
// away from zero
const minDiscProb = 1e-4

// ErrNoCheckpoint is returned when no checkpoint path was given
var ErrNoCheckpoint = errors.New("no low-level controller checkpoint " +
	"specified")

// LoadConfig describes where to find a low-level controller
type LoadConfig struct {
	ConfigFile  string // YAML architecture description
	Checkpoint  string // Gob encoded Checkpoint
	EncodeBatch int    // Number of demo windows to encode, default 128
}

// Option configures a Controller
type Option func(*Controller)

// WithRescale causes actions to be rescaled from [-1, 1] to the
// interval [low, high] in each dimension
func WithRescale(low, high []float64) Option {
	return func(c *Controller) {
		c.rescale = true
		c.low = append([]float64{}, low...)
		c.high = append([]float64{}, high...)
	}
}

// WithActionBounds is WithRescale with the bounds of an action Spec
func WithActionBounds(spec environment.Spec) Option {
	return WithRescale(spec.LowerBound.RawVector().Data,
		spec.UpperBound.RawVector().Data)
}

// Controller is a frozen low-level controller. After construction, a
// Controller never changes.
type Controller struct {
	config     Config
	obsSize    int
	taskSize   int
	actionSize int
	ampObsSize int
	latentDim  int

	actor *frozenNet
	disc  *frozenNet
	enc   *frozenNet

	obsNorm Normalizer
	ampNorm Normalizer

	rescale   bool
	low, high []float64

	reference *mat.Dense
}

// New returns a Controller for observations with a trailing task slot
// of taskSize features
func New(config Config, ckpt Checkpoint, taskSize int,
	opts ...Option) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}
	if ckpt.LatentDim != config.Params.Config.LatentDim {
		return nil, errors.Errorf("new: checkpoint latent dimension %v "+
			"does not match configured %v", ckpt.LatentDim,
			config.Params.Config.LatentDim)
	}
	if ckpt.ObsSize <= 0 || ckpt.ActionSize <= 0 || ckpt.AMPObsSize <= 0 {
		return nil, errors.Errorf("new: invalid checkpoint sizes (obs=%v, "+
			"action=%v, amp=%v)", ckpt.ObsSize, ckpt.ActionSize,
			ckpt.AMPObsSize)
	}
	if taskSize < 0 {
		return nil, errors.Errorf("new: negative task size %v", taskSize)
	}
	if err := ckpt.ObsNorm.validate(ckpt.ObsSize); err != nil {
		return nil, errors.Wrap(err, "new: observation normalizer")
	}
	if err := ckpt.AMPNorm.validate(ckpt.AMPObsSize); err != nil {
		return nil, errors.Wrap(err, "new: motion normalizer")
	}

	net := config.Params.Network
	actor, err := newFrozenNet([]int{ckpt.ObsSize, ckpt.LatentDim},
		ckpt.ActionSize, net.MLP, &ckpt.Actor)
	if err != nil {
		return nil, errors.Wrap(err, "new: actor")
	}
	disc, err := newFrozenNet([]int{ckpt.AMPObsSize}, 1, net.Disc,
		&ckpt.Disc)
	if err != nil {
		return nil, errors.Wrap(err, "new: discriminator")
	}
	enc, err := newFrozenNet([]int{ckpt.AMPObsSize}, ckpt.LatentDim,
		net.Enc, &ckpt.Enc)
	if err != nil {
		return nil, errors.Wrap(err, "new: encoder")
	}

	c := &Controller{
		config:     config,
		obsSize:    ckpt.ObsSize,
		taskSize:   taskSize,
		actionSize: ckpt.ActionSize,
		ampObsSize: ckpt.AMPObsSize,
		latentDim:  ckpt.LatentDim,
		actor:      actor,
		disc:       disc,
		enc:        enc,
		obsNorm:    ckpt.ObsNorm,
		ampNorm:    ckpt.AMPNorm,
	}
	if !config.Params.Config.NormalizeInput {
		c.obsNorm = Normalizer{}
	}
	if !config.Params.Config.NormalizeAMP {
		c.ampNorm = Normalizer{}
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.rescale && (len(c.low) != c.actionSize ||
		len(c.high) != c.actionSize) {
		return nil, errors.Errorf("new: rescale bounds must have %v "+
			"dimensions, have (%v, %v)", c.actionSize, len(c.low),
			len(c.high))
	}
	return c, nil
}

// Load reads the architecture and checkpoint described by cfg and
// returns a Controller for env. The encoded motion reference is
// computed once on demonstration windows fetched from env, which must
// implement environment.DemoSampler.
func Load(cfg LoadConfig, env environment.VecEnv,
	opts ...Option) (*Controller, error) {
	if cfg.Checkpoint == "" {
		return nil, ErrNoCheckpoint
	}

	config, err := ReadConfig(cfg.ConfigFile)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	ckpt, err := LoadCheckpoint(cfg.Checkpoint)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	taskSize := env.TaskObsSize()
	obsSize := env.ObservationSpec().Len() - taskSize
	if obsSize != ckpt.ObsSize {
		return nil, errors.Errorf("load: checkpoint expects %v observation "+
			"features but environment provides %v", ckpt.ObsSize, obsSize)
	}
	if env.ActionSpec().Len() != ckpt.ActionSize {
		return nil, errors.Errorf("load: checkpoint expects %v action "+
			"dimensions but environment has %v", ckpt.ActionSize,
			env.ActionSpec().Len())
	}
	if env.AMPObsSize() != ckpt.AMPObsSize {
		return nil, errors.Errorf("load: checkpoint expects %v motion "+
			"features but environment provides %v", ckpt.AMPObsSize,
			env.AMPObsSize())
	}

	c, err := New(config, ckpt, taskSize, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	sampler, ok := env.(environment.DemoSampler)
	if !ok {
		return nil, errors.New("load: environment does not provide " +
			"demonstration motions")
	}
	batch := cfg.EncodeBatch
	if batch <= 0 {
		batch = DefaultEncodeBatch
	}
	demos, err := sampler.FetchAMPObsDemo(batch)
	if err != nil {
		return nil, errors.Wrap(err, "load: could not fetch demos")
	}
	if err := c.SetReference(demos); err != nil {
		return nil, errors.Wrap(err, "load")
	}
	return c, nil
}

// SetReference encodes demos and stores them as the encoded motion
// reference. It is called once, during construction.
func (c *Controller) SetReference(demos *mat.Dense) error {
	if c.reference != nil {
		return errors.New("setReference: motion reference already set")
	}
	ref, err := c.EncodeMotion(demos)
	if err != nil {
		return errors.Wrap(err, "setReference")
	}
	c.reference = ref
	return nil
}

// ComputeAction returns the low-level action for each row of obs given
// the latent skill vectors z. The trailing task slot of obs is
// stripped, the remaining features are normalized, and z is
// L2-normalized before both are given to the actor. The actor's mean
// action is clamped to [-1, 1] and rescaled to the action bounds if
// the Controller was built WithRescale.
func (c *Controller) ComputeAction(obs, z *mat.Dense) (*mat.Dense, error) {
	n, cols := obs.Dims()
	if cols-c.taskSize != c.obsSize {
		return nil, errors.Errorf("computeAction: expected %v observation "+
			"features but got %v", c.obsSize+c.taskSize, cols)
	}
	if zr, zc := z.Dims(); zr != n || zc != c.latentDim {
		return nil, errors.Errorf("computeAction: expected latent shape "+
			"(%v, %v) but got (%v, %v)", n, c.latentDim, zr, zc)
	}

	llcObs := c.obsNorm.Apply(obs.Slice(0, n, 0, c.obsSize))
	normZ, err := latent.Normalize(nil, z)
	if err != nil {
		return nil, errors.Wrap(err, "computeAction")
	}

	out, err := c.actor.forward(n, llcObs.RawMatrix().Data,
		normZ.RawMatrix().Data)
	if err != nil {
		return nil, errors.Wrap(err, "computeAction")
	}

	floatutils.ClipSlice(out, -1, 1)
	if c.rescale {
		for i, a := range out {
			j := i % c.actionSize
			out[i] = a*(c.high[j]-c.low[j])/2 + (c.high[j]+c.low[j])/2
		}
	}
	return mat.NewDense(n, c.actionSize, out), nil
}

// DiscReward returns the discriminator reward for each row of ampObs
func (c *Controller) DiscReward(ampObs *mat.Dense) ([]float64, error) {
	n, cols := ampObs.Dims()
	if cols != c.ampObsSize {
		return nil, errors.Errorf("discReward: expected %v motion features "+
			"but got %v", c.ampObsSize, cols)
	}

	normed := c.ampNorm.Apply(ampObs)
	logits, err := c.disc.forward(n, normed.RawMatrix().Data)
	if err != nil {
		return nil, errors.Wrap(err, "discReward")
	}

	scale := c.config.Params.Config.DiscRewardScale
	rewards := make([]float64, n)
	for i, logit := range logits {
		prob := 1 / (1 + math.Exp(-logit))
		rewards[i] = -math.Log(math.Max(1-prob, minDiscProb)) * scale
	}
	return rewards, nil
}

// EncodeMotion returns the unit-norm latent encoding of each row of
// ampObs
func (c *Controller) EncodeMotion(ampObs *mat.Dense) (*mat.Dense, error) {
	n, cols := ampObs.Dims()
	if cols != c.ampObsSize {
		return nil, errors.Errorf("encodeMotion: expected %v motion "+
			"features but got %v", c.ampObsSize, cols)
	}

	normed := c.ampNorm.Apply(ampObs)
	out, err := c.enc.forward(n, normed.RawMatrix().Data)
	if err != nil {
		return nil, errors.Wrap(err, "encodeMotion")
	}
	enc, err := latent.Normalize(nil, mat.NewDense(n, c.latentDim, out))
	if err != nil {
		return nil, errors.Wrap(err, "encodeMotion")
	}
	return enc, nil
}

// EncodedReference returns a copy of the encoded motion reference, or
// nil if no reference was set
func (c *Controller) EncodedReference() *mat.Dense {
	if c.reference == nil {
		return nil
	}
	return mat.DenseCopyOf(c.reference)
}

// LatentDim returns the dimension of latent skill vectors
func (c *Controller) LatentDim() int {
	return c.latentDim
}

// ObsSize returns the number of observation features seen by the
// actor, excluding the task slot
func (c *Controller) ObsSize() int {
	return c.obsSize
}

// TaskSize returns the size of the stripped task slot
func (c *Controller) TaskSize() int {
	return c.taskSize
}

// ActionSize returns the number of action dimensions
func (c *Controller) ActionSize() int {
	return c.actionSize
}

// Config returns the architecture description of the Controller
func (c *Controller) Config() Config {
	return c.config
}
