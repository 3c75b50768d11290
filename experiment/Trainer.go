package experiment

import (
	"context"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/anyskill/experiment/checkpointer"
	"github.com/samuelfneumann/anyskill/experiment/tracker"
	"github.com/samuelfneumann/anyskill/logging"
	"github.com/samuelfneumann/anyskill/metrics"
	"github.com/samuelfneumann/anyskill/reward"
	"github.com/samuelfneumann/anyskill/rollout"
	"github.com/samuelfneumann/anyskill/utils/progressbar"
)

// Filenames of the saved episode trackers
const (
	RewardsFile = "episode_rewards.bin"
	LengthsFile = "episode_lengths.bin"
)

// EpochStats summarizes a single training epoch
type EpochStats struct {
	Epoch  int
	Frames int

	RewardMean float64
	RewardStd  float64
	DiscMean   float64
	DiscStd    float64
	StyleMean  float64
	StyleStd   float64

	// Running means over finished episodes. The episode reward is
	// reported per environment step.
	EpisodeReward float64
	EpisodeLength float64

	Update map[string]float64
}

// Trainer runs an experiment: each epoch collects a rollout with the
// Driver, hands it to the Updater, then reports and checkpoints.
type Trainer struct {
	driver  *rollout.Driver
	updater Updater
	epochs  int
	epoch   int

	rewards *tracker.Mean
	lengths *tracker.Mean
	saveDir string

	metrics       *metrics.Metrics
	checkpointers []checkpointer.Checkpointer
	bar           *progressbar.ProgressBar
	log           logrus.FieldLogger
}

// TrainerOption configures a Trainer
type TrainerOption func(*Trainer)

// WithEpisodeTrackers sets the trackers the Driver reports finished
// episodes to. If dir is not empty, their histories are saved there
// when Run returns.
func WithEpisodeTrackers(rewards, lengths *tracker.Mean,
	dir string) TrainerOption {
	return func(t *Trainer) {
		t.rewards = rewards
		t.lengths = lengths
		t.saveDir = dir
	}
}

// WithMetrics sets the collectors which epoch statistics are exported to
func WithMetrics(m *metrics.Metrics) TrainerOption {
	return func(t *Trainer) {
		t.metrics = m
	}
}

// WithCheckpointers registers checkpointers called after every epoch
func WithCheckpointers(c ...checkpointer.Checkpointer) TrainerOption {
	return func(t *Trainer) {
		t.checkpointers = append(t.checkpointers, c...)
	}
}

// WithProgressBar displays a progress bar of width characters on out
func WithProgressBar(out io.Writer, width int) TrainerOption {
	return func(t *Trainer) {
		t.bar = progressbar.New(out, width, t.epochs)
	}
}

// WithLogger sets the logger of the Trainer
func WithLogger(log logrus.FieldLogger) TrainerOption {
	return func(t *Trainer) {
		t.log = log
	}
}

// NewTrainer returns a Trainer running epochs epochs
func NewTrainer(driver *rollout.Driver, updater Updater, epochs int,
	opts ...TrainerOption) (*Trainer, error) {
	if epochs <= 0 {
		return nil, errors.Errorf("newTrainer: epochs must be positive, "+
			"have %v", epochs)
	}
	if updater == nil {
		updater = StatsUpdater{}
	}

	t := &Trainer{
		driver:  driver,
		updater: updater,
		epochs:  epochs,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logging.OrDiscard(t.log)
	return t, nil
}

// Run runs all remaining epochs, then saves the episode trackers. The
// trackers are saved even if an epoch fails.
func (t *Trainer) Run(ctx context.Context) (stats []EpochStats, err error) {
	defer func() {
		if t.bar != nil {
			t.bar.Close()
		}
		if saveErr := t.Save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	for t.epoch < t.epochs {
		s, err := t.RunEpoch(ctx)
		if err != nil {
			return stats, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// RunEpoch collects a single rollout and updates the policy with it
func (t *Trainer) RunEpoch(ctx context.Context) (EpochStats, error) {
	batch, err := t.driver.PlaySteps(ctx)
	if err != nil {
		return EpochStats{}, errors.Wrapf(err, "runEpoch: epoch %v",
			t.epoch+1)
	}
	update, err := t.updater.Update(ctx, batch)
	if err != nil {
		return EpochStats{}, errors.Wrapf(err, "runEpoch: epoch %v",
			t.epoch+1)
	}
	t.epoch++

	s := EpochStats{
		Epoch:  t.epoch,
		Frames: t.driver.Frames(),
		Update: update,
	}
	s.RewardMean, s.RewardStd = reward.Stats(batch.Rewards)
	s.DiscMean, s.DiscStd = reward.Stats(batch.DiscRewards)
	s.StyleMean, s.StyleStd = reward.Stats(batch.StyleRewards)
	if t.rewards != nil {
		s.EpisodeReward = t.rewards.Mean() * t.driver.RewardScale()
	}
	if t.lengths != nil {
		s.EpisodeLength = t.lengths.Mean()
	}

	t.report(s, batch.PlayedFrames)

	for _, c := range t.checkpointers {
		if err := c.Checkpoint(t.epoch); err != nil {
			return s, errors.Wrap(err, "runEpoch")
		}
	}
	return s, nil
}

// Epoch returns the number of finished epochs
func (t *Trainer) Epoch() int {
	return t.epoch
}

// report logs and exports the statistics of an epoch
func (t *Trainer) report(s EpochStats, frames int) {
	t.metrics.ObserveRewards(metrics.Combined, s.RewardMean, s.RewardStd)
	t.metrics.ObserveRewards(metrics.Disc, s.DiscMean, s.DiscStd)
	t.metrics.ObserveRewards(metrics.Style, s.StyleMean, s.StyleStd)
	t.metrics.SetEpisodeStats(s.EpisodeReward, s.EpisodeLength)
	t.metrics.AddFrames(frames)
	t.metrics.IncEpochs()

	fields := logrus.Fields{
		"epoch":          s.Epoch,
		"frames":         s.Frames,
		"reward_mean":    s.RewardMean,
		"reward_std":     s.RewardStd,
		"disc_mean":      s.DiscMean,
		"disc_std":       s.DiscStd,
		"style_mean":     s.StyleMean,
		"style_std":      s.StyleStd,
		"episode_reward": s.EpisodeReward,
		"episode_length": s.EpisodeLength,
	}
	for k, v := range s.Update {
		fields[k] = v
	}
	t.log.WithFields(fields).Info("epoch finished")

	if t.bar != nil {
		t.bar.Increment()
		t.bar.Display()
	}
}

// Save saves the histories of the episode trackers
func (t *Trainer) Save() error {
	if t.saveDir == "" {
		return nil
	}
	if t.rewards != nil {
		if err := t.rewards.Save(filepath.Join(t.saveDir,
			RewardsFile)); err != nil {
			return errors.Wrap(err, "save")
		}
	}
	if t.lengths != nil {
		if err := t.lengths.Save(filepath.Join(t.saveDir,
			LengthsFile)); err != nil {
			return errors.Wrap(err, "save")
		}
	}
	return nil
}
