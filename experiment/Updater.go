// Package experiment implements the training loop which alternates
// between collecting rollouts and updating the high-level policy
package experiment

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/anyskill/rollout"
)

// Updater consumes a rollout batch, updates the policy from it, and
// returns named statistics of the update
type Updater interface {
	Update(ctx context.Context, batch rollout.Batch) (map[string]float64,
		error)
}

// StatsUpdater is an Updater which only reports statistics of the
// batch and leaves the policy untouched. It is useful to monitor
// rollouts of a fixed policy, and as a stand-in for an external
// optimizer.
type StatsUpdater struct{}

// Update implements Updater
func (StatsUpdater) Update(ctx context.Context,
	batch rollout.Batch) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "update")
	}
	if len(batch.Advantages) == 0 {
		return nil, errors.New("update: empty batch")
	}

	advMean, advStd := stat.MeanStdDev(batch.Advantages, nil)
	stats := map[string]float64{
		"advantage_mean": advMean,
		"advantage_std":  advStd,
		"return_mean":    stat.Mean(batch.Returns, nil),
		"value_mean":     stat.Mean(batch.Values, nil),
		"neglogp_mean":   stat.Mean(batch.NegLogp, nil),
		"dones":          floats.Sum(batch.Dones),
	}
	return stats, nil
}
