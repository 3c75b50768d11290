// Package gae implements generalized advantage estimation, GAE(λ),
// following https://arxiv.org/abs/1506.02438, over experience collected
// from a number of environment instances stepped in lockstep.
package gae

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimator computes GAE(λ) advantages. Its zero value is not useful;
// use New.
type Estimator struct {
	gamma float64 // Discount factor ℽ
	tau   float64 // λ for GAE(λ)
}

// New returns a new GAE(λ) Estimator with discount gamma and trace
// parameter tau
func New(gamma, tau float64) *Estimator {
	return &Estimator{gamma: gamma, tau: tau}
}

// Gamma returns the discount factor
func (e *Estimator) Gamma() float64 {
	return e.gamma
}

// Tau returns the GAE(λ) trace parameter
func (e *Estimator) Tau() float64 {
	return e.tau
}

// Advantages computes the advantage of each step of a rollout. Each
// argument is indexed [step][instance]. The dones flags mark steps
// after which an episode ended, so that advantages are not propagated
// across episode boundaries. The nextValues should already be zeroed
// where an episode terminated.
//
// Working backward from the last step:
//
//	δ_t = r_t + ℽ V(s_{t+1}) - V(s_t)
//	A_t = δ_t + ℽ λ (1 - done_t) A_{t+1}
func (e *Estimator) Advantages(dones, values, rewards,
	nextValues [][]float64) ([][]float64, error) {
	horizon := len(rewards)
	if len(dones) != horizon || len(values) != horizon ||
		len(nextValues) != horizon {
		return nil, errors.Errorf("advantages: inconsistent horizons "+
			"(dones=%v, values=%v, rewards=%v, nextValues=%v)", len(dones),
			len(values), horizon, len(nextValues))
	}
	if horizon == 0 {
		return [][]float64{}, nil
	}

	n := len(rewards[0])
	advantages := make([][]float64, horizon)
	lastGAE := make([]float64, n)
	delta := make([]float64, n)

	for t := horizon - 1; t >= 0; t-- {
		if len(dones[t]) != n || len(values[t]) != n ||
			len(rewards[t]) != n || len(nextValues[t]) != n {
			return nil, errors.Errorf("advantages: step %v does not have "+
				"%v instances", t, n)
		}

		copy(delta, rewards[t])
		floats.AddScaled(delta, e.gamma, nextValues[t])
		floats.Sub(delta, values[t])

		for i := range lastGAE {
			notDone := 1.0 - dones[t][i]
			lastGAE[i] = delta[i] + e.gamma*e.tau*notDone*lastGAE[i]
		}
		advantages[t] = append([]float64{}, lastGAE...)
	}
	return advantages, nil
}

// Standardize shifts and scales adv in place to have mean 0 and
// standard deviation 1
func Standardize(adv []float64) {
	if len(adv) < 2 {
		return
	}
	mean := stat.Mean(adv, nil)
	std := stat.StdDev(adv, nil) + 1e-8

	floats.AddConst(-mean, adv)
	floats.Scale(1/std, adv)
}
