// Package environment outlines the contract between the rollout code and
// a vectorized simulator. A simulator steps many environment instances in
// lockstep; every observation, reward and done flag is batched with one
// row (or element) per instance.
package environment

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

// Info holds the auxiliary outputs of a single vectorized step
type Info struct {
	// AMPObs is the motion-observation window used by the adversarial
	// discriminator, one row per instance.
	AMPObs *mat.Dense

	// Terminate flags instances whose episode ended by failure rather
	// than by a timeout. Terminate[i] == 1 implies Done[i] == 1.
	Terminate []float64

	// Extra holds optional per-step scalar signals such as
	// "battle_won" or "scores".
	Extra map[string]float64
}

// Step packages together the outputs of one vectorized environment step
type Step struct {
	Obs     *mat.Dense
	Rewards []float64
	Dones   []float64
	Info    Info
}

// VecEnv implements a vectorized simulated environment. All instances
// execute in lockstep and every call blocks until the simulator has
// finished computing.
type VecEnv interface {
	// Reset resets every instance and returns the full observation batch
	Reset() (*mat.Dense, error)

	// ResetDone resets only the instances in envIDs and returns the full
	// observation batch. An empty envIDs resets nothing.
	ResetDone(envIDs []int) (*mat.Dense, error)

	// Step applies one row of actions per instance
	Step(actions *mat.Dense) (Step, error)

	NumEnvs() int
	ObservationSpec() Spec
	ActionSpec() Spec

	// TaskObsSize is the length of the trailing task-conditioning slot of
	// each observation row.
	TaskObsSize() int

	// AMPObsSize is the number of columns of Info.AMPObs
	AMPObsSize() int
}

// DemoSampler is a VecEnv which can sample motion-observation windows
// from its demonstration clips
type DemoSampler interface {
	FetchAMPObsDemo(n int) (*mat.Dense, error)
}

// Renderer is a VecEnv which can draw its current state
type Renderer interface {
	Render() (image.Image, error)
}
