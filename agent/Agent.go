// Package agent defines the high-level policies which select latent
// skill vectors for a frozen low-level controller.
package agent

import (
	"gonum.org/v1/gonum/mat"
)

// Output is the result of evaluating a Policy on a batch of
// observations. Row i of each matrix and element i of each slice
// corresponds to environment instance i.
type Output struct {
	Actions *mat.Dense
	Mus     *mat.Dense
	Sigmas  *mat.Dense
	Values  []float64
	NegLogp []float64

	// States holds the recurrent state after the forward pass, nil
	// for feed forward policies
	States []*mat.Dense
}

// Policy is a high-level policy with a state value critic.
//
// In training mode, actions are sampled from the policy. In evaluation
// mode, the policy mean is returned as the action.
type Policy interface {
	// ActionValues selects actions for each row of obs. The states
	// argument is the recurrent state of each instance and is ignored
	// by feed forward policies.
	ActionValues(obs *mat.Dense, states []*mat.Dense) (Output, error)

	// Values returns the critic's state value of each row of obs
	Values(obs *mat.Dense) ([]float64, error)

	// ActionSize returns the dimension of actions
	ActionSize() int

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Recurrent is a Policy with recurrent state
type Recurrent interface {
	Policy

	// InitialStates returns zeroed recurrent states for batch
	// instances, one matrix per recurrent layer with one row per
	// instance
	InitialStates(batch int) []*mat.Dense
}

// Saver is a Policy whose parameters can be saved to a file
type Saver interface {
	Save(path string) error
}
