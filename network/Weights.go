package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Weights stores the learnable parameters of a NeuralNet in a form
// which can be gob encoded. Shapes[i] and Data[i] describe the i-th
// learnable node.
type Weights struct {
	Shapes [][]int
	Data   [][]float64
}

// Len returns the number of learnable nodes described
func (w Weights) Len() int {
	return len(w.Shapes)
}

// validate checks that the Weights match the shapes of nodes
func (w Weights) validate(nodes G.Nodes) error {
	if len(w.Shapes) != len(nodes) || len(w.Data) != len(nodes) {
		return fmt.Errorf("invalid number of learnables\n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(w.Shapes))
	}

	for i, node := range nodes {
		shape := node.Shape()
		if len(shape) != len(w.Shapes[i]) {
			return fmt.Errorf("learnable %v: shape mismatch\n\twant(%v)"+
				"\n\thave(%v)", i, shape, w.Shapes[i])
		}
		size := 1
		for j := range shape {
			if shape[j] != w.Shapes[i][j] {
				return fmt.Errorf("learnable %v: shape mismatch\n\twant(%v)"+
					"\n\thave(%v)", i, shape, w.Shapes[i])
			}
			size *= shape[j]
		}
		if len(w.Data[i]) != size {
			return fmt.Errorf("learnable %v: expected %v values but got %v",
				i, size, len(w.Data[i]))
		}
	}
	return nil
}
