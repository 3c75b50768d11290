// Package network implements frozen-inference and trainable feed forward
// neural networks built on Gorgonia computational graphs.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a neural network with a fixed batch size. A NeuralNet
// may take several input nodes, which are concatenated along the
// feature dimension before the first layer.
type NeuralNet interface {
	Graph() *G.ExprGraph
	BatchSize() int

	// Features returns the number of features of each input node
	Features() []int
	Outputs() int

	// SetInput sets the values of the input nodes, one slice per input
	// node in row major order.
	SetInput(inputs ...[]float64) error

	// Forward sets the inputs, runs the forward pass, and returns a copy
	// of the output in row major order.
	Forward(inputs ...[]float64) ([]float64, error)

	Learnables() G.Nodes
	Prediction() *G.Node
	Output() G.Value

	// Weights returns a copy of the learnable parameters
	Weights() Weights

	// SetWeights sets the learnable parameters
	SetWeights(Weights) error
}
