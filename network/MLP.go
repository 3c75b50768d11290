package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP implements a multi-layered perceptron with one or more input
// nodes. Input nodes are concatenated along the feature dimension, so
// that an MLP can consume, for example, an observation and a latent
// vector as separate inputs.
//
// Each MLP owns its own computational graph and tape machine, so
// forward passes of different MLPs never interfere.
type MLP struct {
	g          *G.ExprGraph
	vm         G.VM
	inputs     []*G.Node
	features   []int
	numOutputs int
	batchSize  int
	layers     []*fcLayer

	learnables G.Nodes
	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron. The
// features parameter holds the number of features of each input node.
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit and no activation is always added such
// that given any input, the output will have outputs columns.
//
// The function works such that for index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i.
func NewMLP(features []int, batch, outputs int, hiddenSizes []int,
	biases []bool, init G.InitWFn, activations []*Activation) (*MLP, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("newMLP: at least one input is required")
	}
	if batch <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("newMLP: batch size and outputs must be "+
			"positive \n\thave(batch=%v, outputs=%v)", batch, outputs)
	}
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newMLP: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	g := G.NewGraph()

	// Set up the input nodes
	inputs := make([]*G.Node, len(features))
	totalFeatures := 0
	for i, f := range features {
		if f <= 0 {
			return nil, fmt.Errorf("newMLP: input %v must have a positive "+
				"number of features", i)
		}
		inputs[i] = G.NewMatrix(g, tensor.Float64, G.WithShape(batch, f),
			G.WithName(fmt.Sprintf("input%d", i)), G.WithInit(G.Zeroes()))
		totalFeatures += f
	}

	var input *G.Node
	if len(inputs) > 1 {
		var err error
		input, err = G.Concat(1, inputs...)
		if err != nil {
			return nil, fmt.Errorf("newMLP: could not concatenate "+
				"inputs: %v", err)
		}
	} else {
		input = inputs[0]
	}

	// Add the final linear output layer
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	acts := append(append([]*Activation{}, activations...), Identity())
	bs := append(append([]bool{}, biases...), true)

	layers := make([]*fcLayer, len(sizes))
	in := totalFeatures
	for i := range sizes {
		layers[i] = newFCLayer(g, in, sizes[i], bs[i], acts[i], init,
			fmt.Sprintf("L%d", i))
		in = sizes[i]
	}

	net := &MLP{
		g:          g,
		inputs:     inputs,
		features:   append([]int{}, features...),
		numOutputs: outputs,
		batchSize:  batch,
		layers:     layers,
	}

	pred := input
	var err error
	for i, l := range layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "newMLP: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}
	net.prediction = pred
	G.Read(net.prediction, &net.predVal)

	return net, nil
}

// Graph returns the computational graph of the MLP
func (m *MLP) Graph() *G.ExprGraph {
	return m.g
}

// BatchSize returns the number of rows of each input
func (m *MLP) BatchSize() int {
	return m.batchSize
}

// Features returns the number of features of each input node
func (m *MLP) Features() []int {
	return append([]int{}, m.features...)
}

// Outputs returns the number of outputs per sample
func (m *MLP) Outputs() int {
	return m.numOutputs
}

// SetInput sets the value of the input nodes before running the forward
// pass.
func (m *MLP) SetInput(inputs ...[]float64) error {
	if len(inputs) != len(m.inputs) {
		return fmt.Errorf("setInput: invalid number of inputs"+
			"\n\twant(%v)\n\thave(%v)", len(m.inputs), len(inputs))
	}

	for i, input := range inputs {
		if len(input) != m.features[i]*m.batchSize {
			return fmt.Errorf("setInput: invalid size of input %v"+
				"\n\twant(%v)\n\thave(%v)", i, m.features[i]*m.batchSize,
				len(input))
		}

		backing := make([]float64, len(input))
		copy(backing, input)
		inputTensor := tensor.New(
			tensor.WithBacking(backing),
			tensor.WithShape(m.inputs[i].Shape()...),
		)
		if err := G.Let(m.inputs[i], inputTensor); err != nil {
			return fmt.Errorf("setInput: %v", err)
		}
	}
	return nil
}

// Forward runs the forward pass on the argument inputs and returns a
// copy of the predictions in row major order.
func (m *MLP) Forward(inputs ...[]float64) ([]float64, error) {
	if err := m.SetInput(inputs...); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	if m.vm == nil {
		m.vm = G.NewTapeMachine(m.g)
	}
	defer m.vm.Reset()

	if err := m.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	out, ok := m.predVal.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("forward: prediction is not float64")
	}
	pred := make([]float64, len(out))
	copy(pred, out)
	return pred, nil
}

// Learnables returns the learnable nodes of the MLP
func (m *MLP) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.weights)
			if l.bias != nil {
				learnables = append(learnables, l.bias)
			}
		}
		m.learnables = G.Nodes(learnables)
	}
	return m.learnables
}

// Prediction returns the node of the computational graph the stores
// the output of the MLP
func (m *MLP) Prediction() *G.Node {
	return m.prediction
}

// Output returns the value of the last forward pass
func (m *MLP) Output() G.Value {
	return m.predVal
}

// Weights returns a copy of the learnable parameters of the MLP
func (m *MLP) Weights() Weights {
	learnables := m.Learnables()
	w := Weights{
		Shapes: make([][]int, len(learnables)),
		Data:   make([][]float64, len(learnables)),
	}
	for i, node := range learnables {
		w.Shapes[i] = append([]int{}, node.Shape()...)
		data := node.Value().Data().([]float64)
		w.Data[i] = append([]float64{}, data...)
	}
	return w
}

// SetWeights sets the learnable parameters of the MLP
func (m *MLP) SetWeights(w Weights) error {
	learnables := m.Learnables()
	if err := w.validate(learnables); err != nil {
		return fmt.Errorf("setWeights: %v", err)
	}

	for i, node := range learnables {
		backing := append([]float64{}, w.Data[i]...)
		t := tensor.New(
			tensor.WithShape(w.Shapes[i]...),
			tensor.WithBacking(backing),
		)
		if err := G.Let(node, t); err != nil {
			return fmt.Errorf("setWeights: could not set %v: %v",
				node.Name(), err)
		}
	}
	return nil
}
