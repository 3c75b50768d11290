package llc

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/samuelfneumann/anyskill/network"
)

// frozenNet evaluates a network with fixed weights at any batch size.
// One MLP is built lazily per batch size seen.
type frozenNet struct {
	features []int
	outputs  int
	arch     MLPConfig
	weights  network.Weights

	mu   sync.Mutex
	nets map[int]*network.MLP
}

// newFrozenNet returns a frozenNet with the given weights. If weights
// is nil, the weights are initialized with the initializer of arch.
func newFrozenNet(features []int, outputs int, arch MLPConfig,
	weights *network.Weights) (*frozenNet, error) {
	f := &frozenNet{
		features: features,
		outputs:  outputs,
		arch:     arch,
		nets:     make(map[int]*network.MLP),
	}

	net, err := f.build(1)
	if err != nil {
		return nil, err
	}
	if weights == nil {
		f.weights = net.Weights()
	} else {
		if err := net.SetWeights(*weights); err != nil {
			return nil, err
		}
		f.weights = *weights
	}
	f.nets[1] = net
	return f, nil
}

func (f *frozenNet) build(batch int) (*network.MLP, error) {
	init, err := f.arch.Initializer.Create()
	if err != nil {
		return nil, err
	}
	acts, err := f.arch.activations()
	if err != nil {
		return nil, err
	}
	return network.NewMLP(f.features, batch, f.outputs, f.arch.Units,
		f.arch.biases(), init, acts)
}

// forward evaluates the network on batch rows of inputs
func (f *frozenNet) forward(batch int, inputs ...[]float64) ([]float64,
	error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	net, ok := f.nets[batch]
	if !ok {
		var err error
		if net, err = f.build(batch); err != nil {
			return nil, errors.Wrap(err, "forward")
		}
		if err := net.SetWeights(f.weights); err != nil {
			return nil, errors.Wrap(err, "forward")
		}
		f.nets[batch] = net
	}
	return net.Forward(inputs...)
}
