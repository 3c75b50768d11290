// Package initwfn implements functionality to describe Gorgonia InitWFn
// in configuration files.
package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available
type Type string

// Available InitWFn types
const (
	GlorotU Type = "GlorotU"
	GlorotN Type = "GlorotN"
	HeU     Type = "HeU"
	HeN     Type = "HeN"
	Zeroes  Type = "Zeroes"
)

// InitWFn describes a Gorgonia InitWFn so that it can be stored in YAML
// or JSON configuration files.
type InitWFn struct {
	Type Type    `yaml:"type" json:"type" mapstructure:"type"`
	Gain float64 `yaml:"gain" json:"gain" mapstructure:"gain"`
}

// Default returns the Glorot Uniform initializer with unit gain
func Default() InitWFn {
	return InitWFn{Type: GlorotU, Gain: 1.0}
}

// Create returns the Gorgonia InitWFn described. An empty Type yields
// the Default initializer.
func (i InitWFn) Create() (G.InitWFn, error) {
	gain := i.Gain
	if gain == 0 {
		gain = 1.0
	}

	switch i.Type {
	case GlorotU, "":
		return G.GlorotU(gain), nil
	case GlorotN:
		return G.GlorotN(gain), nil
	case HeU:
		return G.HeU(gain), nil
	case HeN:
		return G.HeN(gain), nil
	case Zeroes:
		return G.Zeroes(), nil
	}
	return nil, fmt.Errorf("create: no such InitWFn type %q", i.Type)
}

// String implements the fmt.Stringer interface
func (i InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: gain=%v}", i.Type, i.Gain)
}
