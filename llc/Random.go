package llc

import (
	"github.com/pkg/errors"
)

// NewRandom returns an untrained Checkpoint for the architecture
// described by config. Normalizers are set to the identity.
func NewRandom(config Config, obsSize, actionSize,
	ampObsSize int) (Checkpoint, error) {
	if err := config.Validate(); err != nil {
		return Checkpoint{}, errors.Wrap(err, "newRandom")
	}
	latentDim := config.Params.Config.LatentDim
	net := config.Params.Network

	actor, err := newFrozenNet([]int{obsSize, latentDim}, actionSize,
		net.MLP, nil)
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "newRandom: actor")
	}
	disc, err := newFrozenNet([]int{ampObsSize}, 1, net.Disc, nil)
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "newRandom: discriminator")
	}
	enc, err := newFrozenNet([]int{ampObsSize}, latentDim, net.Enc, nil)
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "newRandom: encoder")
	}

	return Checkpoint{
		ObsSize:    obsSize,
		ActionSize: actionSize,
		AMPObsSize: ampObsSize,
		LatentDim:  latentDim,
		Actor:      actor.weights,
		Disc:       disc.weights,
		Enc:        enc.weights,
		ObsNorm:    IdentityNormalizer(obsSize),
		AMPNorm:    IdentityNormalizer(ampObsSize),
	}, nil
}
