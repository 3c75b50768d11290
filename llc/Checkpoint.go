package llc

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/samuelfneumann/anyskill/network"
)

// Checkpoint holds the trained parameters of a low-level controller
type Checkpoint struct {
	ObsSize    int
	ActionSize int
	AMPObsSize int
	LatentDim  int

	Actor network.Weights
	Disc  network.Weights
	Enc   network.Weights

	ObsNorm Normalizer
	AMPNorm Normalizer
}

// Save gob encodes the Checkpoint to path, creating any missing
// parent directories
func (c Checkpoint) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "save")
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "save")
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(c); err != nil {
		return errors.Wrapf(err, "save: could not encode checkpoint %v",
			path)
	}
	return file.Close()
}

// LoadCheckpoint decodes a Checkpoint from path. An empty path results
// in ErrNoCheckpoint.
func LoadCheckpoint(path string) (Checkpoint, error) {
	if path == "" {
		return Checkpoint{}, ErrNoCheckpoint
	}

	file, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "loadCheckpoint")
	}
	defer file.Close()

	var c Checkpoint
	dec := gob.NewDecoder(file)
	if err := dec.Decode(&c); err != nil {
		return Checkpoint{}, errors.Wrapf(err, "loadCheckpoint: could not "+
			"decode %v", path)
	}
	return c, nil
}
