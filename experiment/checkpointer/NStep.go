package checkpointer

import "github.com/pkg/errors"

// nStep implements checkpointing every N epochs
type nStep struct {
	interval int
	object   Saver

	// filename returns the filename of the file to save the object in.
	//
	// If each object should be saved in a separate file with an
	// incremented number as a suffix (e.g. hlc1.gob, ..., hlcK.gob),
	// use FilenameEnumerator. If the name does not matter, use
	// FileTimer:
	//
	// n := NewNStep(10, object, FileTimer("hlc", ".gob"))
	//
	// A function returning a constant overwrites a single checkpoint.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n epochs
func NewNStep(n int, object Saver, filename func() string) (Checkpointer,
	error) {
	if n <= 0 {
		return nil, errors.Errorf("newNStep: interval must be positive, "+
			"have %v", n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the tracked object if epoch is a multiple of the
// interval. Epoch 0 is never checkpointed.
func (n *nStep) Checkpoint(epoch int) error {
	if epoch <= 0 || epoch%n.interval != 0 {
		return nil
	}
	filename := n.filename()
	if err := n.object.Save(filename); err != nil {
		return errors.Wrapf(err, "checkpoint: epoch %v", epoch)
	}
	return nil
}
