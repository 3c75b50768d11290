// Package checkpointer implements periodic saving of trained objects
// during an experiment
package checkpointer

// Saver is an object that can save itself to a file
type Saver interface {
	Save(path string) error
}

// Checkpointer checkpoints/saves objects based on the number of
// finished epochs
type Checkpointer interface {
	Checkpoint(epoch int) error
}
