package rollout

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultActionDump is the default file low-level actions are dumped to
const DefaultActionDump = "./output/llc_actions_1.gob"

// ActionDump is the gob encoded form of the low-level actions of a
// single decision. Data is indexed [substep][instance][dimension] in
// row major order.
type ActionDump struct {
	Substeps int
	Rows     int
	Cols     int
	Data     []float64
}

// At returns a matrix of the actions of all instances at substep t
func (a ActionDump) At(t int) *mat.Dense {
	size := a.Rows * a.Cols
	return mat.NewDense(a.Rows, a.Cols, a.Data[t*size:(t+1)*size])
}

// WriteActionDump writes actions to path, replacing any previous file
func WriteActionDump(path string, actions []*mat.Dense) error {
	dump := ActionDump{Substeps: len(actions)}
	for _, a := range actions {
		r, c := a.Dims()
		dump.Rows, dump.Cols = r, c
		dump.Data = append(dump.Data, mat.DenseCopyOf(a).RawMatrix().Data...)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "writeActionDump")
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "writeActionDump")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(dump); err != nil {
		return errors.Wrap(err, "writeActionDump")
	}
	return file.Close()
}

// ReadActionDump reads an ActionDump from path
func ReadActionDump(path string) (ActionDump, error) {
	file, err := os.Open(path)
	if err != nil {
		return ActionDump{}, errors.Wrap(err, "readActionDump")
	}
	defer file.Close()

	var dump ActionDump
	if err := gob.NewDecoder(file).Decode(&dump); err != nil {
		return ActionDump{}, errors.Wrap(err, "readActionDump")
	}
	return dump, nil
}
