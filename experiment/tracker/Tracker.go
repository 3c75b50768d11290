// Package tracker implements Trackers, which accumulate statistics of
// finished episodes during an experiment and save them to disk
package tracker

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Mean tracks a running mean over the most recent window values it
// has been updated with. The full history of values is kept so that it
// can be saved after the experiment.
//
// Mean is safe for concurrent use.
type Mean struct {
	mu      sync.Mutex
	window  int
	recent  []float64
	next    int
	history []float64
}

// NewMean returns a new Mean tracking the mean of the last window
// values
func NewMean(window int) (*Mean, error) {
	if window <= 0 {
		return nil, errors.Errorf("newMean: window must be positive, "+
			"have %v", window)
	}
	return &Mean{
		window: window,
		recent: make([]float64, 0, window),
	}, nil
}

// Update adds values to the tracker, evicting the oldest values once
// the window is full
func (m *Mean) Update(values []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range values {
		if len(m.recent) < m.window {
			m.recent = append(m.recent, v)
		} else {
			m.recent[m.next] = v
		}
		m.next = (m.next + 1) % m.window
	}
	m.history = append(m.history, values...)
}

// Mean returns the mean over the window, or 0 if nothing has been
// tracked yet
func (m *Mean) Mean() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.recent) == 0 {
		return 0
	}
	return stat.Mean(m.recent, nil)
}

// Len returns the number of values currently in the window
func (m *Mean) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recent)
}

// History returns a copy of every value tracked so far
func (m *Mean) History() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64{}, m.history...)
}

// Save saves the history of tracked values to filename
func (m *Mean) Save(filename string) error {
	data := m.History()

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "save")
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "save: could not create data file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return errors.Wrap(err, "save: could not encode data")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "save: could not close data file")
	}
	return nil
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "loadData: could not open data file")
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "loadData: could not decode data")
	}
	return data, nil
}
