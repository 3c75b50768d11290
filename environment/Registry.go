package environment

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config holds the task-independent settings used to construct a
// registered VecEnv
type Config struct {
	NumEnvs       int
	EpisodeLength int
	TaskObsSize   int
	Seed          uint64
}

// Constructor builds a registered VecEnv from a Config
type Constructor func(Config) (VecEnv, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register registers a task constructor under name so that it can be
// created with New. Each task package registers itself in its init
// function to avoid circular imports.
//
// Register panics if name is already registered.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("register: task %v already registered", name))
	}
	registry[name] = c
}

// Tasks returns the sorted names of all registered tasks
func Tasks() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the task registered under name. If no such task exists,
// an *UnknownTaskError naming the valid tasks is returned.
func New(name string, c Config) (VecEnv, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, &UnknownTaskError{Name: name, Valid: Tasks()}
	}
	return ctor(c)
}

// UnknownTaskError is returned when a task name has no registered
// constructor
type UnknownTaskError struct {
	Name  string
	Valid []string
}

// Error satisfies the error interface
func (u *UnknownTaskError) Error() string {
	return fmt.Sprintf("unrecognized task %q: task should be one of: [%v]",
		u.Name, strings.Join(u.Valid, ", "))
}
