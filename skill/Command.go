// Package skill implements the live skill command: a text command
// which may be replaced at any time by a console reader, its encoding
// into a skill embedding, and the conditioner which re-encodes the
// command at decision boundaries.
package skill

import "sync/atomic"

// DefaultCommand is the skill command used when none is configured
const DefaultCommand = "put up your hand"

// Command is a skill command shared between a writer, such as a
// console reader, and the decision loop. Writes replace the command
// atomically and readers always see a complete command.
type Command struct {
	text atomic.Pointer[string]
}

// NewCommand returns a Command holding text
func NewCommand(text string) *Command {
	c := &Command{}
	c.Store(text)
	return c
}

// Load returns the current command
func (c *Command) Load() string {
	p := c.text.Load()
	if p == nil {
		return ""
	}
	return *p
}

// Store replaces the current command
func (c *Command) Store(text string) {
	c.text.Store(&text)
}
