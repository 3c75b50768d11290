package skill

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/anyskill/logging"
)

// Prompt is shown before each skill command is read from the console
const Prompt = "please input the command: "

// LineSource is a source of lines of text, such as a console
type LineSource interface {
	Readline() (string, error)
	Close() error
}

// NewConsole returns a LineSource which reads from standard input
func NewConsole() (LineSource, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           readline.NewCancelableStdin(os.Stdin),
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return nil, errors.Wrap(err, "newConsole")
	}
	return rl, nil
}

// Reader reads skill commands, one per line, from a LineSource and
// stores each into a Command
type Reader struct {
	src LineSource
	cmd *Command
	log logrus.FieldLogger
}

// NewReader returns a new Reader
func NewReader(src LineSource, cmd *Command, log logrus.FieldLogger) *Reader {
	return &Reader{src: src, cmd: cmd, log: logging.OrDiscard(log)}
}

// Run reads commands until the source is exhausted or interrupted, or
// ctx is cancelled. Blank lines are ignored. The source is closed when
// Run returns. Cancelling ctx closes it early so that a blocked read
// returns.
func (r *Reader) Run(ctx context.Context) error {
	var once sync.Once
	closeSrc := func() {
		once.Do(func() { r.src.Close() })
	}
	defer closeSrc()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeSrc()
		case <-done:
		}
	}()

	for {
		line, err := r.src.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "run")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.cmd.Store(line)
		r.log.WithField("skill", line).Debug("read skill command")
	}
}
