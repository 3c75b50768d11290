package skill

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/anyskill/logging"
)

// Conditioner holds the skill embedding of the most recently observed
// skill command. The command is observed only when Refresh is called,
// which the decision loop does once at the start of every decision.
// Changes to the command between two calls to Refresh are therefore
// never seen mid-decision.
type Conditioner struct {
	cmd *Command
	enc Encoder
	log logrus.FieldLogger

	last      string
	embedding []float64
	encodings int
}

// NewConditioner returns a Conditioner which encodes cmd with enc. The
// current command is encoded immediately.
func NewConditioner(ctx context.Context, cmd *Command, enc Encoder,
	log logrus.FieldLogger) (*Conditioner, error) {
	c := &Conditioner{cmd: cmd, enc: enc, log: logging.OrDiscard(log)}

	text := cmd.Load()
	if err := c.encode(ctx, text); err != nil {
		return nil, errors.Wrap(err, "newConditioner")
	}
	return c, nil
}

// Refresh re-encodes the skill command if it changed since the last
// call and returns whether it changed
func (c *Conditioner) Refresh(ctx context.Context) (bool, error) {
	text := c.cmd.Load()
	if text == c.last {
		return false, nil
	}
	if err := c.encode(ctx, text); err != nil {
		return false, errors.Wrap(err, "refresh")
	}
	c.log.WithField("skill", text).Info("skill command changed")
	return true, nil
}

func (c *Conditioner) encode(ctx context.Context, text string) error {
	emb, err := c.enc.Encode(ctx, text)
	if err != nil {
		return errors.Wrapf(err, "could not encode %q", text)
	}
	if len(emb) != c.enc.Dim() {
		return errors.Errorf("encoder returned %v features for %q, "+
			"expected %v", len(emb), text, c.enc.Dim())
	}
	c.last = text
	c.embedding = emb
	c.encodings++
	return nil
}

// Current returns the embedding of the last observed command
func (c *Conditioner) Current() []float64 {
	return append([]float64{}, c.embedding...)
}

// Command returns the last observed command
func (c *Conditioner) Command() string {
	return c.last
}

// Encodings returns the number of times a command was encoded
func (c *Conditioner) Encodings() int {
	return c.encodings
}
