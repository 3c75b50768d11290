// Package logging constructs the loggers used throughout a run
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Supported log formats
const (
	TextFormat = "text"
	JSONFormat = "json"
)

// New returns a logger writing to standard error at the given level
// ("debug", "info", ...) and format ("text" or "json")
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is like New but writes to out
func NewWithOutput(out io.Writer, level, format string) (*logrus.Logger,
	error) {
	log := logrus.New()
	log.SetOutput(out)

	if level == "" {
		level = logrus.InfoLevel.String()
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case TextFormat, "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case JSONFormat:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("new: unknown log format %q", format)
	}
	return log, nil
}

// Discard returns a logger which drops everything
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns log, or a discarding logger if log is nil
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}
