// Package logging builds the logrus logger shared by the CLI and the server.
package logging

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// New returns a text logger writing to w. Debug enables debug level;
// otherwise only warnings and errors are printed so regular command
// output stays clean.
func New(debug bool, w io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.TextFormatter{
		DisableTimestamp: !debug,
		FullTimestamp:    true,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// Discard returns a logger that drops everything. Used as the default when
// a component is built without a logger.
func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}
