package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// ConsoleLogger returns a logger writing human-readable output at the
// given level. Used by the composition root and by tests.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SilentLogger discards all output. Handy for tests that only care
// about behavior, not log lines.
func SilentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
