// Package chainlog centralises logrus setup for the node's subsystems.
// Each subsystem pulls a named, field-scoped entry rather than the global
// logger so log lines are attributable without per-call field repetition.
package chainlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses and applies a logrus level name ("debug", "info", ...),
// falling back to Info on an unrecognised value.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// For returns a logger entry scoped to the named subsystem, e.g.
// chainlog.For("validator") or chainlog.For("peerserver").
func For(subsystem string) *logrus.Entry {
	return base.WithField("subsystem", subsystem)
}
