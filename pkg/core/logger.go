package core

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewDefaultLogger creates a logrus logger writing text to stderr at info level
func NewDefaultLogger() Logger {
	return NewLogger("info")
}

// NewLogger creates a logrus logger at the named level.
// Unknown level names fall back to info.
func NewLogger(level string) Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

// NewDiscardLogger creates a logger that drops every message (useful in tests)
func NewDiscardLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
