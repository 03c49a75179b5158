package core

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected logrus.Level
	}{
		{"debug", "debug", logrus.DebugLevel},
		{"warn", "warn", logrus.WarnLevel},
		{"unknown falls back to info", "loud", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, ok := NewLogger(tt.level).(*logrus.Logger)
			require.True(t, ok, "expected a *logrus.Logger")
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	// Should not panic or write anywhere
	logger.Printf("pass %d\n", 1)
	logger.Warnf("missing %s", "buffer")
	logger.Debugf("noop")
}
