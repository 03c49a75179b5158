package server

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan ConsoleMessage) ConsoleMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for console message")
		return ConsoleMessage{}
	}
}

func TestWebLogger_BasicLogging(t *testing.T) {
	console := NewConsole()
	messages, unsubscribe := console.Subscribe(10)
	defer unsubscribe()

	logger := NewWebLogger("test-session-123", nil, console)
	logger.Printf("%s\n", "Test log message")

	msg := receive(t, messages)
	assert.Equal(t, "Test log message\n", msg.Message)
	assert.Equal(t, "info", msg.Level)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)
}

func TestWebLogger_Levels(t *testing.T) {
	console := NewConsole()
	messages, unsubscribe := console.Subscribe(10)
	defer unsubscribe()

	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	logger := NewWebLogger("test-session-456", base, console)

	logger.Debugf("Restarted render with %s\n", "directLighting")
	logger.Warnf("unknown integrator %q\n", "foo")

	assert.Equal(t, "debug", receive(t, messages).Level)
	warning := receive(t, messages)
	assert.Equal(t, "warning", warning.Level)
	assert.Equal(t, "unknown integrator \"foo\"\n", warning.Message)

	// Messages are forwarded to the base logger too
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestConsole_FansOutToEverySubscriber(t *testing.T) {
	console := NewConsole()
	first, unsubscribeFirst := console.Subscribe(10)
	second, unsubscribeSecond := console.Subscribe(10)
	defer unsubscribeSecond()

	logger := NewWebLogger("test-session-789", nil, console)
	logger.Printf("Message 1\n")
	assert.Equal(t, "Message 1\n", receive(t, first).Message)
	assert.Equal(t, "Message 1\n", receive(t, second).Message)

	unsubscribeFirst()
	unsubscribeFirst() // idempotent
	_, open := <-first
	assert.False(t, open, "unsubscribe closes the channel")

	logger.Printf("Message 2\n")
	assert.Equal(t, "Message 2\n", receive(t, second).Message)
}

func TestConsole_ChannelFull(t *testing.T) {
	console := NewConsole()
	messages, unsubscribe := console.Subscribe(1)
	defer unsubscribe()

	logger := NewWebLogger("test-session-full", nil, console)
	logger.Printf("Message 1\n")
	// These must not block even though the channel is full
	logger.Printf("Message 2\n")
	logger.Printf("Message 3\n")

	assert.Equal(t, "Message 1\n", receive(t, messages).Message)
	select {
	case msg := <-messages:
		t.Errorf("expected dropped messages, got %q", msg.Message)
	default:
	}
}

func TestWebLogger_NilConsole(t *testing.T) {
	logger := NewWebLogger("test-session-nil", nil, nil)

	// This should not panic
	logger.Printf("Test message with nil console\n")
	logger.Warnf("Test warning with nil console\n")
}
