package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/df07/go-progressive-renderpass/pkg/core"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warning"
}

// Console fans log messages out to every connected render stream
type Console struct {
	mu          sync.Mutex
	subscribers map[chan ConsoleMessage]struct{}
}

// NewConsole creates a console without subscribers
func NewConsole() *Console {
	return &Console{subscribers: make(map[chan ConsoleMessage]struct{})}
}

// Subscribe registers a new listener. The returned function unsubscribes
// and closes the channel.
func (c *Console) Subscribe(buffer int) (<-chan ConsoleMessage, func()) {
	ch := make(chan ConsoleMessage, buffer)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends msg to every subscriber without blocking
func (c *Console) Publish(msg ConsoleMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
			// Subscriber is behind, drop the message
		}
	}
}

// WebLogger implements core.Logger by forwarding messages to a base logger
// and publishing them on the web console
type WebLogger struct {
	sessionID string
	base      core.Logger
	console   *Console
}

// NewWebLogger creates a new web logger for a session
func NewWebLogger(sessionID string, base core.Logger, console *Console) core.Logger {
	return &WebLogger{
		sessionID: sessionID,
		base:      base,
		console:   console,
	}
}

// Printf implements core.Logger interface
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	if wl.base != nil {
		wl.base.Printf(format, args...)
	}
	wl.publish("info", format, args...)
}

// Debugf implements core.Logger interface
func (wl *WebLogger) Debugf(format string, args ...interface{}) {
	if wl.base != nil {
		wl.base.Debugf(format, args...)
	}
	wl.publish("debug", format, args...)
}

// Warnf implements core.Logger interface
func (wl *WebLogger) Warnf(format string, args ...interface{}) {
	if wl.base != nil {
		wl.base.Warnf(format, args...)
	}
	wl.publish("warning", format, args...)
}

func (wl *WebLogger) publish(level, format string, args ...interface{}) {
	if wl.console == nil {
		return
	}
	wl.console.Publish(ConsoleMessage{
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
		Level:     level,
	})
}
