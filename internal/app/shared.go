package app

import (
	"context"
	"strings"
	"sync"

	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

// SharedData is the user data handed to the debug messenger. The driver may
// invoke the callback from its own threads, so every access takes mu.
type SharedData struct {
	mu     sync.Mutex
	values map[string]string
}

func NewSharedData() *SharedData {
	return &SharedData{values: make(map[string]string)}
}

func (s *SharedData) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *SharedData) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *SharedData) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Snapshot returns a copy of the stored values.
func (s *SharedData) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// debugHandler builds the messenger callback. Messages are recorded by ID
// name and logged at a level derived from their severity.
func debugHandler(ctx context.Context, shared *SharedData) func(driver.Message) {
	logger := ctxlog.FromContext(ctx).With("component", "debug-messenger")
	return func(msg driver.Message) {
		shared.Set(msg.IDName, msg.Text)

		switch {
		case strings.Contains(msg.Severity, "Error"):
			logger.Error(msg.Text, "id", msg.IDName, "type", msg.Type)
		case strings.Contains(msg.Severity, "Warning"):
			logger.Warn(msg.Text, "id", msg.IDName, "type", msg.Type)
		default:
			logger.Debug(msg.Text, "id", msg.IDName, "type", msg.Type, "severity", msg.Severity)
		}
	}
}
