package testutil

import (
	"context"
	"testing"
	"time"
)

// Default timeouts for test contexts.
const (
	// DefaultBrowserTimeout covers launching Chrome and a few page loads.
	DefaultBrowserTimeout = time.Minute

	// DefaultAgentTimeout covers one live agent turn.
	DefaultAgentTimeout = 3 * time.Minute

	// DefaultTestBuffer is the buffer time subtracted from test deadline
	// to allow for cleanup operations before the test times out.
	DefaultTestBuffer = 10 * time.Second
)

// ContextWithTestDeadline creates a context that respects the test's deadline.
// It subtracts a buffer from the test deadline to allow time for cleanup.
// If the test has no deadline, it falls back to the provided fallback duration.
func ContextWithTestDeadline(t *testing.T, fallback time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadlineBuffer(t, fallback, DefaultTestBuffer)
}

// ContextWithTestDeadlineBuffer creates a context that respects the test's
// deadline with a custom buffer.
//
// If the test has no deadline, or the deadline minus buffer is already in
// the past, it uses the fallback duration.
func ContextWithTestDeadlineBuffer(t *testing.T, fallback, buffer time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	if deadline, ok := t.Deadline(); ok {
		adjusted := deadline.Add(-buffer)
		if time.Until(adjusted) > 0 {
			t.Logf("Using test deadline: %v (buffer: %v)", time.Until(adjusted).Round(time.Second), buffer)
			return context.WithDeadline(context.Background(), adjusted)
		}
	}

	t.Logf("Using fallback timeout: %v", fallback)
	return context.WithTimeout(context.Background(), fallback)
}

// BrowserContext returns a context for tests that drive a real Chrome.
func BrowserContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, DefaultBrowserTimeout)
}

// AgentContext returns a context for tests that call a live agent.
func AgentContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, DefaultAgentTimeout)
}
