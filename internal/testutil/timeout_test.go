package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextWithTestDeadline_WithFallback(t *testing.T) {
	// Under go test there may be a test deadline; either it or the fallback applies.
	ctx, cancel := ContextWithTestDeadline(t, 100*time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok, "context should have deadline")
	assert.Greater(t, time.Until(deadline).Seconds(), 0.0, "deadline should be in the future")
}

func TestContextWithTestDeadlineBuffer_WithFallback(t *testing.T) {
	ctx, cancel := ContextWithTestDeadlineBuffer(t, 200*time.Millisecond, 50*time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok, "context should have deadline")
	assert.Greater(t, time.Until(deadline).Seconds(), 0.0, "deadline should be in the future")
}

func TestNamedContexts(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*testing.T) (context.Context, context.CancelFunc)
	}{
		{"browser", BrowserContext},
		{"agent", AgentContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.fn(t)
			defer cancel()

			deadline, ok := ctx.Deadline()
			assert.True(t, ok, "context should have deadline")
			assert.Greater(t, time.Until(deadline).Seconds(), 0.0, "deadline should be in the future")
		})
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := BrowserContext(t)

	select {
	case <-ctx.Done():
		t.Fatal("context should not be done before cancel")
	default:
	}

	cancel()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context should be done after cancel")
	}
}
