package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// rateLimitedTool wraps a Tool with a token-bucket rate limiter. Over-limit
// invocations produce a failed result so the round continues; the vendor can
// decide whether to back off or answer without the tool.
type rateLimitedTool struct {
	inner   domain.Tool
	limiter *rate.Limiter
}

// WithRateLimit wraps a tool so that at most r invocations per second are
// allowed, with the given burst.
func WithRateLimit(t domain.Tool, r rate.Limit, burst int) domain.Tool {
	return &rateLimitedTool{
		inner:   t,
		limiter: rate.NewLimiter(r, burst),
	}
}

func (l *rateLimitedTool) Name() string              { return l.inner.Name() }
func (l *rateLimitedTool) Description() string       { return l.inner.Description() }
func (l *rateLimitedTool) Schema() domain.ToolSchema { return l.inner.Schema() }

func (l *rateLimitedTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*domain.ToolResult, error) {
	if !l.limiter.Allow() {
		return &domain.ToolResult{
			CallID:  callID,
			IsError: true,
			Content: fmt.Sprintf("tool %q rate limit exceeded, try again later", l.inner.Name()),
		}, nil
	}
	return l.inner.Execute(ctx, callID, args)
}
