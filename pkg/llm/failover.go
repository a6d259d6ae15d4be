package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// Compile-time interface assertions.
var (
	_ domain.ChatClient          = (*FailoverClient)(nil)
	_ domain.StreamingChatClient = (*FailoverClient)(nil)
)

// FailoverClient wraps a primary chat client with fallback clients.
// If the primary fails, it tries each fallback in order.
type FailoverClient struct {
	primary   domain.ChatClient
	fallbacks []domain.ChatClient
	logger    *slog.Logger
}

// NewFailoverClient creates a failover-capable client.
func NewFailoverClient(primary domain.ChatClient, fallbacks []domain.ChatClient, logger *slog.Logger) *FailoverClient {
	return &FailoverClient{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// worthFallback reports whether a fallback attempt could plausibly succeed.
// Cancelled contexts and request-shape errors fail the same way everywhere,
// so those skip the fallback chain.
func worthFallback(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrContextOverflow):
		return false
	}
	return true
}

// Chat tries the primary client first, then each fallback on failure.
func (f *FailoverClient) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !worthFallback(err) {
		return nil, err
	}
	f.logger.Warn("primary llm client failed, trying fallbacks",
		"primary", f.primary.Name(),
		"retryable", domain.IsRetryableError(err),
		"error", err)

	allErrors := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}

	for _, fb := range f.fallbacks {
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			f.logger.Info("failover succeeded", "client", fb.Name())
			return resp, nil
		}
		f.logger.Warn("fallback llm client failed", "client", fb.Name(), "error", err)
		allErrors = append(allErrors, fmt.Sprintf("%s: %v", fb.Name(), err))
		if !worthFallback(err) {
			break
		}
	}

	return nil, fmt.Errorf("all clients failed: [%s]", strings.Join(allErrors, "; "))
}

// ChatStream tries streaming from the primary, then each fallback.
// It checks whether each client implements StreamingChatClient.
func (f *FailoverClient) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	var allErrors []string

	if sc, ok := f.primary.(domain.StreamingChatClient); ok {
		ch, err := sc.ChatStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		if !worthFallback(err) {
			return nil, err
		}
		f.logger.Warn("primary streaming client failed, trying fallbacks",
			"primary", f.primary.Name(), "error", err)
		allErrors = append(allErrors, fmt.Sprintf("%s: %v", f.primary.Name(), err))
	}

	for _, fb := range f.fallbacks {
		if sc, ok := fb.(domain.StreamingChatClient); ok {
			ch, err := sc.ChatStream(ctx, req)
			if err == nil {
				f.logger.Info("streaming failover succeeded", "client", fb.Name())
				return ch, nil
			}
			f.logger.Warn("fallback streaming client failed", "client", fb.Name(), "error", err)
			allErrors = append(allErrors, fmt.Sprintf("%s: %v", fb.Name(), err))
		}
	}

	if len(allErrors) > 0 {
		return nil, fmt.Errorf("all streaming clients failed: [%s]", strings.Join(allErrors, "; "))
	}
	return nil, fmt.Errorf("no streaming-capable clients available")
}

// Name returns a composite name.
func (f *FailoverClient) Name() string {
	return f.primary.Name() + "+failover"
}
