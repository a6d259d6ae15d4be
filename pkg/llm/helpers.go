package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

const (
	// maxResponseBody bounds how much of a vendor response is read; real
	// completions sit far below this.
	maxResponseBody = 10 << 20
	// maxErrorBody bounds the error-body snippet kept for diagnostics.
	maxErrorBody = 4 << 10
)

// restCaller is the HTTP side every vendor client shares: marshal the wire
// request, POST it, read the body within bounds, and classify failures into
// the domain's sentinel taxonomy.
type restCaller struct {
	http *http.Client
}

// postJSON sends payload and returns the full response body of a 200.
func (r restCaller) postJSON(ctx context.Context, url string, payload any, header http.Header) ([]byte, error) {
	resp, err := r.post(ctx, url, payload, header, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// openStream sends payload with an event-stream Accept header and hands back
// the open body for SSE reading. The caller owns closing it.
func (r restCaller) openStream(ctx context.Context, url string, payload any, header http.Header) (io.ReadCloser, error) {
	resp, err := r.post(ctx, url, payload, header, "text/event-stream")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

func (r restCaller) post(ctx context.Context, url string, payload any, header http.Header, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

// statusSentinels maps the statuses the three vendors use for specific
// failure classes. 5xx is handled by range below.
var statusSentinels = map[int]error{
	http.StatusTooManyRequests:       domain.ErrRateLimit,
	http.StatusUnauthorized:          domain.ErrAuthInvalid,
	http.StatusForbidden:             domain.ErrAuthInvalid,
	http.StatusRequestEntityTooLarge: domain.ErrContextOverflow,
}

// statusError turns a non-200 vendor response into a sentinel-wrapped error
// so the circuit breaker and failover decorators can classify it.
func statusError(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	detail := fmt.Sprintf("API error %d: %s", status, body)

	if sentinel, ok := statusSentinels[status]; ok {
		return fmt.Errorf("%w: %s", sentinel, detail)
	}
	if status >= 500 {
		return fmt.Errorf("%w: %s", domain.ErrProviderError, detail)
	}
	return errors.New(detail)
}

// logChatCompleted logs the standard debug message after a successful chat.
func logChatCompleted(logger *slog.Logger, clientName string, result *domain.ChatResponse) {
	logger.Debug("llm chat completed",
		"client", clientName,
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
	)
}

// setUsageAttrs adds token usage attributes to a trace span.
func setUsageAttrs(span trace.Span, usage domain.Usage) {
	span.SetAttributes(
		tracer.IntAttr("llm.prompt_tokens", usage.PromptTokens),
		tracer.IntAttr("llm.completion_tokens", usage.CompletionTokens),
	)
}

// systemPrompt resolves the effective system prompt for a request: an
// explicit ChatRequest.System wins over any system message in the history.
func systemPrompt(req domain.ChatRequest) string {
	if req.System != "" {
		return req.System
	}
	for _, m := range req.Messages {
		if m.Kind == domain.KindSystem {
			return m.Content
		}
	}
	return ""
}
