package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kaia-ai/kaia/pkg/config"
	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

const defaultAnthropicVersion = "2023-06-01"

// AnthropicClient implements domain.ChatClient for the Anthropic Messages API.
type AnthropicClient struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	rest    restCaller
	logger  *slog.Logger
	version string
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(cfg config.ClientConfig, logger *slog.Logger) *AnthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicClient{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		rest:    restCaller{http: NewHTTPClient(cfg)},
		logger:  logger,
		version: defaultAnthropicVersion,
	}
}

func (c *AnthropicClient) headers() http.Header {
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("anthropic-version", c.version)
	return h
}

// Chat implements domain.ChatClient.
func (c *AnthropicClient) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.client", c.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = c.model
	}

	respBody, err := c.rest.postJSON(ctx, c.baseURL+"/v1/messages", toAnthropicRequest(req), c.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var antResp anthropicResponse
	if err := json.Unmarshal(respBody, &antResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := fromAnthropicResponse(antResp)
	result.Raw = respBody
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(c.logger, c.name, result)

	return result, nil
}

// Name implements domain.ChatClient.
func (c *AnthropicClient) Name() string { return c.name }

// --- Anthropic API wire types ---

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Tools         []anthropicTool    `json:"tools,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func toAnthropicRequest(req domain.ChatRequest) anthropicRequest {
	antReq := anthropicRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		System:        systemPrompt(req),
		StopSequences: req.StopSequences,
	}

	if antReq.MaxTokens <= 0 {
		antReq.MaxTokens = 4096
	}

	history := req.Messages
	for i := 0; i < len(history); {
		m := history[i]
		switch m.Kind {
		case domain.KindSystem:
			// Carried in the top-level system field.
			i++

		case domain.KindUser:
			antReq.Messages = append(antReq.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: m.Content}},
			})
			i++

		case domain.KindAssistant, domain.KindToolCall:
			// Anthropic requires strictly alternating roles, so the
			// assistant text and the tool calls that followed it must fold
			// back into a single assistant turn.
			antMsg := anthropicMessage{Role: "assistant"}
			if m.Kind == domain.KindAssistant {
				if m.Content != "" {
					antMsg.Content = append(antMsg.Content, anthropicContent{Type: "text", Text: m.Content})
				}
				i++
			}
			for i < len(history) && history[i].Kind == domain.KindToolCall {
				tc := history[i]
				antMsg.Content = append(antMsg.Content, anthropicContent{
					Type:  "tool_use",
					ID:    tc.CallID,
					Name:  tc.ToolName,
					Input: tc.Arguments,
				})
				i++
			}
			if len(antMsg.Content) == 0 {
				antMsg.Content = append(antMsg.Content, anthropicContent{Type: "text", Text: ""})
			}
			antReq.Messages = append(antReq.Messages, antMsg)

		case domain.KindToolResponse:
			// Likewise, a run of tool results folds into one user turn.
			antMsg := anthropicMessage{Role: "user"}
			for i < len(history) && history[i].Kind == domain.KindToolResponse {
				tr := history[i]
				antMsg.Content = append(antMsg.Content, anthropicContent{
					Type:      "tool_result",
					ToolUseID: tr.CallID,
					Content:   tr.Content,
					IsError:   tr.IsError,
				})
				i++
			}
			antReq.Messages = append(antReq.Messages, antMsg)

		default:
			i++
		}
	}

	for _, t := range req.Tools {
		antReq.Tools = append(antReq.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	return antReq
}

func fromAnthropicResponse(resp anthropicResponse) *domain.ChatResponse {
	result := &domain.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		CreatedAt: time.Now(),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text = block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	return result
}

// --- Anthropic streaming wire types ---

type anthropicStreamEvent struct {
	Type  string          `json:"type"`
	Delta json.RawMessage `json:"delta,omitempty"`
	Usage json.RawMessage `json:"usage,omitempty"`

	// content_block_start fields
	ContentBlock *anthropicContent `json:"content_block,omitempty"`
}

type anthropicDeltaText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicDeltaToolInput struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

// ChatStream implements domain.StreamingChatClient.
func (c *AnthropicClient) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	antReq := toAnthropicRequest(req)
	antReq.Stream = true

	body, err := c.rest.openStream(ctx, c.baseURL+"/v1/messages", antReq, c.headers())
	if err != nil {
		return nil, err
	}

	// Anthropic names each event ("event: content_block_delta" and so on);
	// the data JSON repeats it in a "type" field, which covers proxies that
	// strip the event line.
	ch := readSSEEvents(ctx, body, func(event string, data []byte) (*domain.StreamDelta, error) {
		var evt anthropicStreamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}
		if event == "" {
			event = evt.Type
		}

		switch event {
		case "content_block_delta":
			var td anthropicDeltaText
			if err := json.Unmarshal(evt.Delta, &td); err == nil && td.Type == "text_delta" {
				return &domain.StreamDelta{Content: td.Text}, nil
			}
			var ti anthropicDeltaToolInput
			if err := json.Unmarshal(evt.Delta, &ti); err == nil && ti.Type == "input_json_delta" {
				return &domain.StreamDelta{Content: ti.PartialJSON}, nil
			}
			return nil, nil

		case "content_block_start":
			if evt.ContentBlock != nil && evt.ContentBlock.Type == "tool_use" {
				return &domain.StreamDelta{
					ToolCalls: []domain.ToolCall{{
						ID:   evt.ContentBlock.ID,
						Name: evt.ContentBlock.Name,
					}},
				}, nil
			}
			return nil, nil

		case "message_delta":
			delta := &domain.StreamDelta{Done: true}
			if len(evt.Usage) > 0 {
				var u anthropicUsage
				if err := json.Unmarshal(evt.Usage, &u); err == nil {
					delta.Usage = &domain.Usage{
						PromptTokens:     u.InputTokens,
						CompletionTokens: u.OutputTokens,
						TotalTokens:      u.InputTokens + u.OutputTokens,
					}
				}
			}
			return delta, nil

		case "message_stop":
			return &domain.StreamDelta{Done: true}, nil

		default:
			return nil, nil
		}
	})

	return ch, nil
}

// Compile-time interface checks.
var (
	_ domain.ChatClient          = (*AnthropicClient)(nil)
	_ domain.StreamingChatClient = (*AnthropicClient)(nil)
)
