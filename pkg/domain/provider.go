package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ChatRequest is one round-trip request to an LLM vendor.
type ChatRequest struct {
	Model          string       `json:"model"`
	System         string       `json:"system,omitempty"`
	Messages       []Message    `json:"messages"`
	Tools          []ToolSchema `json:"tools,omitempty"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	Temperature    float64      `json:"temperature,omitempty"`
	StopSequences  []string     `json:"stop_sequences,omitempty"`
	ResponseFormat string       `json:"response_format,omitempty"`
	Stream         bool         `json:"stream,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the decoded result of one vendor round trip. Raw holds the
// undecoded vendor payload for traceability.
type ChatResponse struct {
	ID        string          `json:"id"`
	Model     string          `json:"model"`
	Text      string          `json:"text"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Usage     Usage           `json:"usage"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChatClient is the low-level contract for any LLM vendor backend.
type ChatClient interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the client's identifier (e.g., "openai", "anthropic").
	Name() string
}

// StreamDelta is a single incremental chunk from a streaming response.
type StreamDelta struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Done      bool       `json:"done,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// StreamingChatClient extends ChatClient with streaming support.
type StreamingChatClient interface {
	ChatClient
	// ChatStream sends a request and returns a channel of incremental deltas.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, error)
}

// DefaultToolIterationLimit bounds the tool-calling loop when
// GenerationOptions.ToolIterationLimit is zero.
const DefaultToolIterationLimit = 10

// GenerationOptions configures a single Generate call. Passed by value;
// no shared mutable state.
type GenerationOptions struct {
	Model          string
	System         string // overrides any system message found in history
	Temperature    float64
	MaxTokens      int
	StopSequences  []string
	ResponseFormat string
	// ToolIterationLimit caps vendor round trips in the tool-calling loop.
	// Zero means DefaultToolIterationLimit.
	ToolIterationLimit int
}

// Provider turns a message history plus options into a lazily produced
// sequence of new messages.
//
// Contract: Generate never mutates history and never panics or leaks an
// error to the caller — every terminal non-cancellation outcome (final
// answer, transport failure, iteration-limit exhaustion) is represented as
// a final message before the channel closes. Cancelling ctx stops pending
// work promptly and closes the channel without a terminal message.
type Provider interface {
	Generate(ctx context.Context, history []Message, opts GenerationOptions) <-chan Message
}
