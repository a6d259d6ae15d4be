package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool for the LLM function-calling protocol.
// Parameters is a JSON-schema object ({type, properties, required, ...})
// advertised to the vendor verbatim.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the immutable outcome of executing a tool.
type ToolResult struct {
	CallID  string            `json:"call_id"`
	Content string            `json:"content"`
	IsError bool              `json:"is_error"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Tool is the interface every tool must implement.
//
// Expected tool-level failures are reported as a ToolResult with IsError
// set, not as a returned error. A returned error is treated as an unexpected
// failure and converted into a failed result at the invocation boundary.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, callID string, args json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup and schema listing for the generation
// loop. The registry implements it; tests substitute mocks.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}
