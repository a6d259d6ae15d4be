package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// validatingTool wraps a Tool with JSON Schema validation.
// On Execute, it validates args against the compiled schema before delegating.
type validatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithValidation wraps a tool so that Execute validates arguments against
// the tool's JSON Schema before forwarding to the inner tool. Tools without
// a parameter schema are returned unchanged.
// Returns an error if the schema fails to compile.
func WithValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}

	return &validatingTool{inner: t, schema: compiled}, nil
}

func (v *validatingTool) Name() string              { return v.inner.Name() }
func (v *validatingTool) Description() string       { return v.inner.Description() }
func (v *validatingTool) Schema() domain.ToolSchema { return v.inner.Schema() }

func (v *validatingTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*domain.ToolResult, error) {
	var parsed any
	if err := json.Unmarshal(args, &parsed); err != nil {
		return &domain.ToolResult{
			CallID:  callID,
			IsError: true,
			Content: fmt.Sprintf("invalid JSON: %v", err),
		}, nil
	}

	if err := v.schema.Validate(parsed); err != nil {
		return &domain.ToolResult{
			CallID:  callID,
			IsError: true,
			Content: fmt.Sprintf("schema validation failed: %v", err),
		}, nil
	}

	return v.inner.Execute(ctx, callID, args)
}
