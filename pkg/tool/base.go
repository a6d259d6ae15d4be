package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// ParseParams unmarshals tool arguments into P. On failure it returns a
// failed ToolResult describing the problem, so malformed vendor arguments
// never abort a round.
func ParseParams[P any](callID string, args json.RawMessage) (P, *domain.ToolResult) {
	var p P
	if len(args) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return p, &domain.ToolResult{
			CallID:  callID,
			IsError: true,
			Content: fmt.Sprintf("invalid parameters: %v", err),
		}
	}
	return p, nil
}

// RequireFields checks name/value pairs and returns an error naming every
// missing field. Values must alternate with their field names.
func RequireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Func adapts a plain function into a domain.Tool. Useful for small tools
// and tests that do not warrant a dedicated type.
type Func struct {
	ToolName string
	Desc     string
	Params   json.RawMessage
	Fn       func(ctx context.Context, callID string, args json.RawMessage) (*domain.ToolResult, error)
}

func (f *Func) Name() string        { return f.ToolName }
func (f *Func) Description() string { return f.Desc }

func (f *Func) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: f.ToolName, Description: f.Desc, Parameters: f.Params}
}

func (f *Func) Execute(ctx context.Context, callID string, args json.RawMessage) (*domain.ToolResult, error) {
	return f.Fn(ctx, callID, args)
}
