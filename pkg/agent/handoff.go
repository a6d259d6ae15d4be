package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tool"
)

// handoffSeq is a global counter for generating unique session IDs.
var handoffSeq atomic.Int64

// HandoffTool lets an agent delegate work to another agent through the
// broker. Register one per agent so the owning agent never hands off to
// itself by accident.
type HandoffTool struct {
	broker   *Broker
	registry *Registry
	agentID  string // the agent that owns this tool instance
}

// NewHandoffTool creates a handoff tool for the given agent.
func NewHandoffTool(broker *Broker, registry *Registry, agentID string) *HandoffTool {
	return &HandoffTool{
		broker:   broker,
		registry: registry,
		agentID:  agentID,
	}
}

func (t *HandoffTool) Name() string        { return "handoff" }
func (t *HandoffTool) Description() string { return "Hand off a task to another agent" }

func (t *HandoffTool) Schema() domain.ToolSchema {
	// Build the available-agents list for the description.
	var names []string
	for _, a := range t.registry.List() {
		if a.ID != t.agentID {
			names = append(names, fmt.Sprintf("%s (%s)", a.ID, a.Name))
		}
	}
	agentList := "none"
	if len(names) > 0 {
		agentList = strings.Join(names, ", ")
	}

	return domain.ToolSchema{
		Name:        t.Name(),
		Description: fmt.Sprintf("Hand off a task to another agent. Available agents: %s", agentList),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"agent_id": {
					"type": "string",
					"description": "The ID of the agent to hand the task to"
				},
				"message": {
					"type": "string",
					"description": "The message or task to hand off"
				},
				"session_id": {
					"type": "string",
					"description": "Optional session ID for context continuity"
				}
			},
			"required": ["agent_id", "message"]
		}`),
	}
}

type handoffParams struct {
	AgentID   string `json:"agent_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (t *HandoffTool) Execute(ctx context.Context, callID string, args json.RawMessage) (*domain.ToolResult, error) {
	p, errResult := tool.ParseParams[handoffParams](callID, args)
	if errResult != nil {
		return errResult, nil
	}

	if err := tool.RequireFields("agent_id", p.AgentID, "message", p.Message); err != nil {
		return &domain.ToolResult{CallID: callID, Content: err.Error(), IsError: true}, nil
	}

	if p.SessionID == "" {
		p.SessionID = fmt.Sprintf("auto_%d_%d", time.Now().UnixMilli(), handoffSeq.Add(1))
	}

	resp, err := t.broker.Delegate(ctx, DelegateRequest{
		FromAgent: t.agentID,
		ToAgent:   p.AgentID,
		SessionID: p.SessionID,
		Message:   p.Message,
	})
	if err != nil {
		return &domain.ToolResult{
			CallID:  callID,
			Content: fmt.Sprintf("handoff failed: %s", err.Error()),
			IsError: true,
		}, nil
	}

	return &domain.ToolResult{
		CallID:  callID,
		Content: resp.Content,
		Meta:    map[string]string{"agent": resp.FromAgent},
	}, nil
}

var _ domain.Tool = (*HandoffTool)(nil)
