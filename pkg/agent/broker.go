package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// DefaultMaxHandoffDepth bounds chained delegations. A delegates to B, B to
// C, C to D hits the cap with the default of 3.
const DefaultMaxHandoffDepth = 3

type handoffDepthKey struct{}

// handoffDepth returns the number of delegations already on the call path.
func handoffDepth(ctx context.Context) int {
	d, _ := ctx.Value(handoffDepthKey{}).(int)
	return d
}

// DelegateRequest represents a cross-agent delegation.
type DelegateRequest struct {
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// DelegateResponse is the result of a delegation.
type DelegateResponse struct {
	FromAgent string `json:"from_agent"`
	Content   string `json:"content"`
}

// Broker orchestrates cross-agent communication.
type Broker struct {
	registry *Registry
	maxDepth int
	logger   *slog.Logger
}

// NewBroker creates a Broker for cross-agent delegation. maxDepth <= 0 means
// DefaultMaxHandoffDepth.
func NewBroker(registry *Registry, maxDepth int, logger *slog.Logger) *Broker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxHandoffDepth
	}
	return &Broker{
		registry: registry,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Delegate sends a message from one agent to another and returns the
// response. Sessions are isolated using a composite key
// (delegate|<from>|<to>|<sessionID>) so a delegated conversation never mixes
// with the target agent's direct sessions. Chained delegations beyond the
// depth cap fail with ErrHandoffDepth.
func (b *Broker) Delegate(ctx context.Context, req DelegateRequest) (*DelegateResponse, error) {
	depth := handoffDepth(ctx)
	if depth >= b.maxDepth {
		return nil, domain.NewDomainError("Broker.Delegate", domain.ErrHandoffDepth,
			fmt.Sprintf("%s -> %s at depth %d", req.FromAgent, req.ToAgent, depth))
	}
	ctx = context.WithValue(ctx, handoffDepthKey{}, depth+1)

	inst, err := b.registry.Get(req.ToAgent)
	if err != nil {
		return nil, fmt.Errorf("broker: target agent %q: %w", req.ToAgent, err)
	}

	// "|" as delimiter avoids collision with agent IDs containing ":".
	sessionKey := fmt.Sprintf("delegate|%s|%s|%s", req.FromAgent, req.ToAgent, req.SessionID)
	session := inst.Sessions.GetOrCreate(sessionKey)

	b.logger.Info("delegating",
		"from", req.FromAgent,
		"to", req.ToAgent,
		"depth", depth+1,
		"session", sessionKey,
	)

	content, err := inst.Agent.Send(ctx, session, req.Message)
	if err != nil {
		return nil, fmt.Errorf("broker: agent %q: %w", req.ToAgent, err)
	}

	return &DelegateResponse{
		FromAgent: req.ToAgent,
		Content:   content,
	}, nil
}
