package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

// Identity describes an agent instance.
type Identity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Client       string `json:"client"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Agent binds an identity to a message provider. It owns no sessions; the
// caller supplies one per conversation.
type Agent struct {
	identity Identity
	provider domain.Provider
	opts     domain.GenerationOptions
	logger   *slog.Logger
}

// New creates an agent. opts carries the per-agent generation defaults
// (model, temperature, iteration limit); the identity's model and system
// prompt fill in unset fields.
func New(identity Identity, provider domain.Provider, opts domain.GenerationOptions, logger *slog.Logger) *Agent {
	if opts.Model == "" {
		opts.Model = identity.Model
	}
	if opts.System == "" {
		opts.System = identity.SystemPrompt
	}
	return &Agent{
		identity: identity,
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Identity returns the agent's identity.
func (a *Agent) Identity() Identity { return a.identity }

// Send appends the user message to the session, runs generation to
// completion, records every produced message in the session, and returns the
// final assistant text.
//
// Terminal failures surfaced by the provider as system messages come back as
// errors; everything the loop produced stays in the session either way.
func (a *Agent) Send(ctx context.Context, sess *Session, content string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.send",
		trace.WithAttributes(
			tracer.StringAttr("agent.id", a.identity.ID),
			tracer.StringAttr("session.id", sess.ID),
		),
	)
	defer span.End()

	sess.AddMessage(domain.NewUserMessage(content))

	var last domain.Message
	var produced int
	for msg := range a.provider.Generate(ctx, sess.Messages(), a.opts) {
		sess.AddMessage(msg)
		last = msg
		produced++
	}

	span.SetAttributes(tracer.IntAttr("agent.messages_produced", produced))

	if err := ctx.Err(); err != nil {
		tracer.RecordError(span, err)
		return "", err
	}
	if produced == 0 {
		err := domain.NewDomainError("Agent.Send", domain.ErrProviderError, "empty generation")
		tracer.RecordError(span, err)
		return "", err
	}

	if last.Kind == domain.KindSystem {
		err := terminalError(last.Content)
		tracer.RecordError(span, err)
		return "", err
	}

	a.logger.Debug("agent reply produced",
		"agent_id", a.identity.ID,
		"session_id", sess.ID,
		"messages", produced,
	)
	tracer.SetOK(span)
	return last.Content, nil
}

// terminalError maps a terminal system message back to a typed error.
func terminalError(content string) error {
	if strings.HasPrefix(content, "maximum tool iterations reached") {
		return domain.NewDomainError("Agent.Send", domain.ErrMaxIterations, content)
	}
	return fmt.Errorf("%w: %s", domain.ErrProviderError, content)
}
