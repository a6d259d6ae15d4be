package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/kaia-ai/kaia/pkg/domain"
	"github.com/kaia-ai/kaia/pkg/tracer"
)

// SimpleProvider implements domain.Provider for plain single-shot generation
// with no tool access. The sequence it produces holds exactly one message.
type SimpleProvider struct {
	client domain.ChatClient
	logger *slog.Logger
}

// NewSimpleProvider creates a provider that forwards history to the client
// and yields the assistant reply.
func NewSimpleProvider(client domain.ChatClient, logger *slog.Logger) *SimpleProvider {
	return &SimpleProvider{client: client, logger: logger}
}

// Generate implements domain.Provider.
func (p *SimpleProvider) Generate(ctx context.Context, history []domain.Message, opts domain.GenerationOptions) <-chan domain.Message {
	out := make(chan domain.Message)
	go func() {
		defer close(out)

		resp, err := p.client.Chat(ctx, buildRequest(history, opts, nil))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(ctx, out, domain.NewSystemMessage("generation failed: "+err.Error()))
			return
		}
		emit(ctx, out, domain.NewAssistantMessage(resp.Text, resp.Raw))
	}()
	return out
}

// ToolsProvider implements domain.Provider with the full tool-calling loop:
// it round-trips with the vendor, executes requested tools, feeds results
// back, and repeats until the model produces a plain text answer or the
// iteration limit is hit.
type ToolsProvider struct {
	client domain.ChatClient
	tools  domain.ToolExecutor
	logger *slog.Logger
}

// NewToolsProvider creates a tool-calling provider.
func NewToolsProvider(client domain.ChatClient, tools domain.ToolExecutor, logger *slog.Logger) *ToolsProvider {
	return &ToolsProvider{client: client, tools: tools, logger: logger}
}

// Generate implements domain.Provider. The returned channel yields every
// message the loop produces, in order: tool calls, their paired responses,
// and finally the assistant's answer (or a system message describing a
// terminal failure). Cancelling ctx closes the channel without a terminal
// message.
func (p *ToolsProvider) Generate(ctx context.Context, history []domain.Message, opts domain.GenerationOptions) <-chan domain.Message {
	out := make(chan domain.Message)
	go p.run(ctx, history, opts, out)
	return out
}

func (p *ToolsProvider) run(ctx context.Context, history []domain.Message, opts domain.GenerationOptions, out chan<- domain.Message) {
	defer close(out)

	ctx, span := tracer.StartSpan(ctx, "llm.generate",
		trace.WithAttributes(
			tracer.StringAttr("llm.client", p.client.Name()),
			tracer.StringAttr("llm.model", opts.Model),
		),
	)
	defer span.End()

	limit := opts.ToolIterationLimit
	if limit <= 0 {
		limit = domain.DefaultToolIterationLimit
	}

	// The caller's slice is never touched; the loop grows its own copy.
	conv := make([]domain.Message, len(history), len(history)+8)
	copy(conv, history)

	schemas := p.tools.Schemas()

	for iter := 0; iter < limit; iter++ {
		resp, err := p.client.Chat(ctx, buildRequest(conv, opts, schemas))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			tracer.RecordError(span, err)
			emit(ctx, out, domain.NewSystemMessage("generation failed: "+err.Error()))
			return
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Text == "" {
				p.logger.Warn("empty response from client", "client", p.client.Name())
				emit(ctx, out, domain.NewSystemMessage("model returned neither text nor tool calls"))
				return
			}
			// Plain text answer terminates the loop.
			tracer.SetOK(span)
			emit(ctx, out, domain.NewAssistantMessage(resp.Text, resp.Raw))
			return
		}

		// Text accompanying tool calls is part of the turn and is surfaced
		// before the calls it introduced.
		if resp.Text != "" {
			m := domain.NewAssistantMessage(resp.Text, resp.Raw)
			if !emit(ctx, out, m) {
				return
			}
			conv = append(conv, m)
		}

		p.logger.Debug("executing tool calls",
			"client", p.client.Name(),
			"iteration", iter+1,
			"calls", len(resp.ToolCalls),
		)

		pairs := p.executeAll(ctx, out, resp.ToolCalls)
		if ctx.Err() != nil {
			return
		}

		// Fold the round into the working history in call order, each
		// response directly after its call.
		for _, pr := range pairs {
			conv = append(conv, pr.call, pr.resp)
		}
	}

	span.SetAttributes(tracer.IntAttr("llm.iterations", limit))
	emit(ctx, out, domain.NewSystemMessage(fmt.Sprintf("maximum tool iterations reached (%d)", limit)))
}

// roundPair is one invocation's emitted call/response message pair, kept for
// the history fold after the round joins.
type roundPair struct {
	call domain.Message
	resp domain.Message
}

// executeAll runs the round's tool calls in parallel. Each invocation emits
// its ToolCall message the moment it starts, so consumers see progress while
// slow siblings are still running, and its ToolResponse when the tool
// finishes. Pairs from different invocations may interleave on the output;
// the returned slice is in call order for the history fold.
func (p *ToolsProvider) executeAll(ctx context.Context, out chan<- domain.Message, calls []domain.ToolCall) []roundPair {
	pairs := make([]roundPair, len(calls))

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc domain.ToolCall) {
			defer wg.Done()

			callMsg := domain.NewToolCallMessage(tc.ID, tc.Name, tc.Arguments)
			if !emit(ctx, out, callMsg) {
				return
			}

			res := p.executeOne(ctx, tc)
			respMsg := domain.NewToolResponseMessage(res.CallID, res.Content, res.IsError)
			if !emit(ctx, out, respMsg) {
				return
			}

			pairs[i] = roundPair{call: callMsg, resp: respMsg}
		}(i, tc)
	}
	wg.Wait()

	return pairs
}

// executeOne resolves and runs a single tool call. Failures of any shape
// (unknown tool, returned error, panic-free contract violations) become a
// failed result so one bad call never aborts its siblings or the loop.
func (p *ToolsProvider) executeOne(ctx context.Context, tc domain.ToolCall) *domain.ToolResult {
	ctx, span := tracer.StartSpan(ctx, "tool.execute")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("tool.name", tc.Name))

	failed := func(msg string) *domain.ToolResult {
		return &domain.ToolResult{CallID: tc.ID, Content: msg, IsError: true}
	}

	t, err := p.tools.Get(tc.Name)
	if err != nil {
		p.logger.Warn("unknown tool requested", "tool", tc.Name, "call_id", tc.ID)
		tracer.RecordError(span, err)
		return failed(fmt.Sprintf("tool %q not found", tc.Name))
	}

	res, err := t.Execute(ctx, tc.ID, tc.Arguments)
	if err != nil {
		p.logger.Warn("tool execution failed", "tool", tc.Name, "call_id", tc.ID, "error", err)
		tracer.RecordError(span, err)
		return failed(fmt.Sprintf("tool %q failed: %v", tc.Name, err))
	}
	if res == nil {
		return failed(fmt.Sprintf("tool %q returned no result", tc.Name))
	}
	if res.CallID == "" {
		res.CallID = tc.ID
	}
	return res
}

// buildRequest assembles the vendor round-trip request from the conversation
// and options. schemas may be nil for tool-less generation.
func buildRequest(conv []domain.Message, opts domain.GenerationOptions, schemas []domain.ToolSchema) domain.ChatRequest {
	return domain.ChatRequest{
		Model:          opts.Model,
		System:         opts.System,
		Messages:       conv,
		Tools:          schemas,
		MaxTokens:      opts.MaxTokens,
		Temperature:    opts.Temperature,
		StopSequences:  opts.StopSequences,
		ResponseFormat: opts.ResponseFormat,
	}
}

// emit sends msg unless ctx is cancelled first. Reports whether the send
// happened.
func emit(ctx context.Context, out chan<- domain.Message, msg domain.Message) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Compile-time interface checks.
var (
	_ domain.Provider = (*SimpleProvider)(nil)
	_ domain.Provider = (*ToolsProvider)(nil)
)
