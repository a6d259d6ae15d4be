package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// chainProvider answers by delegating onward to the next agent, or with a
// plain text reply when it is the end of the chain.
type chainProvider struct {
	broker *Broker
	id     string
	next   string
}

func (p *chainProvider) Generate(ctx context.Context, _ []domain.Message, _ domain.GenerationOptions) <-chan domain.Message {
	out := make(chan domain.Message, 1)
	go func() {
		defer close(out)
		if p.next == "" {
			out <- domain.NewAssistantMessage("chain end", nil)
			return
		}
		resp, err := p.broker.Delegate(ctx, DelegateRequest{
			FromAgent: p.id,
			ToAgent:   p.next,
			SessionID: "s1",
			Message:   "continue",
		})
		if err != nil {
			out <- domain.NewSystemMessage("generation failed: " + err.Error())
			return
		}
		out <- domain.NewAssistantMessage(resp.Content, nil)
	}()
	return out
}

func chainInstance(broker *Broker, id, next string) *Instance {
	identity := Identity{ID: id, Name: id}
	provider := &chainProvider{broker: broker, id: id, next: next}
	return &Instance{
		Identity: identity,
		Agent:    New(identity, provider, domain.GenerationOptions{}, testLogger()),
		Sessions: NewStore(""),
	}
}

func TestBrokerDelegate(t *testing.T) {
	reg := NewRegistry("a", testLogger())
	broker := NewBroker(reg, 0, testLogger())
	reg.Register(chainInstance(broker, "a", "b"))
	reg.Register(chainInstance(broker, "b", ""))

	resp, err := broker.Delegate(context.Background(), DelegateRequest{
		FromAgent: "caller",
		ToAgent:   "a",
		SessionID: "s1",
		Message:   "go",
	})
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}
	if resp.FromAgent != "a" || resp.Content != "chain end" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestBrokerUnknownTarget(t *testing.T) {
	reg := NewRegistry("a", testLogger())
	broker := NewBroker(reg, 0, testLogger())

	_, err := broker.Delegate(context.Background(), DelegateRequest{ToAgent: "ghost"})
	if !errors.Is(err, domain.ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestBrokerSessionIsolation(t *testing.T) {
	reg := NewRegistry("a", testLogger())
	broker := NewBroker(reg, 0, testLogger())
	target := chainInstance(broker, "worker", "")
	reg.Register(target)

	broker.Delegate(context.Background(), DelegateRequest{
		FromAgent: "x", ToAgent: "worker", SessionID: "s1", Message: "hi",
	})

	ids := target.Sessions.List()
	if len(ids) != 1 {
		t.Fatalf("sessions = %v", ids)
	}
	if !strings.HasPrefix(ids[0], "delegate|x|worker|") {
		t.Errorf("session key = %q, want delegate|<from>|<to>|<id> shape", ids[0])
	}
}

func TestBrokerDepthLimit(t *testing.T) {
	reg := NewRegistry("a", testLogger())
	broker := NewBroker(reg, 2, testLogger())
	// a -> b -> c -> d needs three delegations; the cap is two.
	reg.Register(chainInstance(broker, "a", "b"))
	reg.Register(chainInstance(broker, "b", "c"))
	reg.Register(chainInstance(broker, "c", "d"))
	reg.Register(chainInstance(broker, "d", ""))

	_, err := broker.Delegate(context.Background(), DelegateRequest{
		FromAgent: "caller",
		ToAgent:   "a",
		SessionID: "s1",
		Message:   "go",
	})
	if err == nil {
		t.Fatal("expected depth limit failure")
	}
	if !strings.Contains(err.Error(), "handoff depth limit reached") {
		t.Errorf("err = %v", err)
	}
}
