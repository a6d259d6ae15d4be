package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// stubClient returns a fixed response or error.
type stubClient struct {
	name  string
	text  string
	err   error
	calls int
}

func (c *stubClient) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &domain.ChatResponse{Text: c.text}, nil
}

func (c *stubClient) Name() string { return c.name }

func TestFailoverPrimarySucceeds(t *testing.T) {
	primary := &stubClient{name: "primary", text: "from primary"}
	fallback := &stubClient{name: "fallback", text: "from fallback"}

	f := NewFailoverClient(primary, []domain.ChatClient{fallback}, testLogger())
	resp, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "from primary" {
		t.Errorf("Text = %q", resp.Text)
	}
	if fallback.calls != 0 {
		t.Error("fallback should not be called when primary succeeds")
	}
}

func TestFailoverFallsBack(t *testing.T) {
	primary := &stubClient{name: "primary", err: fmt.Errorf("%w: down", domain.ErrProviderError)}
	fallback := &stubClient{name: "fallback", text: "rescued"}

	f := NewFailoverClient(primary, []domain.ChatClient{fallback}, testLogger())
	resp, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "rescued" {
		t.Errorf("Text = %q", resp.Text)
	}
}

func TestFailoverAllFail(t *testing.T) {
	primary := &stubClient{name: "primary", err: fmt.Errorf("%w: down", domain.ErrProviderError)}
	fb1 := &stubClient{name: "fb1", err: fmt.Errorf("%w: also down", domain.ErrRateLimit)}

	f := NewFailoverClient(primary, []domain.ChatClient{fb1}, testLogger())
	_, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !strings.Contains(err.Error(), "primary") || !strings.Contains(err.Error(), "fb1") {
		t.Errorf("aggregate error should name every client: %v", err)
	}
}

func TestFailoverSkipsFallbacksOnRequestShapeError(t *testing.T) {
	primary := &stubClient{name: "primary", err: fmt.Errorf("%w: too long", domain.ErrContextOverflow)}
	fallback := &stubClient{name: "fallback", text: "unused"}

	f := NewFailoverClient(primary, []domain.ChatClient{fallback}, testLogger())
	_, err := f.Chat(context.Background(), domain.ChatRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if fallback.calls != 0 {
		t.Error("context overflow fails the same everywhere; fallbacks should be skipped")
	}
}

func TestFailoverName(t *testing.T) {
	f := NewFailoverClient(&stubClient{name: "primary"}, nil, testLogger())
	if f.Name() != "primary+failover" {
		t.Errorf("Name = %q", f.Name())
	}
}
