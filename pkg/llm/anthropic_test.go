package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kaia-ai/kaia/pkg/config"
	"github.com/kaia-ai/kaia/pkg/domain"
)

func newAnthropicTestClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewAnthropicClient(config.ClientConfig{
		Name:    "anthropic",
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "claude-test",
	}, testLogger())
}

func TestAnthropicChatText(t *testing.T) {
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("anthropic-version header missing")
		}
		w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-test",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "hello"}],
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	})

	resp, err := client.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{domain.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", resp.Usage.TotalTokens)
	}
}

func TestAnthropicChatToolUse(t *testing.T) {
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"id": "msg_2",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "checking"},
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"location": "Seattle"}}
			],
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`))
	})

	resp, err := client.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{domain.NewUserMessage("weather?")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "checking" {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_1" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
}

func TestAnthropicRequestShaping(t *testing.T) {
	history := []domain.Message{
		domain.NewSystemMessage("stay terse"),
		domain.NewUserMessage("do it"),
		domain.NewAssistantMessage("on it", nil),
		domain.NewToolCallMessage("toolu_1", "lookup", json.RawMessage(`{"id":1}`)),
		domain.NewToolCallMessage("toolu_2", "lookup", json.RawMessage(`{"id":2}`)),
		domain.NewToolResponseMessage("toolu_1", "one", false),
		domain.NewToolResponseMessage("toolu_2", "fail", true),
	}

	req := toAnthropicRequest(domain.ChatRequest{Model: "claude-test", Messages: history})

	if req.System != "stay terse" {
		t.Errorf("System = %q", req.System)
	}
	// user, assistant(text + 2 tool_use), user(2 tool_result)
	if len(req.Messages) != 3 {
		t.Fatalf("message count = %d, want 3: %+v", len(req.Messages), req.Messages)
	}

	asst := req.Messages[1]
	if asst.Role != "assistant" || len(asst.Content) != 3 {
		t.Fatalf("assistant turn should fold text and tool calls together: %+v", asst)
	}
	if asst.Content[0].Type != "text" || asst.Content[1].Type != "tool_use" {
		t.Errorf("assistant blocks = %+v", asst.Content)
	}

	results := req.Messages[2]
	if results.Role != "user" || len(results.Content) != 2 {
		t.Fatalf("tool results should fold into one user turn: %+v", results)
	}
	if results.Content[0].ToolUseID != "toolu_1" {
		t.Errorf("result 1 = %+v", results.Content[0])
	}
	if !results.Content[1].IsError {
		t.Error("failed result should set is_error")
	}
}

func TestAnthropicDefaultMaxTokens(t *testing.T) {
	req := toAnthropicRequest(domain.ChatRequest{
		Messages: []domain.Message{domain.NewUserMessage("hi")},
	})
	if req.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want default 4096", req.MaxTokens)
	}
}

func TestAnthropicChatStream(t *testing.T) {
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: content_block_delta\n"))
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n"))
		w.Write([]byte("event: message_stop\n"))
		w.Write([]byte("data: {\"type\":\"message_stop\"}\n\n"))
	})

	ch, err := client.ChatStream(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{domain.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	var text string
	var done bool
	for delta := range ch {
		text += delta.Content
		if delta.Done {
			done = true
		}
	}
	if text != "Hi" {
		t.Errorf("streamed text = %q", text)
	}
	if !done {
		t.Error("stream did not signal Done")
	}
}
