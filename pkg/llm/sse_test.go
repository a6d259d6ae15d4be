package llm

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kaia-ai/kaia/pkg/domain"
)

func parseTextEvent(_ string, data []byte) (*domain.StreamDelta, error) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &domain.StreamDelta{Content: payload.Text}, nil
}

func TestReadSSEEvents(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		": comment line\n" +
			"data: {\"text\":\"a\"}\n\n" +
			"data: {\"text\":\"b\"}\n\n" +
			"data: [DONE]\n\n",
	))

	var got []domain.StreamDelta
	for d := range readSSEEvents(context.Background(), body, parseTextEvent) {
		got = append(got, d)
	}

	if len(got) != 3 {
		t.Fatalf("delta count = %d, want 3", len(got))
	}
	if got[0].Content != "a" || got[1].Content != "b" {
		t.Errorf("deltas = %+v", got)
	}
	if !got[2].Done {
		t.Error("final delta should be Done")
	}
}

func TestReadSSEEventsSkipsBadEvents(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"data: not json\n\n" +
			"data: {\"text\":\"ok\"}\n\n" +
			"data: [DONE]\n\n",
	))

	var got []domain.StreamDelta
	for d := range readSSEEvents(context.Background(), body, parseTextEvent) {
		got = append(got, d)
	}
	if len(got) != 2 || got[0].Content != "ok" {
		t.Errorf("deltas = %+v", got)
	}
}

func TestReadSSEEventsNamedEvents(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"event: chunk\n" +
			"data: {\"text\":\"hello\"}\n\n" +
			"data: {\"text\":\"unnamed\"}\n\n" +
			"event: stop\n" +
			"data: {}\n\n",
	))

	var names []string
	ch := readSSEEvents(context.Background(), body, func(event string, data []byte) (*domain.StreamDelta, error) {
		names = append(names, event)
		if event == "stop" {
			return &domain.StreamDelta{Done: true}, nil
		}
		return parseTextEvent(event, data)
	})

	var got []domain.StreamDelta
	for d := range ch {
		got = append(got, d)
	}

	if len(got) != 3 {
		t.Fatalf("delta count = %d, want 3", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "unnamed" || !got[2].Done {
		t.Errorf("deltas = %+v", got)
	}
	// The name belongs to one event only; the unnamed event must not inherit it.
	if len(names) != 3 || names[0] != "chunk" || names[1] != "" || names[2] != "stop" {
		t.Errorf("event names = %v", names)
	}
}

func TestReadSSEEventsMultiLineData(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"data: line one\n" +
			"data: line two\n\n" +
			"data: [DONE]\n\n",
	))

	var payloads []string
	ch := readSSEEvents(context.Background(), body, func(_ string, data []byte) (*domain.StreamDelta, error) {
		payloads = append(payloads, string(data))
		return &domain.StreamDelta{Content: string(data)}, nil
	})
	var got []domain.StreamDelta
	for d := range ch {
		got = append(got, d)
	}

	if len(payloads) != 1 || payloads[0] != "line one\nline two" {
		t.Errorf("payloads = %q, want data lines joined with newline", payloads)
	}
	if len(got) != 2 || !got[1].Done {
		t.Errorf("deltas = %+v", got)
	}
}

func TestReadSSEEventsFlushesTrailingEvent(t *testing.T) {
	// Stream ends without a terminating blank line; the pending event still
	// reaches the parser.
	body := io.NopCloser(strings.NewReader("data: {\"text\":\"last\"}\n"))

	var got []domain.StreamDelta
	for d := range readSSEEvents(context.Background(), body, parseTextEvent) {
		got = append(got, d)
	}
	if len(got) != 1 || got[0].Content != "last" {
		t.Errorf("deltas = %+v", got)
	}
}

func TestReadSSEEventsCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	ch := readSSEEvents(ctx, pr, parseTextEvent)

	pw.Write([]byte("data: {\"text\":\"first\"}\n\n"))
	select {
	case d := <-ch:
		if d.Content != "first" {
			t.Errorf("first delta = %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("no delta received")
	}

	cancel()
	pw.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancellation")
		}
	}
}
