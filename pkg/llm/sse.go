package llm

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// sseDoneSentinel ends OpenAI-style streams; Anthropic and Gemini signal
// completion inside their payloads instead.
var sseDoneSentinel = []byte("[DONE]")

// readSSEEvents consumes a text/event-stream body and converts each complete
// event into a StreamDelta via the vendor-specific parse function. An event
// is everything up to a blank line: its "event:" field (may be absent, as in
// OpenAI and Gemini streams) and its "data:" lines joined with newlines.
//
// parse may return (nil, nil) to drop an event. Unparseable events are
// skipped. The channel closes when the stream ends, parse reports Done, or
// ctx is cancelled; a read error surfaces as a final Done delta so consumers
// always observe termination.
func readSSEEvents(ctx context.Context, body io.ReadCloser, parse func(event string, data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		var (
			eventName string
			dataLines [][]byte
		)

		// dispatch hands the accumulated event to parse and forwards the
		// delta. It reports whether reading should continue.
		dispatch := func() bool {
			if len(dataLines) == 0 {
				eventName = ""
				return true
			}
			data := bytes.Join(dataLines, []byte("\n"))
			name := eventName
			eventName, dataLines = "", nil

			if bytes.Equal(data, sseDoneSentinel) {
				sendDelta(ctx, ch, domain.StreamDelta{Done: true})
				return false
			}

			delta, err := parse(name, data)
			if err != nil || delta == nil {
				return true
			}
			if !sendDelta(ctx, ch, *delta) {
				return false
			}
			return !delta.Done
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBody)

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Bytes()

			if len(line) == 0 {
				if !dispatch() {
					return
				}
				continue
			}
			if line[0] == ':' { // comment
				continue
			}

			field, value := splitSSEField(line)
			switch field {
			case "event":
				eventName = string(value)
			case "data":
				dataLines = append(dataLines, append([]byte(nil), value...))
			}
			// id and retry fields are irrelevant to these APIs.
		}

		// Flush an event the stream ended without terminating.
		if scanner.Err() == nil {
			dispatch()
			return
		}
		sendDelta(ctx, ch, domain.StreamDelta{Done: true})
	}()
	return ch
}

// splitSSEField separates "field: value". A missing colon means the whole
// line is a field name with an empty value; a single space after the colon is
// not part of the value.
func splitSSEField(line []byte) (string, []byte) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return string(line), nil
	}
	value := line[idx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:idx]), value
}

func sendDelta(ctx context.Context, ch chan<- domain.StreamDelta, d domain.StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
