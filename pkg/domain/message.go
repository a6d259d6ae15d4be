package domain

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies one variant of the message union.
type Kind string

// Message kinds. The set is closed; code switching on Kind should handle
// every constant below.
const (
	KindUser         Kind = "user"
	KindSystem       Kind = "system"
	KindAssistant    Kind = "assistant"
	KindToolCall     Kind = "tool_call"
	KindToolResponse Kind = "tool_response"
)

// Message is a single conversation turn. Messages are immutable value
// objects: construct them with the New*Message functions and never mutate
// them afterwards. Which fields are populated depends on Kind.
type Message struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Content   string          `json:"content,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`       // assistant: vendor payload for traceability
	CallID    string          `json:"call_id,omitempty"`   // tool_call, tool_response
	ToolName  string          `json:"tool_name,omitempty"` // tool_call
	Arguments json.RawMessage `json:"arguments,omitempty"` // tool_call
	IsError   bool            `json:"is_error,omitempty"`  // tool_response
	Timestamp time.Time       `json:"timestamp"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewMessageID returns a process-wide unique, lexically sortable ULID.
func NewMessageID() string {
	t := time.Now()
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) Message {
	return Message{ID: NewMessageID(), Kind: KindUser, Content: content, Timestamp: time.Now()}
}

// NewSystemMessage creates a system turn.
func NewSystemMessage(content string) Message {
	return Message{ID: NewMessageID(), Kind: KindSystem, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant turn. raw is the vendor response
// payload and may be nil.
func NewAssistantMessage(content string, raw json.RawMessage) Message {
	return Message{ID: NewMessageID(), Kind: KindAssistant, Content: content, Raw: raw, Timestamp: time.Now()}
}

// NewToolCallMessage records a vendor-requested tool invocation.
func NewToolCallMessage(callID, toolName string, args json.RawMessage) Message {
	return Message{
		ID:        NewMessageID(),
		Kind:      KindToolCall,
		CallID:    callID,
		ToolName:  toolName,
		Arguments: args,
		Timestamp: time.Now(),
	}
}

// NewToolResponseMessage records the outcome of one tool invocation.
func NewToolResponseMessage(callID, content string, isError bool) Message {
	return Message{
		ID:        NewMessageID(),
		Kind:      KindToolResponse,
		CallID:    callID,
		Content:   content,
		IsError:   isError,
		Timestamp: time.Now(),
	}
}
