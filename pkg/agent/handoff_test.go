package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestHandoffToolExecute(t *testing.T) {
	reg := NewRegistry("main", testLogger())
	broker := NewBroker(reg, 0, testLogger())
	reg.Register(chainInstance(broker, "worker", ""))

	h := NewHandoffTool(broker, reg, "main")
	res, err := h.Execute(context.Background(), "call_1", json.RawMessage(`{"agent_id":"worker","message":"do it"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", res.Content)
	}
	if res.Content != "chain end" {
		t.Errorf("Content = %q", res.Content)
	}
	if res.CallID != "call_1" {
		t.Errorf("CallID = %q", res.CallID)
	}
	if res.Meta["agent"] != "worker" {
		t.Errorf("Meta = %v", res.Meta)
	}
}

func TestHandoffToolMissingFields(t *testing.T) {
	reg := NewRegistry("main", testLogger())
	broker := NewBroker(reg, 0, testLogger())

	h := NewHandoffTool(broker, reg, "main")
	res, err := h.Execute(context.Background(), "call_2", json.RawMessage(`{"agent_id":""}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("missing fields should produce a failed result")
	}
}

func TestHandoffToolUnknownAgent(t *testing.T) {
	reg := NewRegistry("main", testLogger())
	broker := NewBroker(reg, 0, testLogger())

	h := NewHandoffTool(broker, reg, "main")
	res, err := h.Execute(context.Background(), "call_3", json.RawMessage(`{"agent_id":"ghost","message":"hi"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "handoff failed") {
		t.Errorf("res = %+v", res)
	}
}

func TestHandoffToolSchemaListsAgents(t *testing.T) {
	reg := NewRegistry("main", testLogger())
	broker := NewBroker(reg, 0, testLogger())
	reg.Register(chainInstance(broker, "main", ""))
	reg.Register(chainInstance(broker, "research", ""))

	h := NewHandoffTool(broker, reg, "main")
	schema := h.Schema()
	if !strings.Contains(schema.Description, "research") {
		t.Errorf("description should list peers: %q", schema.Description)
	}
	if strings.Contains(schema.Description, "main (") {
		t.Errorf("description should not list the owning agent: %q", schema.Description)
	}
}
