package tool

import (
	"encoding/json"
	"strings"
	"testing"
)

type searchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func TestParseParams(t *testing.T) {
	p, errRes := ParseParams[searchParams]("call_1", json.RawMessage(`{"query":"go","limit":5}`))
	if errRes != nil {
		t.Fatalf("unexpected error result: %s", errRes.Content)
	}
	if p.Query != "go" || p.Limit != 5 {
		t.Errorf("parsed = %+v", p)
	}
}

func TestParseParamsEmpty(t *testing.T) {
	p, errRes := ParseParams[searchParams]("call_1", nil)
	if errRes != nil {
		t.Fatalf("empty args should parse to zero value, got error: %s", errRes.Content)
	}
	if p.Query != "" || p.Limit != 0 {
		t.Errorf("parsed = %+v, want zero value", p)
	}
}

func TestParseParamsMalformed(t *testing.T) {
	_, errRes := ParseParams[searchParams]("call_9", json.RawMessage(`{"query":`))
	if errRes == nil {
		t.Fatal("expected error result for malformed JSON")
	}
	if !errRes.IsError {
		t.Error("IsError = false")
	}
	if errRes.CallID != "call_9" {
		t.Errorf("CallID = %q, want call_9", errRes.CallID)
	}
}

func TestRequireFields(t *testing.T) {
	if err := RequireFields("query", "go", "limit", "5"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := RequireFields("query", "", "limit", "  ")
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	if !strings.Contains(err.Error(), "query") || !strings.Contains(err.Error(), "limit") {
		t.Errorf("error should name both missing fields: %v", err)
	}
}
