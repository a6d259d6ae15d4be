package llm

import (
	"errors"
	"testing"

	"github.com/kaia-ai/kaia/pkg/config"
	"github.com/kaia-ai/kaia/pkg/domain"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubClient{name: "openai"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c, err := r.Get("openai")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Name() != "openai" {
		t.Errorf("Name = %q", c.Name())
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubClient{name: "openai"})

	err := r.Register(&stubClient{name: "openai"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, domain.ErrClientNotFound) {
		t.Errorf("err = %v, want ErrClientNotFound", err)
	}
}

func TestNewClientTypes(t *testing.T) {
	cases := []struct {
		typ  string
		want string
	}{
		{"openai", "c1"},
		{"anthropic", "c2"},
		{"gemini", "c3"},
		{"", "c4"}, // empty defaults to openai-compatible
	}
	for i, tc := range cases {
		c, err := NewClient(config.ClientConfig{Name: tc.want, Type: tc.typ}, testLogger())
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if c.Name() != tc.want {
			t.Errorf("case %d: Name = %q", i, c.Name())
		}
	}

	if _, err := NewClient(config.ClientConfig{Name: "x", Type: "mystery"}, testLogger()); err == nil {
		t.Error("unknown type should fail")
	}
}

func TestBuildRegistryAndDefault(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultClient: "main",
		Clients: []config.ClientConfig{
			{Name: "main", Type: "openai"},
			{Name: "backup", Type: "anthropic"},
		},
		Failover: config.FailoverConfig{
			Enabled:   true,
			Fallbacks: []string{"backup"},
		},
	}

	reg, err := BuildRegistry(cfg, testLogger())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if len(reg.List()) != 2 {
		t.Errorf("List = %v", reg.List())
	}

	c, err := Default(cfg, reg, testLogger())
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Name() != "main+failover" {
		t.Errorf("default client = %q, want failover wrapper", c.Name())
	}
}

func TestResolveWrapsNamedClient(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultClient: "main",
		Clients: []config.ClientConfig{
			{Name: "main", Type: "openai"},
			{Name: "backup", Type: "anthropic"},
			{Name: "fast", Type: "gemini"},
		},
		Failover: config.FailoverConfig{
			Enabled:   true,
			Fallbacks: []string{"backup"},
		},
	}

	reg, err := BuildRegistry(cfg, testLogger())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	// Any named client gets the same failover chain as the default.
	c, err := Resolve(cfg, reg, "fast", testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Name() != "fast+failover" {
		t.Errorf("resolved client = %q, want failover wrapper", c.Name())
	}

	if _, err := Resolve(cfg, reg, "missing", testLogger()); !errors.Is(err, domain.ErrClientNotFound) {
		t.Errorf("err = %v, want ErrClientNotFound", err)
	}
}

func TestResolveSkipsSelfInFallbacks(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultClient: "main",
		Clients: []config.ClientConfig{
			{Name: "main", Type: "openai"},
			{Name: "backup", Type: "anthropic"},
		},
		Failover: config.FailoverConfig{
			Enabled:   true,
			Fallbacks: []string{"backup"},
		},
	}

	reg, err := BuildRegistry(cfg, testLogger())
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	// backup's only fallback is itself, so it resolves bare.
	c, err := Resolve(cfg, reg, "backup", testLogger())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Name() != "backup" {
		t.Errorf("resolved client = %q, want bare client", c.Name())
	}
}
