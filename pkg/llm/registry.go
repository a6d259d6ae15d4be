package llm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kaia-ai/kaia/pkg/config"
	"github.com/kaia-ai/kaia/pkg/domain"
)

// Registry holds named chat clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]domain.ChatClient
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]domain.ChatClient),
	}
}

// Register adds a client. Returns error if the name is already registered.
func (r *Registry) Register(client domain.ChatClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := client.Name()
	if _, exists := r.clients[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, name)
	}
	r.clients[name] = client
	return nil
}

// Get retrieves a client by name.
func (r *Registry) Get(name string) (domain.ChatClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrClientNotFound, name)
	}
	return c, nil
}

// List returns all registered client names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// NewClient builds a vendor client from its configuration.
func NewClient(cfg config.ClientConfig, logger *slog.Logger) (domain.ChatClient, error) {
	switch cfg.Type {
	case "openai", "":
		return NewOpenAIClient(cfg, logger), nil
	case "anthropic":
		return NewAnthropicClient(cfg, logger), nil
	case "gemini":
		return NewGeminiClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown client type %q", cfg.Type)
	}
}

// BuildRegistry constructs all configured clients, wraps each with a circuit
// breaker when enabled, and registers them under their configured names.
func BuildRegistry(cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, cc := range cfg.Clients {
		client, err := NewClient(cc, logger)
		if err != nil {
			return nil, fmt.Errorf("build client %q: %w", cc.Name, err)
		}
		if cfg.CircuitBreaker.Enabled {
			client = NewCircuitBreakerClient(client, cfg.CircuitBreaker, logger)
		}
		if err := reg.Register(client); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Resolve looks up the named client and wires the configured failover chain
// around it. A client that appears in its own fallback list is skipped so the
// chain never retries the client that just failed.
func Resolve(cfg config.LLMConfig, reg *Registry, name string, logger *slog.Logger) (domain.ChatClient, error) {
	primary, err := reg.Get(name)
	if err != nil {
		return nil, err
	}
	if !cfg.Failover.Enabled || len(cfg.Failover.Fallbacks) == 0 {
		return primary, nil
	}

	fallbacks := make([]domain.ChatClient, 0, len(cfg.Failover.Fallbacks))
	for _, fbName := range cfg.Failover.Fallbacks {
		if fbName == name {
			continue
		}
		fb, err := reg.Get(fbName)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, fb)
	}
	if len(fallbacks) == 0 {
		return primary, nil
	}
	return NewFailoverClient(primary, fallbacks, logger), nil
}

// Default resolves the default client for cfg, wiring failover fallbacks when
// configured.
func Default(cfg config.LLMConfig, reg *Registry, logger *slog.Logger) (domain.ChatClient, error) {
	return Resolve(cfg, reg, cfg.DefaultClient, logger)
}
