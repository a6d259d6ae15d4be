package agent

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// Instance bundles a running agent with its isolated session store.
type Instance struct {
	Identity Identity
	Agent    *Agent
	Sessions *Store
}

// Status is a monitoring snapshot of one registered agent.
type Status struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Client         string `json:"client"`
	Model          string `json:"model"`
	ActiveSessions int    `json:"active_sessions"`
}

// Registry holds all registered agent instances and provides lookup.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*Instance
	defaultID string
	logger    *slog.Logger
}

// NewRegistry creates a Registry with the given default agent ID.
func NewRegistry(defaultID string, logger *slog.Logger) *Registry {
	return &Registry{
		agents:    make(map[string]*Instance),
		defaultID: defaultID,
		logger:    logger,
	}
}

// Register adds an agent instance. Returns ErrDuplicate if already registered.
func (r *Registry) Register(instance *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := instance.Identity.ID
	if _, exists := r.agents[id]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, id)
	}
	r.agents[id] = instance
	r.logger.Info("agent registered", "agent_id", id, "name", instance.Identity.Name)
	return nil
}

// Get returns the agent instance for the given ID, or ErrAgentNotFound.
func (r *Registry) Get(agentID string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.agents[agentID]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrAgentNotFound, agentID)
	}
	return inst, nil
}

// Default returns the default agent instance.
func (r *Registry) Default() (*Instance, error) {
	return r.Get(r.defaultID)
}

// List returns a status snapshot for every registered agent, sorted by ID.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]Status, 0, len(r.agents))
	for _, inst := range r.agents {
		statuses = append(statuses, Status{
			ID:             inst.Identity.ID,
			Name:           inst.Identity.Name,
			Client:         inst.Identity.Client,
			Model:          inst.Identity.Model,
			ActiveSessions: len(inst.Sessions.List()),
		})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ID < statuses[j].ID
	})
	return statuses
}

// Remove unregisters an agent. Returns ErrAgentNotFound if not present.
func (r *Registry) Remove(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agentID]; !ok {
		return domain.NewDomainError("Registry.Remove", domain.ErrAgentNotFound, agentID)
	}
	delete(r.agents, agentID)
	r.logger.Info("agent removed", "agent_id", agentID)
	return nil
}
