package agents

import "sync"

// Registry stores agents by their kind for quick lookup.
type Registry struct {
	agents map[Kind]Agent
	mu     sync.RWMutex
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[Kind]Agent)}
}

// Register adds or replaces an agent entry.
func (r *Registry) Register(ag Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[ag.Kind()] = ag
}

// Get retrieves an agent by kind.
func (r *Registry) Get(kind Kind) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ag, ok := r.agents[kind]
	return ag, ok
}

// List returns registered agent kinds.
func (r *Registry) List() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]Kind, 0, len(r.agents))
	for k := range r.agents {
		res = append(res, k)
	}

	return res
}
