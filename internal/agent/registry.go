package agent

import (
	"fmt"
	"sync"

	"github.com/agentcore/runtime/internal/core"
)

// Registry holds the set of known agents: the four built-ins plus any
// user-configured overrides (spec §2 "Agent").
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry constructs a Registry pre-populated with the built-in agents.
func NewRegistry() *Registry {
	r := &Registry{agents: make(map[string]*Agent)}
	for name, a := range BuiltInAgents() {
		r.agents[name] = a
	}
	return r
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", name)
	}
	return a, nil
}

// Register adds or replaces an agent.
func (r *Registry) Register(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name] = a
}

// Unregister removes an agent by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, name)
}

// List returns all registered agents.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// ListPrimary returns agents selectable as the primary agent.
func (r *Registry) ListPrimary() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Agent
	for _, a := range r.agents {
		if a.IsPrimary() {
			out = append(out, a)
		}
	}
	return out
}

// ListSubagents returns agents selectable via the `task` tool.
func (r *Registry) ListSubagents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Agent
	for _, a := range r.agents {
		if a.IsSubagent() {
			out = append(out, a)
		}
	}
	return out
}

// Names returns all registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for name := range r.agents {
		out = append(out, name)
	}
	return out
}

// Exists reports whether an agent by that name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Config is user configuration for an agent, applied over a built-in or
// used to define a brand-new custom agent.
type Config struct {
	Description string          `json:"description,omitempty"`
	Mode        Mode            `json:"mode,omitempty"`
	Model       *core.ModelRef  `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"topP,omitempty"`
	Steps       int             `json:"steps,omitempty"`
	Color       string          `json:"color,omitempty"`
	Tools       map[string]bool `json:"tools,omitempty"`
	Permission  core.RuleSet    `json:"permission,omitempty"`
}

// LoadFromConfig applies user configuration on top of the registry: an
// existing agent (built-in or custom) is cloned and overridden in place;
// an unknown name creates a new primary-mode custom agent. Permission
// rules are appended, not replaced, so a config's rules take effect via
// the same last-match-wins evaluation as everything else (spec §4.3).
func (r *Registry) LoadFromConfig(cfgs map[string]Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cfg := range cfgs {
		a, exists := r.agents[name]
		if exists {
			a = a.Clone()
			a.BuiltIn = false
		} else {
			a = &Agent{Name: name, Mode: ModePrimary, Tools: make(map[string]bool)}
		}

		if cfg.Description != "" {
			a.Description = cfg.Description
		}
		if cfg.Mode != "" {
			a.Mode = cfg.Mode
		}
		if cfg.Model != nil {
			a.Model = cfg.Model
		}
		if cfg.Prompt != "" {
			a.Prompt = cfg.Prompt
		}
		if cfg.Temperature > 0 {
			a.Temperature = cfg.Temperature
		}
		if cfg.TopP > 0 {
			a.TopP = cfg.TopP
		}
		if cfg.Steps > 0 {
			a.Steps = cfg.Steps
		}
		if cfg.Color != "" {
			a.Color = cfg.Color
		}
		if cfg.Tools != nil {
			if a.Tools == nil {
				a.Tools = make(map[string]bool)
			}
			for k, v := range cfg.Tools {
				a.Tools[k] = v
			}
		}
		if len(cfg.Permission) > 0 {
			a.Permission = append(a.Permission, cfg.Permission...)
		}

		r.agents[name] = a
	}
}
