package modeladapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// ModelNotFoundError is raised when a requested (provider, model) pair is
// unknown; it carries up to 5 ranked suggestions (spec §7 error mapping:
// ModelNotFoundError → HTTP 400).
type ModelNotFoundError struct {
	ProviderID  string
	ModelID     string
	Suggestions []string
}

func (e *ModelNotFoundError) Error() string {
	msg := fmt.Sprintf("model not found: %s/%s", e.ProviderID, e.ModelID)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Registry holds providers and the models they advertise (grounded on
// internal/provider/registry.go).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	models    map[string][]Model // providerID -> models
	def       *Model
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider), models: make(map[string][]Model)}
}

// Register adds a provider and the models it serves.
func (r *Registry) Register(p Provider, models []Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	r.models[p.ID()] = models
}

// SetDefault marks the model returned by DefaultModel.
func (r *Registry) SetDefault(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = &m
}

// Provider retrieves a registered provider by ID.
func (r *Registry) Provider(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return p, nil
}

// Model looks up a model by (providerID, modelID). On miss, it returns a
// *ModelNotFoundError carrying up to 5 Levenshtein-ranked suggestions
// among the models whose ProviderID is providerID, as "provider/model"
// strings.
func (r *Registry) Model(providerID, modelID string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.models[providerID] {
		if m.ModelID == modelID {
			return &m, nil
		}
	}

	return nil, &ModelNotFoundError{
		ProviderID:  providerID,
		ModelID:     modelID,
		Suggestions: r.suggestLocked(providerID, modelID),
	}
}

// AllModels returns every registered model across every provider.
func (r *Registry) AllModels() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Model
	for _, ms := range r.models {
		out = append(out, ms...)
	}
	return out
}

// DefaultModel returns the configured default, or the first registered
// model if none was set.
func (r *Registry) DefaultModel() (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.def != nil {
		return r.def, nil
	}
	for _, ms := range r.models {
		if len(ms) > 0 {
			m := ms[0]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("no models available")
}

func (r *Registry) suggestLocked(providerID, modelID string) []string {
	type scored struct {
		key  string
		dist int
	}
	want := providerID + "/" + modelID
	var candidates []scored
	for _, ms := range r.models {
		for _, m := range ms {
			if m.ProviderID != providerID {
				continue
			}
			key := m.ProviderID + "/" + m.ModelID
			candidates = append(candidates, scored{key: key, dist: levenshtein.ComputeDistance(want, key)})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	out := make([]string, 0, 5)
	for i := 0; i < len(candidates) && i < 5; i++ {
		out = append(out, candidates[i].key)
	}
	return out
}
