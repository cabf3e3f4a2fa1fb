package tool

import (
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/agentcore/runtime/internal/logging"

	"github.com/agentcore/runtime/internal/storage"
)

// Registry manages tool registration and lookup. The registry is a fixed
// list augmentable at startup (spec §4.4); tool filtering by model is
// advisory and happens at the agent/model-adapter layer, not here.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
	storage *storage.Storage
}

// NewRegistry constructs an empty Registry.
func NewRegistry(workDir string, store *storage.Storage) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
		storage: store,
	}
}

// Storage returns the shared storage instance, for tools that persist
// auxiliary state (e.g. a future todo tool).
func (r *Registry) Storage() *storage.Storage { return r.storage }

// WorkDir returns the working directory new tools should be scoped to.
func (r *Registry) WorkDir() string { return r.workDir }

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", t.ID()).Msg("registering tool")
	r.tools[t.ID()] = t
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// IDs returns all registered tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for id := range r.tools {
		out = append(out, id)
	}
	return out
}

// EinoTools returns every registered tool adapted to eino's invokable-tool
// interface, for wiring into the eino-backed model adapter.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.EinoTool())
	}
	return out
}

// ToolInfos returns eino ToolInfo for every registered tool, used to
// advertise the tool catalog to the model.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(parseJSONSchemaToParams(t.Parameters())),
		})
	}
	return out, nil
}

// DefaultRegistry constructs a Registry with the shipped tools: echo, the
// scriptable stub used to drive the E2E scenarios, and the invalid
// sentinel dispatch substitutes for an unresolvable tool name. Concrete
// tools (bash, edit, read, write, glob, grep, ...) are an explicit
// Non-goal — this process never touches the filesystem or a shell on the
// model's behalf.
func DefaultRegistry(workDir string, store *storage.Storage) *Registry {
	r := NewRegistry(workDir, store)
	r.Register(NewEchoTool())
	r.Register(NewStubTool())
	r.Register(NewInvalidTool())
	logging.Debug().Strs("tools", r.IDs()).Msg("default tool registry constructed")
	return r
}
