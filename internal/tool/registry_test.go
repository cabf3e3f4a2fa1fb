package tool

import (
	"context"
	"encoding/json"
	"testing"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTool struct {
	id          string
	description string
	params      json.RawMessage
}

func (m *mockTool) ID() string                  { return m.id }
func (m *mockTool) Description() string         { return m.description }
func (m *mockTool) Parameters() json.RawMessage { return m.params }
func (m *mockTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return &Result{Output: "mock result"}, nil
}
func (m *mockTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: m}
}

func newMockTool(id, description string) *mockTool {
	return &mockTool{id: id, description: description, params: json.RawMessage(`{"type": "object", "properties": {}}`)}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(newMockTool("test_tool", "A test tool"))

	got, ok := r.Get("test_tool")
	require.True(t, ok)
	assert.Equal(t, "test_tool", got.ID())
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	_, ok := r.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(newMockTool("tool1", "Tool 1"))
	r.Register(newMockTool("tool2", "Tool 2"))
	r.Register(newMockTool("tool3", "Tool 3"))

	assert.Len(t, r.List(), 3)
}

func TestRegistry_IDs(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(newMockTool("alpha", "Alpha"))
	r.Register(newMockTool("beta", "Beta"))

	assert.ElementsMatch(t, []string{"alpha", "beta"}, r.IDs())
}

func TestRegistry_EinoTools(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(newMockTool("tool1", "Tool 1"))
	r.Register(newMockTool("tool2", "Tool 2"))

	assert.Len(t, r.EinoTools(), 2)
}

func TestRegistry_ToolInfos(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(&mockTool{
		id:          "read_file",
		description: "Reads a file from disk",
		params: json.RawMessage(`{
			"type": "object",
			"properties": {"path": {"type": "string", "description": "File path"}},
			"required": ["path"]
		}`),
	})

	infos, err := r.ToolInfos()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "read_file", infos[0].Name)
	assert.Equal(t, "Reads a file from disk", infos[0].Desc)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry("/tmp", nil)

	for _, name := range []string{"echo", "stub", "invalid"} {
		_, ok := r.Get(name)
		assert.True(t, ok, "expected tool %q to be registered", name)
	}
	assert.Len(t, r.List(), 3)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry("/tmp", nil)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			name := "tool" + string(rune('0'+n))
			r.Register(newMockTool(name, "Tool"))
			r.List()
			r.IDs()
			r.Get(name)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, r.List(), 10)
}

func TestRegistry_ReplaceExisting(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(newMockTool("mytool", "Original description"))
	r.Register(newMockTool("mytool", "New description"))

	got, _ := r.Get("mytool")
	assert.Equal(t, "New description", got.Description())
	assert.Len(t, r.List(), 1)
}
