// Package tool provides the tool ABI: the fixed, augmentable-at-startup
// registry of things the language model may call, and the execution
// context dispatch runs them with (spec §4.4).
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/permission"
)

// Tool is {id, description, parameterSchema, execute}.
type Tool interface {
	ID() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool adapts this tool to eino's invokable-tool interface, so the
	// same registry feeds both the stub adapter and the eino-backed one.
	EinoTool() einotool.InvokableTool
}

// Context is the execution context passed to Execute (spec §4.4).
type Context struct {
	SessionID string
	MessageID string
	CallID    string
	Agent     string
	WorkDir   string
	AbortCh   <-chan struct{}
	Extra     map[string]any

	// OnMetadata patches the in-progress tool part's title and metadata.
	OnMetadata func(title string, meta map[string]any)

	// Ask delegates to the permission arbiter. It returns nil on
	// allow/once/always and a *permission.DeniedError or
	// *permission.RejectedError on deny/reject.
	Ask func(ctx context.Context, req permission.Request) error

	// Messages returns the current message list snapshot for tools that
	// need conversational context (e.g. task/batch).
	Messages func() ([]core.Message, error)
}

// SetMetadata invokes OnMetadata if set.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// IsAborted reports whether the execution's abort channel has fired.
func (c *Context) IsAborted() bool {
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// AskPermission is a convenience wrapper around Ask for a single pattern.
func (c *Context) AskPermission(ctx context.Context, perm, pattern string, metadata json.RawMessage) error {
	if c.Ask == nil {
		return nil
	}
	return c.Ask(ctx, permission.Request{
		SessionID:  c.SessionID,
		Permission: perm,
		Patterns:   []string{pattern},
		Metadata:   metadata,
		Tool:       c.CallID,
	})
}

// Result is the output of a tool execution (spec §4.4).
type Result struct {
	Title       string         `json:"title"`
	Output      string         `json:"output"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// Attachment is a file produced by a tool, folded into the same assistant
// message as a file part (spec §4.6 step 4).
type Attachment struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
}

// BaseTool is a minimal Tool built from a closure, used by every concrete
// tool in this package instead of a hand-rolled struct per tool.
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool constructs a BaseTool.
func NewBaseTool(id, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{id: id, description: description, parameters: params, execute: execute}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

func (t *BaseTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

type einoToolWrapper struct {
	tool Tool
}

func (w *einoToolWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        w.tool.ID(),
		Desc:        w.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(parseJSONSchemaToParams(w.tool.Parameters())),
	}, nil
}

func (w *einoToolWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), &Context{})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var parsed struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &parsed); err != nil {
		return nil
	}

	required := make(map[string]bool, len(parsed.Required))
	for _, r := range parsed.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(parsed.Properties))
	for name, prop := range parsed.Properties {
		t := schema.String
		switch prop.Type {
		case "integer":
			t = schema.Integer
		case "number":
			t = schema.Number
		case "boolean":
			t = schema.Boolean
		case "array":
			t = schema.Array
		case "object":
			t = schema.Object
		}
		params[name] = &schema.ParameterInfo{Type: t, Desc: prop.Description, Required: required[name]}
	}
	return params
}
