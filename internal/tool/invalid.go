package tool

import (
	"context"
	"encoding/json"
	"errors"
)

const invalidParams = `{
  "type": "object",
  "properties": {
    "tool": {"type": "string", "description": "the unresolved tool name the model called"},
    "error": {"type": "string", "description": "why dispatch could not resolve it"}
  },
  "required": ["tool", "error"]
}`

// NewInvalidTool returns the sentinel dispatch substitutes for a genuinely
// unknown tool name (spec §4.6 step 2): execute still runs on it, carrying
// {tool, error} as input, instead of failing the part outside the normal
// tool-call pipeline. Execute itself always fails with the carried error.
func NewInvalidTool() *BaseTool {
	return NewBaseTool("invalid", "Sentinel for an unresolved tool call", json.RawMessage(invalidParams),
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			var args struct {
				Tool  string `json:"tool"`
				Error string `json:"error"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return nil, errors.New("invalid: malformed sentinel input")
			}
			return nil, errors.New(args.Error)
		})
}
