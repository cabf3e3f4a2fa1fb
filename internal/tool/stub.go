package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

const stubParams = `{
  "type": "object",
  "properties": {
    "permission": {"type": "string", "description": "permission name to request via ctx.Ask, empty to skip"},
    "pattern": {"type": "string", "description": "pattern to evaluate the permission against"},
    "output": {"type": "string", "description": "output to return on success"},
    "fail": {"type": "boolean", "description": "if true, execute returns an error instead of a result"}
  }
}`

// NewStubTool returns a scriptable tool used to drive the permission-gated
// and tool-call scenarios (spec §8 S2–S6) without a real concrete tool:
// its input tells it which permission to request, if any, and what to
// return or fail with.
func NewStubTool() *BaseTool {
	return NewBaseTool("stub", "Scriptable tool for exercising tool dispatch and permission gating", json.RawMessage(stubParams),
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			var args struct {
				Permission string `json:"permission"`
				Pattern    string `json:"pattern"`
				Output     string `json:"output"`
				Fail       bool   `json:"fail"`
			}
			if len(input) > 0 {
				if err := json.Unmarshal(input, &args); err != nil {
					return nil, fmt.Errorf("stub: invalid input: %w", err)
				}
			}

			if args.Permission != "" {
				if err := toolCtx.AskPermission(ctx, args.Permission, args.Pattern, nil); err != nil {
					return nil, err
				}
			}

			if args.Fail {
				return nil, fmt.Errorf("stub: scripted failure")
			}

			return &Result{Title: "stub", Output: args.Output}, nil
		})
}
