package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

const echoParams = `{
  "type": "object",
  "properties": {
    "text": {"type": "string", "description": "text to echo back"}
  },
  "required": ["text"]
}`

// NewEchoTool returns a tool that echoes its input back as output, used
// as the minimal non-trivial tool for exercising the dispatch pipeline
// (spec §4.6) without touching the filesystem or a shell.
func NewEchoTool() *BaseTool {
	return NewBaseTool("echo", "Echo the given text back", json.RawMessage(echoParams),
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			var args struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return nil, fmt.Errorf("echo: invalid input: %w", err)
			}
			return &Result{
				Title:  "echo",
				Output: args.Text,
			}, nil
		})
}
