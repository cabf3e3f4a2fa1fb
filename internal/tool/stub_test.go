package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/stretchr/testify/require"
)

func TestEchoTool(t *testing.T) {
	tl := NewEchoTool()
	res, err := tl.Execute(context.Background(), json.RawMessage(`{"text":"hello"}`), &Context{})
	require.NoError(t, err)
	require.Equal(t, "hello", res.Output)
}

func TestStubTool_NoPermission(t *testing.T) {
	tl := NewStubTool()
	res, err := tl.Execute(context.Background(), json.RawMessage(`{"output":"ok"}`), &Context{})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Output)
}

func TestStubTool_PermissionDenied(t *testing.T) {
	checker := permission.NewChecker(bus.New())
	toolCtx := &Context{
		SessionID: "ses_1",
		Ask: func(ctx context.Context, req permission.Request) error {
			req.Ruleset = core.RuleSet{{Permission: "bash", Pattern: "*", Action: core.ActionDeny}}
			return checker.Ask(ctx, req)
		},
	}

	tl := NewStubTool()
	_, err := tl.Execute(context.Background(), json.RawMessage(`{"permission":"bash","pattern":"ls"}`), toolCtx)
	require.Error(t, err)
	require.True(t, permission.IsDeniedError(err))
}

func TestStubTool_Fail(t *testing.T) {
	tl := NewStubTool()
	_, err := tl.Execute(context.Background(), json.RawMessage(`{"fail":true}`), &Context{})
	require.Error(t, err)
}
