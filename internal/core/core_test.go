package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	user := &UserMessage{ID: "msg_1", SessionID: "ses_1", Agent: "build", Model: ModelRef{ProviderID: "anthropic", ModelID: "claude-sonnet-4"}}
	data, err := MarshalMessage(user)
	require.NoError(t, err)

	decoded, err := UnmarshalMessage(data)
	require.NoError(t, err)
	require.Equal(t, RoleUser, decoded.MessageRole())
	require.Equal(t, "msg_1", decoded.MessageID())

	finish := FinishStop
	asst := &AssistantMessage{ID: "msg_2", SessionID: "ses_1", ParentID: "msg_1", Finish: &finish}
	data, err = MarshalMessage(asst)
	require.NoError(t, err)

	decoded, err = UnmarshalMessage(data)
	require.NoError(t, err)
	require.Equal(t, RoleAssistant, decoded.MessageRole())
	out, ok := decoded.(*AssistantMessage)
	require.True(t, ok)
	require.True(t, out.IsTerminal())
}

func TestPartRoundTripText(t *testing.T) {
	p := &TextPart{base: base{ID: "prt_1", SessionID: "ses_1", MessageID: "msg_1"}, Text: "hi"}
	data, err := MarshalPart(p)
	require.NoError(t, err)

	decoded, err := UnmarshalPart(data)
	require.NoError(t, err)
	require.Equal(t, PartTypeText, decoded.PartType())
	out := decoded.(*TextPart)
	require.Equal(t, "hi", out.Text)
}

func TestPartRoundTripToolState(t *testing.T) {
	p := &ToolPart{
		base:   base{ID: "prt_2", SessionID: "ses_1", MessageID: "msg_1"},
		CallID: "call_1",
		Tool:   "bash",
		State:  ToolStateCompleted{Output: "ok"},
	}
	data, err := MarshalPart(p)
	require.NoError(t, err)

	decoded, err := UnmarshalPart(data)
	require.NoError(t, err)
	out := decoded.(*ToolPart)
	require.Equal(t, ToolStatusCompleted, out.State.Status())
	completed, ok := out.State.(ToolStateCompleted)
	require.True(t, ok)
	require.Equal(t, "ok", completed.Output)
}

func TestUnmarshalPartUnknownType(t *testing.T) {
	_, err := UnmarshalPart([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
}

func TestRuleSetKeepsDeclarationOrder(t *testing.T) {
	rules := RuleSet{
		{Permission: "*", Pattern: "*", Action: ActionAllow},
		{Permission: "bash", Pattern: "*", Action: ActionDeny},
	}
	require.Equal(t, ActionDeny, rules[len(rules)-1].Action)
}
