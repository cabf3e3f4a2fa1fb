// Package modeladapter implements the language-model adapter contract
// (spec §4.5): given a model, system prompt, message history, tool
// catalog and options, produce a lazily-producing sequence of typed
// events. Grounded on the teacher's internal/session/stream.go, whose
// StreamEvent hierarchy existed but was never the thing actually consumed
// — here it is the adapter's real output contract.
package modeladapter

import "github.com/agentcore/runtime/internal/core"

// Event is one of the typed stream events of spec §4.5. Events for
// distinct text/reasoning/tool-call blocks may interleave but within one
// block are ordered.
type Event interface {
	event()
}

type TextStart struct{}

func (TextStart) event() {}

type TextDelta struct {
	Delta string
}

func (TextDelta) event() {}

type TextEnd struct {
	Text     string
	Metadata map[string]any
}

func (TextEnd) event() {}

type ReasoningStart struct{}

func (ReasoningStart) event() {}

type ReasoningDelta struct {
	Delta string
}

func (ReasoningDelta) event() {}

type ReasoningEnd struct {
	Text     string
	Metadata map[string]any
}

func (ReasoningEnd) event() {}

type ToolCallStart struct {
	ToolCallID string
	ToolName   string
}

func (ToolCallStart) event() {}

type ToolCallDelta struct {
	ToolCallID string
	ArgsDelta  string
}

func (ToolCallDelta) event() {}

// ToolCall is the finalized tool-call input; the canonical value, not the
// accumulated deltas (spec §9 "streaming partial JSON decoding").
type ToolCall struct {
	ToolCallID string
	ToolName   string
	Args       string
}

func (ToolCall) event() {}

type StepFinish struct {
	FinishReason core.FinishReason
	Usage        core.TokenUsage
	Metadata     map[string]any
}

func (StepFinish) event() {}

type Error struct {
	Cause error
}

func (Error) event() {}
