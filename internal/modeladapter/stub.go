package modeladapter

import "context"

// StubProvider is a deterministic, scriptable Provider used for tests and
// the E2E scenarios of spec §8 — it requires no network access and no
// API key. Script is called once per step invocation (once per model
// call within a turn) and returns the exact event sequence to emit.
type StubProvider struct {
	IDValue string
	Script  func(req Request, step int) []Event

	steps map[string]int // sessionless counter keyed by a caller-supplied key, for convenience scripts
}

// NewStubProvider constructs a StubProvider. If script is nil, a default
// script is used: it emits a single text part ("hi") and finishes with
// "stop", satisfying S1 (the echo-turn scenario).
func NewStubProvider(script func(req Request, step int) []Event) *StubProvider {
	if script == nil {
		script = defaultScript
	}
	return &StubProvider{IDValue: "stub", Script: script, steps: make(map[string]int)}
}

func (p *StubProvider) ID() string { return p.IDValue }

// Stream replays the scripted event sequence for this call onto a
// buffered channel, honoring abort by stopping early.
func (p *StubProvider) Stream(ctx context.Context, req Request, abort <-chan struct{}) (<-chan Event, error) {
	step := len(req.Messages)
	events := p.Script(req, step)

	ch := make(chan Event, len(events))
	go func() {
		defer close(ch)
		for _, ev := range events {
			select {
			case <-ctx.Done():
				return
			case <-abort:
				return
			case ch <- ev:
			}
		}
	}()
	return ch, nil
}

func defaultScript(req Request, step int) []Event {
	return []Event{
		TextStart{},
		TextDelta{Delta: "hi"},
		TextEnd{Text: "hi"},
		StepFinish{FinishReason: "stop"},
	}
}

// ToolCallScript returns a script that emits one tool call on its first
// invocation (finishing with "tool-calls"), then a closing text part on
// every subsequent invocation (finishing "stop") — the shape of S2.
func ToolCallScript(toolName, argsJSON, doneText string) func(req Request, step int) []Event {
	called := false
	return func(req Request, step int) []Event {
		if !called {
			called = true
			return []Event{
				ToolCallStart{ToolCallID: "call_1", ToolName: toolName},
				ToolCall{ToolCallID: "call_1", ToolName: toolName, Args: argsJSON},
				StepFinish{FinishReason: "tool-calls"},
			}
		}
		return []Event{
			TextStart{},
			TextDelta{Delta: doneText},
			TextEnd{Text: doneText},
			StepFinish{FinishReason: "stop"},
		}
	}
}
