package turn

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/identifier"
	"github.com/agentcore/runtime/internal/modeladapter"
)

// processEvents consumes one model-adapter event stream and turns it into
// persisted parts on the target assistant message (spec §4.6). It returns
// the step's finish reason once the channel closes; an error return means
// the stream ended without ever producing a StepFinish/Error event and the
// caller should retry the model call.
func (e *Engine) processEvents(
	ctx context.Context,
	sessionID string,
	ag *agent.Agent,
	model *modeladapter.Model,
	state *loopState,
	events <-chan modeladapter.Event,
) (core.FinishReason, error) {
	var textPart *core.TextPart
	var reasoningPart *core.ReasoningPart
	toolParts := make(map[string]*core.ToolPart)

	finish := core.FinishReason("")
	saw := false

	for ev := range events {
		saw = true
		switch v := ev.(type) {
		case modeladapter.TextStart:
			textPart = e.newTextPart(state)
			e.savePart(ctx, state.message.ID, textPart)
			e.publishPart(state.message, textPart, "")

		case modeladapter.TextDelta:
			if textPart == nil {
				textPart = e.newTextPart(state)
			}
			textPart.Text += v.Delta
			e.savePart(ctx, state.message.ID, textPart)
			e.publishPart(state.message, textPart, v.Delta)

		case modeladapter.TextEnd:
			if textPart == nil {
				textPart = e.newTextPart(state)
			}
			textPart.Text = v.Text
			textPart.Metadata = v.Metadata
			now := time.Now().UnixMilli()
			textPart.Time.End = &now
			e.savePart(ctx, state.message.ID, textPart)
			e.publishPart(state.message, textPart, "")
			textPart = nil

		case modeladapter.ReasoningStart:
			reasoningPart = e.newReasoningPart(state)
			e.savePart(ctx, state.message.ID, reasoningPart)
			e.publishPart(state.message, reasoningPart, "")

		case modeladapter.ReasoningDelta:
			if reasoningPart == nil {
				reasoningPart = e.newReasoningPart(state)
			}
			reasoningPart.Text += v.Delta
			e.savePart(ctx, state.message.ID, reasoningPart)
			e.publishPart(state.message, reasoningPart, v.Delta)

		case modeladapter.ReasoningEnd:
			if reasoningPart == nil {
				reasoningPart = e.newReasoningPart(state)
			}
			reasoningPart.Text = v.Text
			reasoningPart.Metadata = v.Metadata
			now := time.Now().UnixMilli()
			reasoningPart.Time.End = &now
			e.savePart(ctx, state.message.ID, reasoningPart)
			e.publishPart(state.message, reasoningPart, "")
			reasoningPart = nil

		case modeladapter.ToolCallStart:
			tp := core.NewToolPart(identifier.Generate(identifier.KindPart, identifier.Ascending), sessionID, state.message.ID, v.ToolCallID, v.ToolName)
			tp.State = core.ToolStatePending{}
			toolParts[v.ToolCallID] = tp
			state.parts = append(state.parts, tp)
			e.savePart(ctx, state.message.ID, tp)
			e.publishPart(state.message, tp, "")

		case modeladapter.ToolCallDelta:
			tp, ok := toolParts[v.ToolCallID]
			if !ok {
				continue
			}
			if pending, ok := tp.State.(core.ToolStatePending); ok {
				tp.State = core.ToolStatePending{Raw: pending.Raw + v.ArgsDelta}
			}
			e.savePart(ctx, state.message.ID, tp)
			e.publishPart(state.message, tp, v.ArgsDelta)

		case modeladapter.ToolCall:
			tp, ok := toolParts[v.ToolCallID]
			if !ok {
				tp = core.NewToolPart(identifier.Generate(identifier.KindPart, identifier.Ascending), sessionID, state.message.ID, v.ToolCallID, v.ToolName)
				toolParts[v.ToolCallID] = tp
				state.parts = append(state.parts, tp)
			}
			now := time.Now().UnixMilli()
			tp.State = core.ToolStateRunning{Input: json.RawMessage(v.Args), Time: core.ToolTime{Start: now}}
			e.savePart(ctx, state.message.ID, tp)
			e.publishPart(state.message, tp, "")

			e.dispatchTool(ctx, sessionID, ag, state, tp)

		case modeladapter.StepFinish:
			state.message.Tokens = v.Usage
			state.message.Cost += model.Rates.Cost(v.Usage)
			finish = v.FinishReason

		case modeladapter.Error:
			state.message.Error = classifyError(v.Cause)
			finish = core.FinishError
		}
	}

	if !saw || finish == "" {
		return "", context.Canceled
	}
	return finish, nil
}

// newTextPart opens a new text part with time.start set to now (spec §4.6
// "on text-start ... time.start = now"); TextEnd fills in time.end on this
// same struct rather than allocating a fresh range.
func (e *Engine) newTextPart(state *loopState) *core.TextPart {
	tp := core.NewTextPart(identifier.Generate(identifier.KindPart, identifier.Ascending), state.message.SessionID, state.message.ID)
	tp.Time = &core.PartTimeRange{Start: time.Now().UnixMilli()}
	state.parts = append(state.parts, tp)
	return tp
}

// newReasoningPart opens a new reasoning part with time.start set to now,
// mirroring newTextPart.
func (e *Engine) newReasoningPart(state *loopState) *core.ReasoningPart {
	rp := core.NewReasoningPart(identifier.Generate(identifier.KindPart, identifier.Ascending), state.message.SessionID, state.message.ID)
	rp.Time = core.PartTimeRange{Start: time.Now().UnixMilli()}
	state.parts = append(state.parts, rp)
	return rp
}

// classifyError maps a stream failure cause onto spec §7's closed error
// kind set: ProviderAuth, ContextOverflow (by provider-agnostic phrasing),
// API, Aborted, or Unknown.
func classifyError(cause error) *core.MessageError {
	if cause == nil {
		return &core.MessageError{Kind: "Unknown", Message: "unknown error"}
	}
	msg := cause.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "context.canceled") || strings.Contains(lower, "aborted"):
		return &core.MessageError{Kind: "Aborted", Message: msg}
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication"):
		return &core.MessageError{Kind: "ProviderAuth", Message: msg}
	case strings.Contains(lower, "prompt is too long") || strings.Contains(lower, "context_length_exceeded") || strings.Contains(lower, "exceeds the maximum"):
		return &core.MessageError{Kind: "ContextOverflow", Message: msg}
	default:
		return &core.MessageError{Kind: "API", Message: msg}
	}
}
