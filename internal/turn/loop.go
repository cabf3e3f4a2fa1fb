package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/agentcore/runtime/internal/logging"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/identifier"
	"github.com/agentcore/runtime/internal/modeladapter"
)

// MaxStepsDefault bounds the loop when an agent sets no explicit step cap.
const MaxStepsDefault = 50

// log returns the turn engine's component-scoped logger. Built fresh per
// call (not cached in a package var) so it always reflects whatever
// logging.Init reconfigured after process startup.
func log() zerolog.Logger {
	return logging.Component("turn")
}

// newRetryBackoff builds a jittered exponential backoff for a single model
// call, matching the teacher's newRetryBackoff constants
// (internal/session/loop.go).
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// runLoop implements spec §4.7.
func (e *Engine) runLoop(ctx context.Context, sessionID string, state *loopState) (*core.AssistantMessage, error) {
	retryBackoff := newRetryBackoff(ctx)

	for {
		select {
		case <-ctx.Done():
			return e.finalizeAborted(ctx, sessionID, state)
		default:
		}

		messages, err := e.loadMessages(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("turn: loading messages: %w", err)
		}

		lastUser, lastAssistant := splitLast(messages)
		if lastUser == nil {
			return nil, fmt.Errorf("turn: no user message")
		}

		if lastAssistant != nil && lastAssistant.Finish != nil &&
			*lastAssistant.Finish != core.FinishToolCalls && *lastAssistant.Finish != core.FinishUnknown &&
			lastUser.ID < lastAssistant.ID {
			return lastAssistant, nil
		}

		ag, err := e.resolveAgent(lastUser.Agent)
		if err != nil {
			return nil, err
		}

		maxSteps := ag.MaxSteps()
		isLastStep := maxSteps > 0 && state.step+1 >= maxSteps

		now := time.Now().UnixMilli()
		assistantMsg := &core.AssistantMessage{
			ID:         identifier.Generate(identifier.KindMessage, identifier.Ascending),
			SessionID:  sessionID,
			Created:    now,
			ParentID:   lastUser.ID,
			ModelID:    lastUser.Model.ModelID,
			ProviderID: lastUser.Model.ProviderID,
			Agent:      ag.Name,
		}
		state.message = assistantMsg
		state.parts = nil

		if err := e.saveMessage(ctx, sessionID, assistantMsg); err != nil {
			return nil, fmt.Errorf("turn: saving assistant message: %w", err)
		}

		model, err := e.models.Model(lastUser.Model.ProviderID, lastUser.Model.ModelID)
		if err != nil {
			assistantMsg.Error = &core.MessageError{Kind: "model-not-found", Message: err.Error()}
			if mnf, ok := err.(*modeladapter.ModelNotFoundError); ok {
				assistantMsg.Error.Suggestions = mnf.Suggestions
			}
			e.finishMessage(ctx, sessionID, assistantMsg, core.FinishError)
			e.bus.Publish(bus.EventSessionError, map[string]any{"sessionID": sessionID, "error": err.Error()})
			return assistantMsg, nil
		}

		provider, err := e.models.Provider(lastUser.Model.ProviderID)
		if err != nil {
			assistantMsg.Error = &core.MessageError{Kind: "provider-auth", Message: err.Error()}
			e.finishMessage(ctx, sessionID, assistantMsg, core.FinishError)
			return assistantMsg, nil
		}

		req, err := e.buildRequest(ctx, sessionID, messages, lastUser, assistantMsg, ag, model, isLastStep)
		if err != nil {
			return nil, fmt.Errorf("turn: building request: %w", err)
		}

		abortCh := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(abortCh)
		}()

		events, err := provider.Stream(ctx, req, abortCh)
		if err != nil {
			if ctx.Err() != nil {
				return e.finalizeAborted(ctx, sessionID, state)
			}
			if wait, retry := nextRetry(retryBackoff); retry {
				log().Warn().Err(err).Dur("wait", wait).Msg("turn: model call failed, retrying")
				time.Sleep(wait)
				continue
			}
			assistantMsg.Error = &core.MessageError{Kind: "api", Message: err.Error()}
			e.finishMessage(ctx, sessionID, assistantMsg, core.FinishError)
			return assistantMsg, nil
		}

		finish, err := e.processEvents(ctx, sessionID, ag, model, state, events)
		if err != nil {
			if ctx.Err() != nil {
				return e.finalizeAborted(ctx, sessionID, state)
			}
			if wait, retry := nextRetry(retryBackoff); retry {
				log().Warn().Err(err).Dur("wait", wait).Msg("turn: stream failed, retrying")
				time.Sleep(wait)
				continue
			}
			assistantMsg.Error = &core.MessageError{Kind: "api", Message: err.Error()}
			e.finishMessage(ctx, sessionID, assistantMsg, core.FinishError)
			return assistantMsg, nil
		}
		retryBackoff.Reset()

		switch finish {
		case core.FinishStop, core.FinishLength, core.FinishContentFilter:
			e.finishMessage(ctx, sessionID, assistantMsg, finish)
			return assistantMsg, nil
		case core.FinishError:
			if assistantMsg.Error == nil {
				assistantMsg.Error = &core.MessageError{Kind: "unknown", Message: "stream ended in error"}
			}
			e.finishMessage(ctx, sessionID, assistantMsg, finish)
			return assistantMsg, nil
		case core.FinishToolCalls, core.FinishUnknown:
			state.step++
			continue
		default:
			e.finishMessage(ctx, sessionID, assistantMsg, finish)
			return assistantMsg, nil
		}
	}
}

// nextRetry advances b and reports whether the caller should retry.
func nextRetry(b backoff.BackOff) (time.Duration, bool) {
	d := b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// finishMessage sets the terminal finish reason, persists, and publishes.
func (e *Engine) finishMessage(ctx context.Context, sessionID string, msg *core.AssistantMessage, finish core.FinishReason) {
	now := time.Now().UnixMilli()
	msg.Completed = &now
	f := finish
	msg.Finish = &f
	e.saveMessage(ctx, sessionID, msg)
}

// finalizeAborted marks the in-flight assistant message (if any) as
// aborted, and every non-terminal tool part as an interrupted error
// (spec §4.6 "Abort", §8 property 12).
func (e *Engine) finalizeAborted(ctx context.Context, sessionID string, state *loopState) (*core.AssistantMessage, error) {
	if state.message == nil {
		return nil, context.Canceled
	}
	for _, p := range state.parts {
		if tp, ok := p.(*core.ToolPart); ok {
			if st, ok := tp.State.(core.ToolStateRunning); ok {
				tp.State = core.ToolStateError{Input: st.Input, Error: "interrupted", Time: core.ToolTime{Start: st.Time.Start, End: ptrInt64(time.Now().UnixMilli())}}
				e.savePart(ctx, state.message.ID, tp)
				e.publishPart(state.message, tp, "")
			}
			if st, ok := tp.State.(core.ToolStatePending); ok {
				tp.State = core.ToolStateError{Error: "interrupted", Time: core.ToolTime{Start: time.Now().UnixMilli(), End: ptrInt64(time.Now().UnixMilli())}}
				_ = st
				e.savePart(ctx, state.message.ID, tp)
				e.publishPart(state.message, tp, "")
			}
		}
	}
	e.finishMessage(ctx, sessionID, state.message, core.FinishAbort)
	return state.message, nil
}

func ptrInt64(v int64) *int64 { return &v }

// splitLast returns the most recent user and assistant messages in
// chronological order (messages are read in ascending ID order already).
func splitLast(messages []core.Message) (*core.UserMessage, *core.AssistantMessage) {
	var lastUser *core.UserMessage
	var lastAssistant *core.AssistantMessage
	for _, m := range messages {
		switch v := m.(type) {
		case *core.UserMessage:
			lastUser = v
		case *core.AssistantMessage:
			lastAssistant = v
		}
	}
	return lastUser, lastAssistant
}

func (e *Engine) resolveAgent(name string) (*agent.Agent, error) {
	if name == "" {
		name = "build"
	}
	return e.agents.Get(name)
}

// loadMessages reads every persisted message of a session, sorted by ID
// (ascending IDs sort in creation order).
func (e *Engine) loadMessages(ctx context.Context, sessionID string) ([]core.Message, error) {
	var out []core.Message
	err := e.store.Scan(ctx, []string{"message", sessionID}, func(key string, data json.RawMessage) error {
		m, err := core.UnmarshalMessage(data)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID() < out[j].MessageID() })
	return out, nil
}

func (e *Engine) loadParts(ctx context.Context, messageID string) ([]core.Part, error) {
	var out []core.Part
	err := e.store.Scan(ctx, []string{"part", messageID}, func(key string, data json.RawMessage) error {
		p, err := core.UnmarshalPart(data)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartID() < out[j].PartID() })
	return out, nil
}

func (e *Engine) saveMessage(ctx context.Context, sessionID string, msg *core.AssistantMessage) error {
	data, err := core.MarshalMessage(msg)
	if err != nil {
		return err
	}
	if err := e.store.Put(ctx, []string{"message", sessionID, msg.ID}, json.RawMessage(data)); err != nil {
		return err
	}
	e.bus.Publish(bus.EventMessageUpdated, bus.MessageUpdatedPayload{SessionID: sessionID, Message: msg})
	return nil
}

func (e *Engine) savePart(ctx context.Context, messageID string, part core.Part) error {
	data, err := core.MarshalPart(part)
	if err != nil {
		return err
	}
	return e.store.Put(ctx, []string{"part", messageID, part.PartID()}, json.RawMessage(data))
}

func (e *Engine) publishPart(msg *core.AssistantMessage, part core.Part, delta string) {
	e.bus.Publish(bus.EventPartUpdated, bus.PartUpdatedPayload{
		SessionID: msg.SessionID, MessageID: msg.ID, Part: part, Delta: delta,
	})
}
