package turn

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/modeladapter"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/agentcore/runtime/internal/storage"
	"github.com/agentcore/runtime/internal/tool"
)

// Engine runs the agent loop for any number of sessions concurrently,
// enforcing at-most-one-running-loop per session (spec §8 property 3).
// Grounded on the teacher's session.Processor.
type Engine struct {
	mu sync.Mutex

	models      *modeladapter.Registry
	tools       *tool.Registry
	agents      *agent.Registry
	store       *storage.Storage
	permissions *permission.Checker
	bus         *bus.Bus

	sessions map[string]*loopState
}

// loopState tracks one session's in-flight loop (teacher's sessionState).
type loopState struct {
	ctx     context.Context
	cancel  context.CancelFunc
	message *core.AssistantMessage
	parts   []core.Part
	step    int
	waiters []chan loopResult
}

type loopResult struct {
	message *core.AssistantMessage
	err     error
}

// New constructs an Engine.
func New(models *modeladapter.Registry, tools *tool.Registry, agents *agent.Registry, store *storage.Storage, permissions *permission.Checker, b *bus.Bus) *Engine {
	return &Engine{
		models:      models,
		tools:       tools,
		agents:      agents,
		store:       store,
		permissions: permissions,
		bus:         b,
		sessions:    make(map[string]*loopState),
	}
}

// Process runs (or joins) the agent loop for sessionID and returns the final
// assistant message of the most recent turn (spec §4.7).
func (e *Engine) Process(ctx context.Context, sessionID string) (*core.AssistantMessage, error) {
	e.mu.Lock()
	if state, ok := e.sessions[sessionID]; ok {
		waiter := make(chan loopResult, 1)
		state.waiters = append(state.waiters, waiter)
		e.mu.Unlock()

		select {
		case res := <-waiter:
			return res.message, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	state := &loopState{ctx: loopCtx, cancel: cancel}
	e.sessions[sessionID] = state
	e.mu.Unlock()

	msg, err := e.runLoop(loopCtx, sessionID, state)

	e.mu.Lock()
	delete(e.sessions, sessionID)
	waiters := state.waiters
	e.mu.Unlock()

	for _, w := range waiters {
		w <- loopResult{message: msg, err: err}
	}
	return msg, err
}

// Abort cancels the running loop for sessionID, if any (spec §5
// "Cancellation").
func (e *Engine) Abort(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.sessions[sessionID]
	if !ok {
		return fmt.Errorf("turn: session not processing: %s", sessionID)
	}
	state.cancel()
	return nil
}

// IsProcessing reports whether sessionID currently has a running loop.
func (e *Engine) IsProcessing(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[sessionID]
	return ok
}
