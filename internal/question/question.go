// Package question implements the multiple-choice prompt-to-user component
// (spec §2, §4 — "Question: multiple-choice prompt answered by ID"). It has
// no teacher equivalent; it generalizes the pending-request/one-shot-channel
// pattern from internal/permission (the same suspension mechanism, a
// different payload shape: choices rather than allow/deny/ask rules).
package question

import (
	"context"
	"sync"

	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/identifier"
)

// Question is a prompt with one or more choice groups, each a list of
// option strings; the answer is one selected option per group.
type Question struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionID"`
	Prompt    string     `json:"prompt"`
	Choices   [][]string `json:"choices"`
}

// RejectedError is returned when the user rejects a pending question
// instead of answering it.
type RejectedError struct {
	ID string
}

func (e *RejectedError) Error() string { return "question rejected: " + e.ID }

type pendingEntry struct {
	question Question
	resultCh chan result
}

type result struct {
	answers  [][]string
	rejected bool
}

// Broker tracks pending questions, process-wide, the same shape as
// permission.Checker's pending map (spec §9 design note).
type Broker struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	bus     *bus.Bus
}

// NewBroker constructs a Broker that publishes to b.
func NewBroker(b *bus.Bus) *Broker {
	return &Broker{pending: make(map[string]*pendingEntry), bus: b}
}

// Ask records q as pending, publishes question.asked, and blocks until
// Answer or Reject is called for its ID, or ctx is cancelled.
func (b *Broker) Ask(ctx context.Context, q Question) ([][]string, error) {
	if q.ID == "" {
		q.ID = identifier.Generate(identifier.KindQuestion, identifier.Ascending)
	}
	entry := &pendingEntry{question: q, resultCh: make(chan result, 1)}

	b.mu.Lock()
	b.pending[q.ID] = entry
	b.mu.Unlock()

	if b.bus != nil {
		b.bus.Publish(bus.EventQuestionAsked, q)
	}

	select {
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, q.ID)
		b.mu.Unlock()
		return nil, ctx.Err()
	case res := <-entry.resultCh:
		if res.rejected {
			return nil, &RejectedError{ID: q.ID}
		}
		return res.answers, nil
	}
}

// Answer resolves a pending question with the given per-group selections.
func (b *Broker) Answer(id string, answers [][]string) bool {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	entry.resultCh <- result{answers: answers}
	if b.bus != nil {
		b.bus.Publish(bus.EventQuestionAnswered, map[string]any{"id": id, "answers": answers})
	}
	return true
}

// Reject rejects a pending question; its Ask call returns a RejectedError.
func (b *Broker) Reject(id string) bool {
	b.mu.Lock()
	entry, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	entry.resultCh <- result{rejected: true}
	if b.bus != nil {
		b.bus.Publish(bus.EventQuestionAnswered, map[string]any{"id": id, "rejected": true})
	}
	return true
}

// List returns all currently pending questions.
func (b *Broker) List() []Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Question, 0, len(b.pending))
	for _, entry := range b.pending {
		out = append(out, entry.question)
	}
	return out
}
