package modeladapter

import (
	"context"

	"github.com/agentcore/runtime/internal/core"
)

// ConversationItem pairs a message with its parts, the unit the adapter
// actually needs to reconstruct provider-native content (a bare
// core.Message carries no text — that lives in its parts).
type ConversationItem struct {
	Message core.Message
	Parts   []core.Part
}

// Request is the input to a model invocation (spec §4.5).
type Request struct {
	Model       core.ModelRef
	System      []string
	Messages    []ConversationItem
	Tools       []ToolSchema
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ToolSchema is the subset of a tool's shape the adapter needs to
// advertise it to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  []byte // JSON Schema
}

// Provider is the language-model adapter contract: given a request and an
// abort signal, returns a channel of typed events. The channel is closed
// when the stream ends (after a StepFinish or Error event); implementations
// must terminate promptly when abort fires (spec §4.5 "Cancellation").
type Provider interface {
	ID() string
	Stream(ctx context.Context, req Request, abort <-chan struct{}) (<-chan Event, error)
}

// Rates are per-million-token prices in one currency unit, used for the
// cost formula (spec §8 property 10).
type Rates struct {
	Input       float64
	Output      float64
	CacheRead   float64
	CacheWrite  float64
}

// Cost computes Σ tokens·rate over input/output/reasoning/cache-read/
// cache-write, rates per million, summed in one currency unit.
func (r Rates) Cost(u core.TokenUsage) float64 {
	return (float64(u.Input)*r.Input +
		float64(u.Output)*r.Output +
		float64(u.Reasoning)*r.Output +
		float64(u.Cache.Read)*r.CacheRead +
		float64(u.Cache.Write)*r.CacheWrite) / 1_000_000
}

// Model describes one selectable (provider, model) pair and its pricing.
type Model struct {
	ProviderID string
	ModelID    string
	Name       string
	Rates      Rates
}
