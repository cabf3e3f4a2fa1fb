package turn

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/modeladapter"
)

// maxStepsNotice is the synthetic directive injected when a turn hits its
// agent's step cap (spec §4.7 step j).
const maxStepsNotice = "Max steps reached. Provide final response now."

// buildRequest implements spec §4.7 steps h/i/j: resolve the tool set,
// build the system prompt, and materialize persisted messages into the
// model-adapter request.
func (e *Engine) buildRequest(
	ctx context.Context,
	sessionID string,
	messages []core.Message,
	lastUser *core.UserMessage,
	assistantMsg *core.AssistantMessage,
	ag *agent.Agent,
	model *modeladapter.Model,
	isLastStep bool,
) (modeladapter.Request, error) {
	items, err := e.conversationItems(ctx, messages)
	if err != nil {
		return modeladapter.Request{}, err
	}

	if isLastStep {
		items = append(items, modeladapter.ConversationItem{
			Message: &core.AssistantMessage{SessionID: sessionID},
			Parts:   []core.Part{&core.TextPart{Text: maxStepsNotice, Synthetic: true}},
		})
	}

	return modeladapter.Request{
		Model:       core.ModelRef{ProviderID: model.ProviderID, ModelID: model.ModelID},
		System:      e.buildSystemPrompt(ag, lastUser),
		Messages:    items,
		Tools:       e.resolveTools(ag, lastUser.Tools),
		Temperature: ag.Temperature,
		TopP:        ag.TopP,
	}, nil
}

// conversationItems loads the parts for every message in order, pairing
// each with its message the way modeladapter.ConversationItem expects.
func (e *Engine) conversationItems(ctx context.Context, messages []core.Message) ([]modeladapter.ConversationItem, error) {
	items := make([]modeladapter.ConversationItem, 0, len(messages))
	for _, m := range messages {
		parts, err := e.loadParts(ctx, m.MessageID())
		if err != nil {
			return nil, fmt.Errorf("turn: loading parts for %s: %w", m.MessageID(), err)
		}
		items = append(items, modeladapter.ConversationItem{Message: m, Parts: parts})
	}
	return items, nil
}

// resolveTools starts from the registry's tool set, then drops tools the
// agent's catalog entry disables, the per-user overlay disables, or whose
// permission rule evaluates to `deny` on `*` (spec §4.7 step h).
func (e *Engine) resolveTools(ag *agent.Agent, overlay core.ToolOverlay) []modeladapter.ToolSchema {
	var out []modeladapter.ToolSchema
	for _, t := range e.tools.List() {
		id := t.ID()
		if id == "invalid" {
			// The unresolved-tool sentinel is dispatch's substitute, never
			// something the model should choose to call (spec §4.6 step 2).
			continue
		}
		if !ag.ToolEnabled(id) {
			continue
		}
		if enabled, ok := overlay[id]; ok && !enabled {
			continue
		}
		if e.permissions.Denies(ag.Permission, id) {
			continue
		}
		out = append(out, modeladapter.ToolSchema{Name: id, Description: t.Description(), Parameters: t.Parameters()})
	}
	return out
}

// buildSystemPrompt implements spec §4.7 step i: [agent.prompt?,
// environmentPrompt(), user.system?] joined by newlines, grounded on the
// teacher's SystemPrompt.Build (internal/session/system.go), pared down to
// the pieces the expanded spec keeps (no provider/model boilerplate, no
// AGENTS.md/tool-instruction injection — those are teacher flourishes this
// spec never asked for).
func (e *Engine) buildSystemPrompt(ag *agent.Agent, user *core.UserMessage) []string {
	var parts []string
	if ag.Prompt != "" {
		parts = append(parts, ag.Prompt)
	}
	parts = append(parts, environmentPrompt())
	if user.System != "" {
		parts = append(parts, user.System)
	}
	return parts
}

// environmentPrompt lists platform, shell, cwd, and today's date (spec
// §4.7 step i).
func environmentPrompt() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "unknown"
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Shell: %s\n", shell)
	fmt.Fprintf(&b, "Working directory: %s\n", cwd)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format("2006-01-02"))
	return strings.TrimRight(b.String(), "\n")
}
