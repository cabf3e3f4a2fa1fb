package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/agentcore/runtime/internal/tool"
)

// doomLoopThreshold is the number of identical completed calls to the same
// tool (by tool name + input) that trips doom-loop handling (grounded on
// the teacher's checkDoomLoop, internal/session/tools.go).
const doomLoopThreshold = 3

// dispatchTool resolves, permission-gates, and executes one finalized tool
// call, transitioning its part from running to completed/error (spec §4.6
// "Tool-call block", §4.4 state machine).
func (e *Engine) dispatchTool(ctx context.Context, sessionID string, ag *agent.Agent, state *loopState, tp *core.ToolPart) {
	running, _ := tp.State.(core.ToolStateRunning)

	t, ok := e.tools.Get(tp.Tool)
	if !ok {
		// Case-repair: tool names arrive from the model and may not match
		// the registry's casing exactly.
		if repaired, found := e.findToolCaseInsensitive(tp.Tool); found {
			t = repaired
			ok = true
		}
	}
	if !ok {
		// A genuinely unknown name is substituted with the sentinel `invalid`
		// tool carrying {tool, error} as input, so dispatch still runs
		// execute on it rather than short-circuiting the part outside the
		// normal pipeline (spec §4.6 step 2).
		invalid, hasInvalid := e.tools.Get("invalid")
		if !hasInvalid {
			e.failTool(ctx, state, tp, running, fmt.Sprintf("Tool not found: %s", tp.Tool))
			return
		}
		t = invalid
		sentinelInput, _ := json.Marshal(map[string]string{
			"tool":  tp.Tool,
			"error": fmt.Sprintf("Tool not found: %s", tp.Tool),
		})
		running.Input = sentinelInput
		tp.State = running
	}

	if err := e.checkDoomLoop(ctx, sessionID, ag, state, tp, running); err != nil {
		e.failTool(ctx, state, tp, running, err.Error())
		return
	}

	abortCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(abortCh)
	}()

	toolCtx := &tool.Context{
		SessionID: sessionID,
		MessageID: state.message.ID,
		CallID:    tp.CallID,
		Agent:     ag.Name,
		AbortCh:   abortCh,
		Ask: func(askCtx context.Context, req permission.Request) error {
			req.SessionID = sessionID
			req.Ruleset = ag.Permission
			return e.permissions.Ask(askCtx, req)
		},
		OnMetadata: func(title string, meta map[string]any) {
			if running, ok := tp.State.(core.ToolStateRunning); ok {
				metaJSON, _ := json.Marshal(meta)
				running.Title = title
				running.Metadata = metaJSON
				tp.State = running
				e.savePart(ctx, state.message.ID, tp)
				e.publishPart(state.message, tp, "")
			}
		},
	}

	result, err := t.Execute(ctx, running.Input, toolCtx)
	if err != nil {
		e.failTool(ctx, state, tp, running, err.Error())
		return
	}

	now := time.Now().UnixMilli()
	metaJSON, _ := json.Marshal(result.Metadata)
	completed := core.ToolStateCompleted{
		Input:    running.Input,
		Output:   result.Output,
		Title:    result.Title,
		Metadata: metaJSON,
		Time:     core.ToolTime{Start: running.Time.Start, End: &now},
	}
	for _, a := range result.Attachments {
		completed.Attachments = append(completed.Attachments, core.ToolAttachment{
			Filename: a.Filename, MediaType: a.MediaType, URL: a.URL,
		})
	}
	tp.State = completed
	e.savePart(ctx, state.message.ID, tp)
	e.publishPart(state.message, tp, "")

	e.recordDiff(ctx, sessionID, result.Metadata)
}

func (e *Engine) failTool(ctx context.Context, state *loopState, tp *core.ToolPart, running core.ToolStateRunning, message string) {
	now := time.Now().UnixMilli()
	tp.State = core.ToolStateError{Input: running.Input, Error: message, Time: core.ToolTime{Start: running.Time.Start, End: &now}}
	e.savePart(ctx, state.message.ID, tp)
	e.publishPart(state.message, tp, "")
}

func (e *Engine) findToolCaseInsensitive(name string) (tool.Tool, bool) {
	for _, t := range e.tools.List() {
		if strings.EqualFold(t.ID(), name) {
			return t, true
		}
	}
	return nil, false
}

// checkDoomLoop counts prior completed calls to the same tool with
// identical input among the current step's parts (state.parts, which the
// loop resets for every step's assistant message) and, past the threshold,
// applies
// the agent's "doom_loop" permission policy (spec §9 open question:
// doom-loop handling kept, gated per agent rather than hardcoded).
func (e *Engine) checkDoomLoop(ctx context.Context, sessionID string, ag *agent.Agent, state *loopState, tp *core.ToolPart, running core.ToolStateRunning) error {
	count := 0
	for _, p := range state.parts {
		other, ok := p.(*core.ToolPart)
		if !ok || other.Tool != tp.Tool || other == tp {
			continue
		}
		if completed, ok := other.State.(core.ToolStateCompleted); ok && string(completed.Input) == string(running.Input) {
			count++
		}
	}
	if count < doomLoopThreshold {
		return nil
	}

	if e.permissions.Denies(ag.Permission, "doom_loop") {
		return fmt.Errorf("doom loop detected: %s called %d times with same input", tp.Tool, count)
	}
	return e.permissions.Ask(ctx, permission.Request{
		SessionID:  sessionID,
		Permission: "doom_loop",
		Patterns:   []string{tp.Tool},
		Tool:       tp.CallID,
		Ruleset:    ag.Permission,
	})
}

// recordDiff captures a file diff from tool result metadata (keys "file",
// "before", "after") and folds it into the session's running summary
// (spec §4.4, grounded on the teacher's recordDiff/computeDiff,
// internal/session/tools.go).
func (e *Engine) recordDiff(ctx context.Context, sessionID string, metadata map[string]any) {
	if metadata == nil {
		return
	}
	path, _ := metadata["file"].(string)
	before, okBefore := metadata["before"].(string)
	after, okAfter := metadata["after"].(string)
	if path == "" || !okBefore || !okAfter {
		return
	}

	diffText, additions, deletions := computeDiff(before, after, path)

	var session core.Session
	if err := e.store.Get(ctx, []string{"session", sessionID}, &session); err != nil {
		return
	}
	if session.Summary == nil {
		session.Summary = &core.SessionSummary{}
	}

	filtered := make([]core.FileDiff, 0, len(session.Summary.Diffs))
	for _, d := range session.Summary.Diffs {
		if d.Path != path {
			filtered = append(filtered, d)
		}
	}
	filtered = append(filtered, core.FileDiff{
		Path: path, Additions: additions, Deletions: deletions,
		Before: before, After: after, Unified: diffText,
	})
	session.Summary.Diffs = filtered

	adds, dels := 0, 0
	for _, d := range filtered {
		adds += d.Additions
		dels += d.Deletions
	}
	session.Summary.Additions = adds
	session.Summary.Deletions = dels
	session.Summary.Files = len(filtered)

	if err := e.store.Put(ctx, []string{"session", sessionID}, &session); err != nil {
		return
	}
	e.bus.Publish(bus.EventSessionDiff, map[string]any{"sessionID": sessionID, "diffs": session.Summary.Diffs})
}

func computeDiff(before, after, path string) (string, int, int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	additions, deletions := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}
	return generateUnifiedDiff(diffs, path), additions, deletions
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// generateUnifiedDiff renders a compact unified diff with no context lines,
// sufficient for the session summary's display purposes.
func generateUnifiedDiff(diffs []diffmatchpatch.Diff, path string) string {
	if len(diffs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintf(&b, "%s%s\n", prefix, line)
		}
	}
	return b.String()
}
