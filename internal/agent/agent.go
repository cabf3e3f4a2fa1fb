// Package agent defines the agent catalog: named bundles of {system prompt,
// permission ruleset, step cap, default model} selected per user message
// (spec §2, GLOSSARY "Agent").
package agent

import (
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/permission"
)

// Mode controls whether an agent may be selected as the primary agent for
// a user message, used only as a subagent (via the `task` tool), or both.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeSubagent Mode = "subagent"
	ModeAll      Mode = "all"
)

// Agent is one named bundle (GLOSSARY).
type Agent struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mode        Mode            `json:"mode"`
	BuiltIn     bool            `json:"builtIn"`
	Permission  core.RuleSet    `json:"permission"`
	Tools       map[string]bool `json:"tools"`
	Steps       int             `json:"steps,omitempty"` // 0 = unbounded
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"topP,omitempty"`
	Model       *core.ModelRef  `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// ToolEnabled reports whether toolID is enabled for this agent: exact match
// first, then the first matching wildcard pattern met while ranging over the
// Tools map (map order, so which of several matching patterns decides is
// not defined), then the default of enabled. Generalized onto the same matcher permission
// rules use (github.com/bmatcuk/doublestar/v4-backed), rather than the
// teacher's bespoke matchWildcard.
func (a *Agent) ToolEnabled(toolID string) bool {
	if enabled, ok := a.Tools[toolID]; ok {
		return enabled
	}
	for pattern, enabled := range a.Tools {
		if permission.MatchPattern(pattern, toolID) {
			return enabled
		}
	}
	return true
}

// MaxSteps returns the agent's step cap, or 0 for unbounded (spec §4.7:
// "maxSteps = agent.steps ?? ∞").
func (a *Agent) MaxSteps() int { return a.Steps }

// IsPrimary reports whether the agent may be selected as a primary agent.
func (a *Agent) IsPrimary() bool { return a.Mode == ModePrimary || a.Mode == ModeAll }

// IsSubagent reports whether the agent may be selected as a subagent.
func (a *Agent) IsSubagent() bool { return a.Mode == ModeSubagent || a.Mode == ModeAll }

// Clone returns a deep copy, used when customizing a built-in agent from
// configuration without mutating the shared built-in value.
func (a *Agent) Clone() *Agent {
	clone := *a
	clone.Permission = append(core.RuleSet(nil), a.Permission...)
	if a.Tools != nil {
		clone.Tools = make(map[string]bool, len(a.Tools))
		for k, v := range a.Tools {
			clone.Tools[k] = v
		}
	}
	if a.Model != nil {
		m := *a.Model
		clone.Model = &m
	}
	return &clone
}

// BuiltInAgents returns the four shipped agent presets, keyed by name.
// Permission fields that used to be bespoke struct fields (edit, bash,
// webfetch, external_directory, doom_loop) are now entries in a single
// ruleset evaluated by permission.Checker — the same last-match-wins
// engine every ad hoc permission.Ask call uses.
func BuiltInAgents() map[string]*Agent {
	return map[string]*Agent{
		"build": {
			Name:        "build",
			Description: "Primary agent for executing tasks, writing code, and making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: core.RuleSet{
				{Permission: "edit", Pattern: "*", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "*", Action: core.ActionAllow},
				{Permission: "webfetch", Pattern: "*", Action: core.ActionAllow},
				{Permission: "external_directory", Pattern: "*", Action: core.ActionAsk},
				{Permission: "doom_loop", Pattern: "*", Action: core.ActionAsk},
			},
			Tools: map[string]bool{"*": true},
		},
		"plan": {
			Name:        "plan",
			Description: "Planning agent for analysis and exploration without making changes",
			Mode:        ModePrimary,
			BuiltIn:     true,
			Permission: core.RuleSet{
				{Permission: "edit", Pattern: "*", Action: core.ActionDeny},
				{Permission: "bash", Pattern: "*", Action: core.ActionDeny},
				{Permission: "bash", Pattern: "grep*", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "find*", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "ls*", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "cat*", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "git status", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "git diff*", Action: core.ActionAllow},
				{Permission: "bash", Pattern: "git log*", Action: core.ActionAllow},
				{Permission: "webfetch", Pattern: "*", Action: core.ActionAllow},
				{Permission: "external_directory", Pattern: "*", Action: core.ActionDeny},
				{Permission: "doom_loop", Pattern: "*", Action: core.ActionDeny},
			},
			Tools: map[string]bool{
				"read": true, "glob": true, "grep": true, "ls": true, "bash": true,
				"edit": false, "write": false,
			},
		},
		"general": {
			Name:        "general",
			Description: "General-purpose subagent for searches and exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: core.RuleSet{
				{Permission: "edit", Pattern: "*", Action: core.ActionDeny},
				{Permission: "bash", Pattern: "*", Action: core.ActionDeny},
				{Permission: "webfetch", Pattern: "*", Action: core.ActionAllow},
				{Permission: "external_directory", Pattern: "*", Action: core.ActionDeny},
				{Permission: "doom_loop", Pattern: "*", Action: core.ActionDeny},
			},
			Tools: map[string]bool{
				"read": true, "glob": true, "grep": true, "webfetch": true,
				"bash": false, "edit": false, "write": false,
			},
		},
		"explore": {
			Name:        "explore",
			Description: "Fast agent specialized for codebase exploration",
			Mode:        ModeSubagent,
			BuiltIn:     true,
			Permission: core.RuleSet{
				{Permission: "edit", Pattern: "*", Action: core.ActionDeny},
				{Permission: "bash", Pattern: "*", Action: core.ActionDeny},
				{Permission: "webfetch", Pattern: "*", Action: core.ActionDeny},
				{Permission: "external_directory", Pattern: "*", Action: core.ActionDeny},
				{Permission: "doom_loop", Pattern: "*", Action: core.ActionDeny},
			},
			Tools: map[string]bool{
				"read": true, "glob": true, "grep": true, "ls": true, "bash": false, "edit": false,
			},
		},
	}
}
