// Package agent provides the agent catalog: named bundles of {system
// prompt, permission ruleset, step cap, default model} selected per user
// message.
//
// # Agent Types
//
// The package ships four built-in agents:
//
//   - build: primary agent for executing tasks and making changes. Full
//     tool access, permissive ruleset.
//   - plan: primary agent for analysis without making changes. Read-only
//     tools, a curated bash allowlist.
//   - general: subagent for general-purpose searches and exploration.
//   - explore: fast subagent specialized for codebase exploration.
//
// # Agent Modes
//
//   - ModePrimary: selectable as the main agent for a session
//   - ModeSubagent: invokable only via the `task` tool
//   - ModeAll: both
//
// # Tool Access Control
//
// Each agent has a Tools map controlling which tools are available, by
// exact name or glob pattern:
//
//	agent.Tools = map[string]bool{
//	    "*":     true,
//	    "bash":  false,
//	    "mcp_*": true,
//	}
//
// [Agent.ToolEnabled] defers to the same matcher permission rules use
// (doublestar-backed glob, plus the trailing-space-wildcard convention).
//
// # Permission System
//
// Agents carry a single [core.RuleSet] evaluated by permission.Checker;
// there is no longer a dedicated field per permission kind. A rule names
// the permission ("edit", "bash", "webfetch", "external_directory",
// "doom_loop", or "*") and a pattern, with last-match-wins semantics.
//
// # Registry
//
//	registry := agent.NewRegistry()
//	registry.Register(customAgent)
//	a, err := registry.Get("build")
//	primary := registry.ListPrimary()
//	subagents := registry.ListSubagents()
//
// Custom agents, or overrides of the built-ins, load via
// [Registry.LoadFromConfig]:
//
//	registry.LoadFromConfig(map[string]agent.Config{
//	    "build": {Temperature: 0.7, Permission: core.RuleSet{
//	        {Permission: "edit", Pattern: "*", Action: core.ActionAsk},
//	    }},
//	    "custom": {Description: "Custom agent", Mode: agent.ModePrimary,
//	        Tools: map[string]bool{"read": true, "glob": true}},
//	})
package agent
