package permission

import (
	"context"
	"sync"

	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/identifier"
)

// pendingEntry is one in-flight `ask` call suspended at req.Patterns[index].
type pendingEntry struct {
	req      Request
	index    int
	resultCh chan askResult
}

type askResult struct {
	kind         ReplyKind
	message      string
	autoResolved bool
}

// Checker is the permission arbiter: rule evaluation over a process-wide
// approved ruleset (accumulated via `always` replies) plus a per-call
// ruleset, and a pending-request map with cross-session unblock/cascade
// semantics (spec §4.3).
type Checker struct {
	mu       sync.Mutex
	approved core.RuleSet
	pending  map[string]*pendingEntry
	bus      *bus.Bus
}

// NewChecker constructs a Checker that publishes to b.
func NewChecker(b *bus.Bus) *Checker {
	return &Checker{
		pending: make(map[string]*pendingEntry),
		bus:     b,
	}
}

// Ask evaluates req.Patterns in order against req.Ruleset ∪ the approved
// ruleset. It returns nil if every pattern resolves to allow (possibly
// after one or more user replies), a *DeniedError if a deny rule matches,
// or a *RejectedError if the user rejects.
func (c *Checker) Ask(ctx context.Context, req Request) error {
	if req.ID == "" {
		req.ID = identifier.Generate(identifier.KindPermission, identifier.Ascending)
	}

	for idx := 0; idx < len(req.Patterns); idx++ {
		pattern := req.Patterns[idx]
		action, matching := c.evaluate(req.Ruleset, req.Permission, pattern)

		switch action {
		case core.ActionDeny:
			return &DeniedError{Permission: req.Permission, Pattern: pattern, Matching: matching}
		case core.ActionAllow:
			continue
		case core.ActionAsk:
			entry := &pendingEntry{req: req, index: idx, resultCh: make(chan askResult, 1)}
			c.mu.Lock()
			c.pending[req.ID] = entry
			c.mu.Unlock()

			c.publish(bus.EventPermissionAsked, PendingRequest{
				ID: req.ID, SessionID: req.SessionID, Permission: req.Permission,
				Pattern: pattern, Metadata: req.Metadata, Tool: req.Tool,
			})

			select {
			case <-ctx.Done():
				c.mu.Lock()
				delete(c.pending, req.ID)
				c.mu.Unlock()
				return ctx.Err()
			case res := <-entry.resultCh:
				if res.kind == ReplyReject {
					return &RejectedError{RequestID: req.ID, Message: res.message}
				}
				if res.autoResolved {
					// every remaining pattern, including this one, now
					// evaluates to allow — the scan in Reply already
					// verified this, so the Ask call is done.
					return nil
				}
				// once or always: this single pattern is resolved,
				// continue to the next one (if always, the approved
				// ruleset has already been updated by Reply).
			}
		}
	}
	return nil
}

// Reply answers a pending request by ID.
func (c *Checker) Reply(requestID string, kind ReplyKind, message string) error {
	c.mu.Lock()
	entry, ok := c.pending[requestID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.pending, requestID)

	switch kind {
	case ReplyAlways:
		targets := entry.req.Always
		if len(targets) == 0 {
			targets = []string{entry.req.Patterns[entry.index]}
		}
		for _, p := range targets {
			c.approved = append(c.approved, core.Rule{Permission: entry.req.Permission, Pattern: p, Action: core.ActionAllow})
		}
	}

	var peers []*pendingEntry
	var peerIDs []string
	if kind == ReplyAlways || kind == ReplyReject {
		for id, peer := range c.pending {
			if peer.req.SessionID != entry.req.SessionID {
				continue
			}
			peers = append(peers, peer)
			peerIDs = append(peerIDs, id)
		}
	}

	switch kind {
	case ReplyAlways:
		for i, peer := range peers {
			if c.allRemainingAllow(peer) {
				delete(c.pending, peerIDs[i])
				peer.resultCh <- askResult{kind: ReplyAlways, autoResolved: true}
				c.publish(bus.EventPermissionReplied, PendingRequest{ID: peerIDs[i], SessionID: peer.req.SessionID, Permission: peer.req.Permission})
			}
		}
	case ReplyReject:
		for i, peer := range peers {
			delete(c.pending, peerIDs[i])
			peer.resultCh <- askResult{kind: ReplyReject, message: "rejected: peer request in same session was rejected"}
			c.publish(bus.EventPermissionReplied, PendingRequest{ID: peerIDs[i], SessionID: peer.req.SessionID, Permission: peer.req.Permission})
		}
	}
	c.mu.Unlock()

	entry.resultCh <- askResult{kind: kind, message: message}
	c.publish(bus.EventPermissionReplied, PendingRequest{ID: requestID, SessionID: entry.req.SessionID, Permission: entry.req.Permission})
	return nil
}

// allRemainingAllow reports whether every pattern of peer from its current
// index onward now evaluates to allow under the current approved ruleset.
// Caller must hold c.mu.
func (c *Checker) allRemainingAllow(peer *pendingEntry) bool {
	for i := peer.index; i < len(peer.req.Patterns); i++ {
		action, _ := c.evaluateLocked(peer.req.Ruleset, peer.req.Permission, peer.req.Patterns[i])
		if action != core.ActionAllow {
			return false
		}
	}
	return true
}

// evaluate merges req.Ruleset with the approved ruleset and finds the
// action for (permission, pattern) under last-match-wins (spec §4.3,
// tested by spec §8 property 5). The implicit action, with no matching
// rule, is `ask`.
func (c *Checker) evaluate(ruleset core.RuleSet, permission, pattern string) (core.PermissionAction, []core.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateLocked(ruleset, permission, pattern)
}

func (c *Checker) evaluateLocked(ruleset core.RuleSet, permission, pattern string) (core.PermissionAction, []core.Rule) {
	merged := make(core.RuleSet, 0, len(ruleset)+len(c.approved))
	merged = append(merged, ruleset...)
	merged = append(merged, c.approved...)

	action := core.ActionAsk
	var matching []core.Rule
	for _, rule := range merged {
		if rule.Permission != "*" && rule.Permission != permission {
			continue
		}
		if !MatchPattern(rule.Pattern, pattern) {
			continue
		}
		action = rule.Action
		matching = append(matching, rule)
	}
	return action, matching
}

// Denies reports whether permission evaluates to `deny` on the wildcard
// pattern "*" under ruleset merged with the approved set, without
// suspending on `ask` (spec §4.7 step h: tool resolution drops tools a
// ruleset denies outright).
func (c *Checker) Denies(ruleset core.RuleSet, permission string) bool {
	action, _ := c.evaluate(ruleset, permission, "*")
	return action == core.ActionDeny
}

// List returns all currently pending requests.
func (c *Checker) List() []PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingRequest, 0, len(c.pending))
	for id, entry := range c.pending {
		out = append(out, PendingRequest{
			ID: id, SessionID: entry.req.SessionID, Permission: entry.req.Permission,
			Pattern: entry.req.Patterns[entry.index], Metadata: entry.req.Metadata, Tool: entry.req.Tool,
		})
	}
	return out
}

// ApprovedRuleset returns a snapshot of the process-wide approved ruleset.
func (c *Checker) ApprovedRuleset() core.RuleSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(core.RuleSet(nil), c.approved...)
}

func (c *Checker) publish(typ bus.EventType, data any) {
	if c.bus != nil {
		c.bus.Publish(typ, data)
	}
}
