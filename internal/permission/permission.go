package permission

import (
	"encoding/json"

	"github.com/agentcore/runtime/internal/core"
)

// ReplyKind is the user's answer to a pending permission request
// (spec §4.3 `reply`).
type ReplyKind string

const (
	ReplyOnce   ReplyKind = "once"
	ReplyAlways ReplyKind = "always"
	ReplyReject ReplyKind = "reject"
)

// Request is one `ask` call: a sequence of patterns to evaluate in order
// against a permission name, plus the broader set of patterns to approve
// if the user replies `always`.
type Request struct {
	ID         string
	SessionID  string
	Permission string
	Patterns   []string
	Always     []string
	Metadata   json.RawMessage
	Tool       string
	Ruleset    core.RuleSet
}

// PendingRequest is the shape returned by List().
type PendingRequest struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"sessionID"`
	Permission string          `json:"permission"`
	Pattern    string          `json:"pattern"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Tool       string          `json:"tool,omitempty"`
}

// DeniedError is returned when a `deny` rule matches during Ask. It carries
// the matching rules (spec §4.3: "fail Denied (carrying matching rules)").
type DeniedError struct {
	Permission string
	Pattern    string
	Matching   []core.Rule
}

func (e *DeniedError) Error() string {
	return "permission denied: " + e.Permission + " " + e.Pattern
}

// RejectedError is returned when the user replies `reject`. Message, if
// present, carries the "Corrected" variant from spec §4.3.
type RejectedError struct {
	RequestID string
	Message   string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return "permission rejected: " + e.Message
	}
	return "permission rejected"
}

// IsRejectedError reports whether err is a RejectedError (a `reject` reply,
// with or without a correction message).
func IsRejectedError(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}

// IsDeniedError reports whether err is a DeniedError.
func IsDeniedError(err error) bool {
	_, ok := err.(*DeniedError)
	return ok
}
