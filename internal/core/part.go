package core

import (
	"encoding/json"
	"fmt"
)

// PartType discriminates the Part tagged union.
type PartType string

const (
	PartTypeText      PartType = "text"
	PartTypeReasoning PartType = "reasoning"
	PartTypeFile      PartType = "file"
	PartTypeTool      PartType = "tool"
)

// Part is owned by one message and identified within it by an ascending
// ID (spec §3).
type Part interface {
	PartID() string
	PartSessionID() string
	PartMessageID() string
	PartType() PartType
}

type base struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

func (b base) PartID() string        { return b.ID }
func (b base) PartSessionID() string { return b.SessionID }
func (b base) PartMessageID() string { return b.MessageID }

func newBase(id, sessionID, messageID string) base {
	return base{ID: id, SessionID: sessionID, MessageID: messageID}
}

// NewTextPart constructs an empty TextPart identified by id, ready to
// accumulate streamed deltas.
func NewTextPart(id, sessionID, messageID string) *TextPart {
	return &TextPart{base: newBase(id, sessionID, messageID)}
}

// NewReasoningPart constructs an empty ReasoningPart identified by id.
func NewReasoningPart(id, sessionID, messageID string) *ReasoningPart {
	return &ReasoningPart{base: newBase(id, sessionID, messageID)}
}

// NewToolPart constructs a ToolPart for one tool call, identified by id.
func NewToolPart(id, sessionID, messageID, callID, toolName string) *ToolPart {
	return &ToolPart{base: newBase(id, sessionID, messageID), CallID: callID, Tool: toolName}
}

// PartTimeRange is a start/optional-end bracket used by text and reasoning
// parts while streaming.
type PartTimeRange struct {
	Start int64  `json:"start"`
	End   *int64 `json:"end,omitempty"`
}

// TextPart is model text output, or a synthetic steering directive
// inserted by the core (e.g. the max-steps notice, spec §4.7 step j).
type TextPart struct {
	base
	Text      string          `json:"text"`
	Synthetic bool            `json:"synthetic,omitempty"`
	Ignored   bool            `json:"ignored,omitempty"`
	Time      *PartTimeRange  `json:"time,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

func (*TextPart) PartType() PartType { return PartTypeText }

// MarshalJSON injects the type discriminator, so a *TextPart marshals
// correctly through any path (see UserMessage.MarshalJSON).
func (p *TextPart) MarshalJSON() ([]byte, error) {
	return marshalTaggedPart(PartTypeText, (*textPartAlias)(p))
}

type textPartAlias TextPart

// ReasoningPart is a thinking block; same shape as TextPart, a distinct
// variant so UIs may fold it independently.
type ReasoningPart struct {
	base
	Text     string          `json:"text"`
	Time     PartTimeRange   `json:"time"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func (*ReasoningPart) PartType() PartType { return PartTypeReasoning }

// MarshalJSON injects the type discriminator (see TextPart.MarshalJSON).
func (p *ReasoningPart) MarshalJSON() ([]byte, error) {
	return marshalTaggedPart(PartTypeReasoning, (*reasoningPartAlias)(p))
}

type reasoningPartAlias ReasoningPart

// FilePart is an attachment on a user message or a tool output.
type FilePart struct {
	base
	Mime string `json:"mime"`
	URL  string `json:"url"`
}

func (*FilePart) PartType() PartType { return PartTypeFile }

// MarshalJSON injects the type discriminator (see TextPart.MarshalJSON).
func (p *FilePart) MarshalJSON() ([]byte, error) {
	return marshalTaggedPart(PartTypeFile, (*filePartAlias)(p))
}

type filePartAlias FilePart

// ToolPart carries one tool call and its state machine (§4.4).
type ToolPart struct {
	base
	CallID string    `json:"callID"`
	Tool   string    `json:"tool"`
	State  ToolState `json:"-"`
}

func (*ToolPart) PartType() PartType { return PartTypeTool }

// MarshalJSON injects the type discriminator and flattens State (if set)
// under "state" (see TextPart.MarshalJSON).
func (p *ToolPart) MarshalJSON() ([]byte, error) {
	body, err := marshalTaggedPart(PartTypeTool, (*toolPartAlias)(p))
	if err != nil {
		return nil, err
	}
	if p.State == nil {
		return body, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	stateJSON, err := MarshalToolState(p.State)
	if err != nil {
		return nil, err
	}
	fields["state"] = stateJSON
	return json.Marshal(fields)
}

type toolPartAlias ToolPart

type partEnvelope struct {
	Type PartType `json:"type"`
}

// marshalTaggedPart encodes v (an alias type with no MarshalJSON of its
// own) and injects the type discriminator.
func marshalTaggedPart(typ PartType, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typJSON, _ := json.Marshal(typ)
	fields["type"] = typJSON
	return json.Marshal(fields)
}

// MarshalPart encodes p with its type discriminator (and, for a ToolPart,
// its flattened state) by delegating to the variant's MarshalJSON.
func MarshalPart(p Part) ([]byte, error) {
	switch p.(type) {
	case *TextPart, *ReasoningPart, *FilePart, *ToolPart:
		return json.Marshal(p)
	default:
		return nil, fmt.Errorf("core: unknown part type %T", p)
	}
}

// UnmarshalPart decodes data into the concrete Part variant named by its
// "type" field, generalizing the teacher's RawPart/UnmarshalPart dispatch
// (pkg/types/parts.go) to a closed set with no unknown-type fallback: an
// unrecognized type is an error at the storage boundary (spec §9).
func UnmarshalPart(data []byte) (Part, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("core: unmarshal part envelope: %w", err)
	}
	switch env.Type {
	case PartTypeText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeReasoning:
		var p ReasoningPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeFile:
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeTool:
		var raw struct {
			base
			CallID string          `json:"callID"`
			Tool   string          `json:"tool"`
			State  json.RawMessage `json:"state"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		p := &ToolPart{base: raw.base, CallID: raw.CallID, Tool: raw.Tool}
		if len(raw.State) > 0 {
			state, err := UnmarshalToolState(raw.State)
			if err != nil {
				return nil, err
			}
			p.State = state
		}
		return p, nil
	default:
		return nil, fmt.Errorf("core: unknown part type %q", env.Type)
	}
}
