package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/identifier"
)

// errUnsupportedPartEdit is returned when PATCH targets a part type that
// carries no user-editable field (only TextPart.Text is editable, spec §6).
var errUnsupportedPartEdit = errors.New("httpapi: part type does not support editing")

// promptPart is one element of promptInput.Parts (spec §6 prompt shape).
type promptPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Mime string `json:"mime,omitempty"`
	URL  string `json:"url,omitempty"`
}

// promptInput is the body of POST /session/:id/message and
// /session/:id/prompt_async (spec §6).
type promptInput struct {
	Parts     []promptPart       `json:"parts"`
	Model     *core.ModelRef     `json:"model"`
	Agent     string             `json:"agent"`
	System    string             `json:"system"`
	Tools     core.ToolOverlay   `json:"tools"`
	Variant   string             `json:"variant"`
	NoReply   bool               `json:"noReply"`
	MessageID string             `json:"messageID"`
}

// messageWithParts is the `{info, parts[]}` shape spec §6 uses for every
// message read/write response.
type messageWithParts struct {
	Info  core.Message `json:"info"`
	Parts []core.Part  `json:"parts"`
}

func (s *Server) messageKey(sessionID, messageID string) []string {
	return []string{"message", sessionID, messageID}
}

func (s *Server) partKey(messageID, partID string) []string {
	return []string{"part", messageID, partID}
}

// buildUserMessage persists a UserMessage and its parts from in, resolving
// the model to the registry default when unset (spec §4.7: a turn step
// with no model carried forward uses the user message's Model field).
func (s *Server) buildUserMessage(ctx context.Context, sessionID string, in promptInput) (*core.UserMessage, error) {
	model := in.Model
	if model == nil {
		def, err := s.models.DefaultModel()
		if err != nil {
			return nil, err
		}
		model = &core.ModelRef{ProviderID: def.ProviderID, ModelID: def.ModelID}
	}

	msgID := in.MessageID
	if msgID == "" {
		msgID = identifier.Generate(identifier.KindMessage, identifier.Ascending)
	}

	msg := &core.UserMessage{
		ID:        msgID,
		SessionID: sessionID,
		Created:   nowMillis(),
		Agent:     in.Agent,
		Model:     *model,
		System:    in.System,
		Tools:     in.Tools,
		Variant:   in.Variant,
	}

	if err := s.putMessage(ctx, sessionID, msg.ID, msg); err != nil {
		return nil, err
	}
	s.bus.Publish(bus.EventMessageUpdated, bus.MessageUpdatedPayload{SessionID: sessionID, Message: msg})

	for _, p := range in.Parts {
		partID := identifier.Generate(identifier.KindPart, identifier.Ascending)
		var part core.Part
		switch p.Type {
		case "text":
			tp := core.NewTextPart(partID, sessionID, msg.ID)
			tp.Text = p.Text
			part = tp
		case "file":
			fp := &core.FilePart{Mime: p.Mime, URL: p.URL}
			fp.ID, fp.SessionID, fp.MessageID = partID, sessionID, msg.ID
			part = fp
		default:
			continue
		}
		if err := s.putPart(ctx, msg.ID, partID, part); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// putMessage persists msg with its role discriminator (spec §3 tagged
// union); storage.Put alone would drop it.
func (s *Server) putMessage(ctx context.Context, sessionID, messageID string, msg core.Message) error {
	data, err := core.MarshalMessage(msg)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, s.messageKey(sessionID, messageID), json.RawMessage(data))
}

// putPart persists part with its type discriminator (and, for a ToolPart,
// its flattened state); storage.Put alone would drop both.
func (s *Server) putPart(ctx context.Context, messageID, partID string, part core.Part) error {
	data, err := core.MarshalPart(part)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, s.partKey(messageID, partID), json.RawMessage(data))
}

// loadMessageWithParts reads one message and its parts.
func (s *Server) loadMessageWithParts(ctx context.Context, sessionID, messageID string) (*messageWithParts, error) {
	var data json.RawMessage
	if err := s.store.Get(ctx, s.messageKey(sessionID, messageID), &data); err != nil {
		return nil, err
	}
	msg, err := core.UnmarshalMessage(data)
	if err != nil {
		return nil, err
	}

	parts, err := s.loadParts(ctx, messageID)
	if err != nil {
		return nil, err
	}

	return &messageWithParts{Info: msg, Parts: parts}, nil
}

// loadParts reads every part persisted under messageID, in ID order.
func (s *Server) loadParts(ctx context.Context, messageID string) ([]core.Part, error) {
	partIDs, err := s.store.List(ctx, []string{"part", messageID})
	if err != nil {
		return nil, err
	}
	parts := make([]core.Part, 0, len(partIDs))
	for _, pid := range partIDs {
		var pdata json.RawMessage
		if err := s.store.Get(ctx, s.partKey(messageID, pid), &pdata); err != nil {
			continue
		}
		p, err := core.UnmarshalPart(pdata)
		if err != nil {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// listMessages answers GET /session/:id/message with every message of the
// session in ID order; a limit query parameter is not read.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageIDs, err := s.store.List(r.Context(), []string{"message", sessionID})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]*messageWithParts, 0, len(messageIDs))
	for _, mid := range messageIDs {
		mwp, err := s.loadMessageWithParts(r.Context(), sessionID, mid)
		if err != nil {
			continue
		}
		out = append(out, mwp)
	}

	writeJSON(w, http.StatusOK, out)
}

// getMessage answers GET /session/:id/message/:mid.
func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")
	mwp, err := s.loadMessageWithParts(r.Context(), sessionID, messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mwp)
}

// sendMessage answers POST /session/:id/message: it blocks until the turn
// ends and returns the final assistant message with its parts.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var in promptInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	userMsg, err := s.buildUserMessage(r.Context(), sessionID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	if in.NoReply {
		// spec §6: noReply persists the user message but never triggers a
		// turn; the caller gets back what it just sent, with no parts yet.
		writeJSON(w, http.StatusOK, messageWithParts{Info: userMsg, Parts: nil})
		return
	}

	assistantMsg, err := s.engine.Process(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	parts, err := s.loadParts(r.Context(), assistantMsg.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageWithParts{Info: assistantMsg, Parts: parts})
}

// promptAsync answers POST /session/:id/prompt_async: 202, fire-and-forget.
func (s *Server) promptAsync(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var in promptInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.buildUserMessage(r.Context(), sessionID, in); err != nil {
		writeError(w, err)
		return
	}

	if in.NoReply {
		// spec §6: noReply persists the user message but never triggers a
		// turn.
		writeJSON(w, http.StatusAccepted, true)
		return
	}

	go func() {
		_, _ = s.engine.Process(context.Background(), sessionID)
	}()

	writeJSON(w, http.StatusAccepted, true)
}

// deletePart answers DELETE /session/:id/message/:mid/part/:pid.
func (s *Server) deletePart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")
	partID := chi.URLParam(r, "partID")

	if err := s.store.Delete(r.Context(), s.partKey(messageID, partID)); err != nil {
		writeError(w, err)
		return
	}
	s.bus.Publish(bus.EventPartRemoved, bus.PartRemovedPayload{SessionID: sessionID, MessageID: messageID, PartID: partID})
	writeSuccess(w)
}

// updatePartInput is the body of PATCH .../part/:pid: only a text part's
// text is user-editable; a PATCH on any other part type is rejected with
// errUnsupportedPartEdit.
type updatePartInput struct {
	Text *string `json:"text"`
}

// updatePart answers PATCH /session/:id/message/:mid/part/:pid.
func (s *Server) updatePart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")
	partID := chi.URLParam(r, "partID")

	var in updatePartInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	var data json.RawMessage
	if err := s.store.Get(r.Context(), s.partKey(messageID, partID), &data); err != nil {
		writeError(w, err)
		return
	}
	part, err := core.UnmarshalPart(data)
	if err != nil {
		writeError(w, err)
		return
	}
	tp, ok := part.(*core.TextPart)
	if !ok {
		writeError(w, errUnsupportedPartEdit)
		return
	}
	if in.Text != nil {
		tp.Text = *in.Text
	}

	if err := s.putPart(r.Context(), messageID, partID, tp); err != nil {
		writeError(w, err)
		return
	}
	s.bus.Publish(bus.EventPartUpdated, bus.PartUpdatedPayload{SessionID: sessionID, MessageID: messageID, Part: tp})
	writeJSON(w, http.StatusOK, tp)
}
