package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/identifier"
)

// createSessionInput is the body of POST /session.
type createSessionInput struct {
	Title      string       `json:"title"`
	ParentID   *string      `json:"parentID"`
	Permission core.RuleSet `json:"permission"`
}

// updateSessionInput is the body of PATCH /session/:id.
type updateSessionInput struct {
	Title *string `json:"title"`
}

func (s *Server) sessionKey(id string) []string { return []string{"session", id} }

func (s *Server) getSessionByID(ctx context.Context, id string) (*core.Session, error) {
	var sess core.Session
	if err := s.store.Get(ctx, s.sessionKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// listSessions answers GET /session?search=&limit=&roots= with every
// session newest first (session IDs are generated with Descending
// direction, so lexicographic key order already sorts newest first).
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context(), []string{"session"})
	if err != nil {
		writeError(w, err)
		return
	}

	search := strings.ToLower(r.URL.Query().Get("search"))
	rootsOnly := r.URL.Query().Get("roots") == "true"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	out := make([]*core.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.getSessionByID(r.Context(), id)
		if err != nil {
			continue
		}
		if rootsOnly && !sess.IsRoot() {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(sess.Title), search) {
			continue
		}
		out = append(out, sess)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	writeJSON(w, http.StatusOK, out)
}

// createSession answers POST /session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var in createSessionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	now := nowMillis()
	sess := &core.Session{
		ID:         identifier.Generate(identifier.KindSession, identifier.Descending),
		Title:      in.Title,
		ParentID:   in.ParentID,
		Permission: in.Permission,
		Time:       core.SessionTime{Created: now, Updated: now},
	}

	if err := s.store.Put(r.Context(), s.sessionKey(sess.ID), sess); err != nil {
		writeError(w, err)
		return
	}
	s.bus.Publish(bus.EventSessionCreated, sess)
	writeJSON(w, http.StatusOK, sess)
}

// getSession answers GET /session/:id.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.getSessionByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// updateSession answers PATCH /session/:id.
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var in updateSessionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	var sess core.Session
	err := s.store.Update(r.Context(), s.sessionKey(id), &sess, func() error {
		if in.Title != nil {
			sess.Title = *in.Title
		}
		sess.Time.Updated = nowMillis()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bus.Publish(bus.EventSessionUpdated, &sess)
	writeJSON(w, http.StatusOK, &sess)
}

// deleteSession answers DELETE /session/:id: deletes the session and
// cascades to all of its messages and their parts (spec §3 Session doc).
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	if _, err := s.getSessionByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	messageIDs, err := s.store.List(ctx, []string{"message", id})
	if err != nil {
		writeError(w, err)
		return
	}
	for _, mid := range messageIDs {
		partIDs, err := s.store.List(ctx, []string{"part", mid})
		if err == nil {
			for _, pid := range partIDs {
				s.store.Delete(ctx, []string{"part", mid, pid})
			}
		}
		s.store.Delete(ctx, []string{"message", id, mid})
	}

	if err := s.store.Delete(ctx, s.sessionKey(id)); err != nil {
		writeError(w, err)
		return
	}
	s.bus.Publish(bus.EventSessionDeleted, map[string]string{"id": id})
	writeSuccess(w)
}

// getChildren answers GET /session/:id/children: direct children only.
func (s *Server) getChildren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ids, err := s.store.List(r.Context(), []string{"session"})
	if err != nil {
		writeError(w, err)
		return
	}

	var out []*core.Session
	for _, cid := range ids {
		sess, err := s.getSessionByID(r.Context(), cid)
		if err != nil {
			continue
		}
		if sess.ParentID != nil && *sess.ParentID == id {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

// abortSession answers POST /session/:id/abort. Aborting an already-idle
// session is a no-op, not an error (spec §6 lists only a `true` response).
func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	_ = s.engine.Abort(id)
	writeSuccess(w)
}
