package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentcore/runtime/internal/permission"
)

// listPermissions answers GET /permission.
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.permissions.List())
}

// replyPermissionInput is the body of POST /permission/:id/reply.
type replyPermissionInput struct {
	Reply   permission.ReplyKind `json:"reply"`
	Message string               `json:"message"`
}

// replyPermission answers POST /permission/:id/reply.
func (s *Server) replyPermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in replyPermissionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := s.permissions.Reply(id, in.Reply, in.Message); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}
