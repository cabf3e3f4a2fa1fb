package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// replyQuestionInput is the body of POST /question/:id/reply.
type replyQuestionInput struct {
	Answers [][]string `json:"answers"`
}

// replyQuestion answers POST /question/:id/reply.
func (s *Server) replyQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in replyQuestionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	s.questions.Answer(id, in.Answers)
	writeSuccess(w)
}

// rejectQuestion answers POST /question/:id/reject.
func (s *Server) rejectQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.questions.Reject(id)
	writeSuccess(w)
}
