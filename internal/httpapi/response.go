package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentcore/runtime/internal/modeladapter"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/agentcore/runtime/internal/question"
	"github.com/agentcore/runtime/internal/storage"
)

// errorEnvelope is the wire shape of spec §7/§6: `{name, data, stack?}`.
type errorEnvelope struct {
	Name  string `json:"name"`
	Data  any    `json:"data,omitempty"`
	Stack string `json:"stack,omitempty"`
}

// writeJSON writes a 200 (or status) JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err onto spec §7's status codes and `{name,data,stack?}`
// envelope: NotFoundError → 404, ModelNotFoundError → 400, everything else
// → 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	name := "Unknown"
	var data any

	var modelNotFound *modeladapter.ModelNotFoundError
	var denied *permission.DeniedError
	var rejected *permission.RejectedError
	var qRejected *question.RejectedError

	switch {
	case errors.Is(err, storage.ErrNotFound):
		status, name = http.StatusNotFound, "NotFoundError"
	case errors.As(err, &modelNotFound):
		status, name = http.StatusBadRequest, "ModelNotFoundError"
		data = map[string]any{
			"providerID":  modelNotFound.ProviderID,
			"modelID":     modelNotFound.ModelID,
			"suggestions": modelNotFound.Suggestions,
		}
	case errors.As(err, &denied):
		name = "PermissionDeniedError"
		data = map[string]any{"permission": denied.Permission, "pattern": denied.Pattern}
	case errors.As(err, &rejected):
		name = "PermissionRejectedError"
		data = map[string]any{"requestID": rejected.RequestID, "message": rejected.Message}
	case errors.As(err, &qRejected):
		name = "QuestionRejectedError"
		data = map[string]any{"id": qRejected.ID}
	default:
		name = "Error"
	}

	writeJSON(w, status, errorEnvelope{Name: name, Data: data})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, true)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
