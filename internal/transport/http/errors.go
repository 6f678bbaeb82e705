package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/iliamunaev/taskload/internal/apperr"
	"github.com/iliamunaev/taskload/internal/model"
)

// errorPayload classifies err for a response body. msg is used as the
// human-readable message.
func errorPayload(err error, msg string) *model.ErrorPayload {
	return &model.ErrorPayload{
		Kind:    apperr.Kind(err),
		Message: msg,
	}
}

// writeError writes err as an ErrorPayload with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), errorPayload(err, err.Error()))
}

// writeJSON writes v as a JSON response with the given status code.
// The Content-Type is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
