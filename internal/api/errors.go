package api

import (
	"encoding/json"
	"net/http"

	"github.com/pulsetrail/aggregator/internal/apperr"
)

// errorBody is the fixed inbound API error shape:
// `{error, message, details?}`.
type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the fixed-shape JSON error body. code is the taxonomy
// label exposed to the caller (e.g. "unauthorized", "not_found"); it need
// not match an apperr.Kind verbatim; auth/middleware errors have no
// apperr.Error to draw one from.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writePipelineError maps an error from the pipeline packages onto an HTTP
// status: not_found/forbidden/validation/conflict surface as their named 4xx
// (404/403/400/409), everything else collapses to 500 with an opaque message.
func writePipelineError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), "not found")
	case apperr.KindForbidden:
		writeError(w, http.StatusForbidden, string(kind), "forbidden")
	case apperr.KindValidation:
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case apperr.KindConflict:
		writeError(w, http.StatusConflict, string(kind), "conflict")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
