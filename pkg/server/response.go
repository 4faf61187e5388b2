package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// writeJSON encodes data to a buffer before writing headers, so an
// encoding failure can still produce a clean 500 instead of a truncated
// 200 body.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("failed to encode response body", "error", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}

// Status codes per §4.3: 403 key mismatch, 404 no such record/blob, 409
// malformed request, 412 uid already exists, 500 internal, 503 store
// unreachable.
func malformed(w http.ResponseWriter, msg string)   { writeError(w, http.StatusConflict, msg) }
func forbidden(w http.ResponseWriter, msg string)   { writeError(w, http.StatusForbidden, msg) }
func notFound(w http.ResponseWriter, msg string)    { writeError(w, http.StatusNotFound, msg) }
func internalErr(w http.ResponseWriter, msg string) { writeError(w, http.StatusInternalServerError, msg) }
func unavailable(w http.ResponseWriter, msg string) { writeError(w, http.StatusServiceUnavailable, msg) }
func preconditionFailed(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusPreconditionFailed, msg)
}
