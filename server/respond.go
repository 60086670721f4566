package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viant/darkhold/fsbrowser"
)

// errorBody is the uniform error payload of the JSON surface.
type errorBody struct {
	Error string `json:"error"`
}

type okBody struct {
	Ok bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &errorBody{Error: message})
}

// writeRawResult sends a child result verbatim; an absent result becomes
// null, matching what the child would have sent for a bare acknowledgement.
func writeRawResult(w http.ResponseWriter, result json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if len(result) == 0 {
		_, _ = w.Write([]byte("null\n"))
		return
	}
	_, _ = w.Write(result)
	_, _ = w.Write([]byte("\n"))
}

// fsErrorStatus maps browser errors onto the surface taxonomy.
func fsErrorStatus(err error) int {
	switch {
	case errors.Is(err, fsbrowser.ErrEscapesBase):
		return http.StatusForbidden
	case errors.Is(err, fsbrowser.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
