package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/viant/darkhold"
)

const (
	interactionConflictMessage = "interaction request not found or already resolved."
	sessionGoneMessage         = "app-server session is unavailable."
)

// respondRequest is the body of POST /api/thread/interaction/respond. Result
// and error travel to the child verbatim; an error object wins.
type respondRequest struct {
	ThreadId  string          `json:"threadId"`
	RequestId string          `json:"requestId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

func (s *Server) handleInteractionRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	request := &respondRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	request.ThreadId = strings.TrimSpace(request.ThreadId)
	request.RequestId = strings.TrimSpace(request.RequestId)
	if request.ThreadId == "" || request.RequestId == "" {
		writeError(w, http.StatusBadRequest, "threadId and requestId are required.")
		return
	}
	record, ok := s.broker.Take(request.ThreadId, request.RequestId)
	if !ok {
		writeError(w, http.StatusConflict, interactionConflictMessage)
		return
	}
	session, ok := s.manager.Session(record.SessionId)
	if !ok {
		writeError(w, http.StatusGone, sessionGoneMessage)
		return
	}
	if err := session.Reply(record.UpstreamId, request.Result, request.Error); err != nil {
		writeError(w, http.StatusGone, sessionGoneMessage)
		return
	}
	payload, err := darkhold.NewInteractionResolvedEvent(request.ThreadId, request.RequestId)
	if err != nil {
		s.logger.Error("failed to render resolved event", "thread", request.ThreadId, "error", err)
	} else {
		s.hub.Publish(r.Context(), request.ThreadId, string(payload))
	}
	writeJSON(w, http.StatusOK, &okBody{Ok: true})
}
