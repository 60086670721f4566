package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

// threadEventsBody answers GET /api/thread/events: every log line of the
// thread, verbatim in append order.
type threadEventsBody struct {
	ThreadId string   `json:"threadId"`
	Events   []string `json:"events"`
}

func (s *Server) handleThreadEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	threadId := strings.TrimSpace(r.URL.Query().Get("threadId"))
	if threadId == "" {
		writeError(w, http.StatusBadRequest, "threadId is required.")
		return
	}
	lines, err := s.store.Read(threadId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, &threadEventsBody{ThreadId: threadId, Events: lines})
}

func (s *Server) handleThreadEventsStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	threadId := strings.TrimSpace(r.URL.Query().Get("threadId"))
	if threadId == "" {
		writeError(w, http.StatusBadRequest, "threadId is required.")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	subscriber, replay, err := s.hub.Subscribe(threadId, resumePoint(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer s.hub.Unsubscribe(subscriber)

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	// Push the headers out before the first event so the client sees the
	// stream open immediately.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	writer := NewFlushWriter(w)
	for _, frame := range replay {
		if _, err := io.WriteString(writer, frame); err != nil {
			return
		}
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-subscriber.Done():
			return
		case frame := <-subscriber.Frames():
			if _, err := io.WriteString(writer, frame); err != nil {
				return
			}
		}
	}
}

// resumePoint reads the client's last seen event id: the SSE reconnect
// header first, then the explicit query parameter. Zero replays everything.
func resumePoint(r *http.Request) int {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("lastEventId"))
	}
	if raw == "" {
		return 0
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
		return parsed
	}
	return 0
}
