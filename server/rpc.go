package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/viant/darkhold"
	"github.com/viant/darkhold/appserver"
	"github.com/viant/darkhold/metrics"
)

const (
	methodInitialize   = "initialize"
	methodThreadStart  = "thread/start"
	methodThreadRead   = "thread/read"
	methodThreadResume = "thread/resume"
)

// rpcRequest is the body of POST /api/rpc.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	request := &rpcRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	request.Method = strings.TrimSpace(request.Method)
	if request.Method == "" {
		writeError(w, http.StatusBadRequest, "method is required.")
		return
	}
	started := time.Now()
	status := s.serveRPC(w, r, request)
	metrics.RecordRPCRequest(request.Method, status, time.Since(started).Seconds())
}

// serveRPC forwards one call to the selected child and maps the outcome onto
// the surface taxonomy. The returned label feeds the request counter.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request, request *rpcRequest) string {
	ctx := r.Context()
	hint := threadIdHint(request.Params)
	session, err := s.manager.Select(ctx, hint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "error"
	}
	if hint != "" {
		s.manager.Bind(hint, session)
	}
	if request.Method != methodInitialize {
		if err := session.EnsureInitialized(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return callStatus(err)
		}
	}
	response, err := s.manager.Call(ctx, session, request.Method, request.Params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return callStatus(err)
	}
	if response.Error != nil {
		writeError(w, http.StatusBadRequest, response.Error.Error())
		return "error"
	}
	writeRawResult(w, response.Result)
	return "ok"
}

// threadIdHint probes params.threadId so calls for a known thread land on its
// session.
func threadIdHint(params json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	probe := struct {
		ThreadId string `json:"threadId"`
	}{}
	if err := json.Unmarshal(params, &probe); err != nil {
		return ""
	}
	return probe.ThreadId
}

func callStatus(err error) string {
	switch {
	case darkhold.IsRPCTimeout(err):
		return "timeout"
	case darkhold.IsTransportClosed(err):
		return "closed"
	default:
		return "error"
	}
}

// interceptThreadResponse runs after successful child calls: thread-bearing
// results bind their thread to the answering session, and history reads
// rebuild the thread's event log.
func (s *Server) interceptThreadResponse(ctx context.Context, session *appserver.Session, method string, result json.RawMessage) error {
	switch method {
	case methodThreadStart, methodThreadRead, methodThreadResume:
	default:
		return nil
	}
	parsed := darkhold.ParseThreadResult(result)
	if parsed == nil {
		return nil
	}
	threadId := parsed.Thread.Id
	s.manager.Bind(threadId, session)
	if method == methodThreadStart {
		return nil
	}
	if err := s.store.Rehydrate(ctx, threadId, result); err != nil {
		return fmt.Errorf("failed to rehydrate thread %v: %w", threadId, err)
	}
	s.hub.Invalidate(threadId)
	return nil
}
