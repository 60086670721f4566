package appserver

import (
	"context"
	"encoding/json"
	"github.com/viant/darkhold"
)

// Handler receives traffic the app-server initiates on its own: requests
// that expect an HTTP-mediated answer, notifications, and process exit.
type Handler interface {
	// OnRequest is called for each server-initiated request. The handler
	// owns the reply; the session does not answer on its behalf.
	OnRequest(ctx context.Context, session *Session, frame *darkhold.Frame)

	// OnNotification is called for each notification frame.
	OnNotification(ctx context.Context, session *Session, frame *darkhold.Frame)

	// OnExit is called once, after the session rejected its in-flight
	// calls, when the child process is gone.
	OnExit(session *Session, err error)
}

// Interceptor observes successful gateway calls before the result is
// returned to the caller. Errors are logged and do not fail the call.
type Interceptor interface {
	Intercept(ctx context.Context, session *Session, method string, result json.RawMessage) error
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(ctx context.Context, session *Session, method string, result json.RawMessage) error

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, session *Session, method string, result json.RawMessage) error {
	return f(ctx, session, method, result)
}

type noopHandler struct{}

func (n *noopHandler) OnRequest(ctx context.Context, session *Session, frame *darkhold.Frame) {
}

func (n *noopHandler) OnNotification(ctx context.Context, session *Session, frame *darkhold.Frame) {
}

func (n *noopHandler) OnExit(session *Session, err error) {
}
