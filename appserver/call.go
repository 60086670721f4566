package appserver

import (
	"context"
	"github.com/viant/darkhold"
	"time"
)

// Call is one outstanding request to the app-server.
type Call struct {
	Id       int64
	Method   string
	response *darkhold.Frame
	err      error
	done     chan struct{}
}

// NewCall creates a new call for the given upstream id.
func NewCall(id int64, method string) *Call {
	return &Call{Id: id, Method: method, done: make(chan struct{})}
}

// Wait blocks until the call resolves, the timeout elapses or ctx is done.
// The caller removes the call from its session on error.
func (c *Call) Wait(ctx context.Context, timeout time.Duration) (*darkhold.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, darkhold.NewRPCTimeoutError(c.Method)
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		return c.response, nil
	}
}

// SetResponse resolves the call with a response frame. A call is resolved at
// most once; the session's pending table guarantees a single resolver.
func (c *Call) SetResponse(response *darkhold.Frame) {
	c.response = response
	close(c.done)
}

// SetError rejects the call.
func (c *Call) SetError(err error) {
	c.err = err
	close(c.done)
}
