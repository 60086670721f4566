package appserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/viant/darkhold"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Upstream call ids advance in large strides so they never collide with the
// small ids the child assigns to its own requests.
const requestIdStride = 1_000_000

// Session drives one app-server child process: it owns the serialized frame
// writer, the stdout parse loop and the table of calls awaiting a response.
type Session struct {
	id      int64
	runner  Runner
	handler Handler
	logger  *slog.Logger
	stderr  io.Writer
	timeout time.Duration
	grace   time.Duration

	ctx           context.Context
	nextRequestId int64

	writeMu sync.Mutex

	mu      sync.Mutex
	calls   map[int64]*Call
	threads map[string]struct{}
	closed  bool
	exitErr error

	initMu      sync.Mutex
	initialized bool

	buffer []byte
}

func newSession(id int64, aRunner Runner, o *options) *Session {
	return &Session{
		id:      id,
		runner:  aRunner,
		handler: o.handler,
		logger:  o.logger,
		stderr:  o.stderr,
		timeout: o.timeout,
		grace:   o.grace,
		ctx:     context.Background(),
		calls:   map[int64]*Call{},
		threads: map[string]struct{}{},
	}
}

// Id returns the session identifier.
func (s *Session) Id() int64 {
	return s.id
}

// Alive reports whether the child is still running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) start(ctx context.Context) error {
	if err := s.runner.Start(ctx, s.consume, newPrefixWriter(s.stderr, s.id)); err != nil {
		return err
	}
	go s.watch()
	return nil
}

// consume runs on the runner's pump goroutine; chunks arrive sequentially so
// the parse buffer needs no lock.
func (s *Session) consume(chunk []byte) {
	s.buffer = append(s.buffer, chunk...)
	for {
		index := bytes.IndexByte(s.buffer, '\n')
		if index == -1 {
			return
		}
		line := bytes.TrimSpace(s.buffer[:index])
		s.buffer = s.buffer[index+1:]
		if len(line) == 0 {
			continue
		}
		s.handleLine(line)
	}
}

func (s *Session) handleLine(line []byte) {
	frame, err := darkhold.ParseFrame(line)
	if err != nil {
		s.logger.Debug("dropping non-JSON child output", "session", s.id, "line", string(line))
		return
	}
	switch frame.Type() {
	case darkhold.FrameTypeResponse:
		call := s.takeCall(*frame.Id)
		if call == nil {
			s.logger.Debug("dropping response without a waiter", "session", s.id, "id", *frame.Id)
			return
		}
		call.SetResponse(frame)
	case darkhold.FrameTypeRequest:
		s.handler.OnRequest(s.ctx, s, frame)
	case darkhold.FrameTypeNotification:
		s.handler.OnNotification(s.ctx, s, frame)
	default:
		s.logger.Debug("dropping unclassifiable frame", "session", s.id, "line", string(line))
	}
}

// Call sends one request to the child and waits for the matching response.
// A child-side error object is returned inside the frame, not as a Go error;
// transport failures, timeouts and context cancellation are Go errors.
func (s *Session) Call(ctx context.Context, method string, params json.RawMessage) (*darkhold.Frame, error) {
	id := atomic.AddInt64(&s.nextRequestId, requestIdStride)
	call := NewCall(id, method)
	if err := s.addCall(call); err != nil {
		return nil, err
	}
	data, err := darkhold.NewRequest(id, method, params)
	if err != nil {
		s.removeCall(id)
		return nil, err
	}
	if err = s.send(data); err != nil {
		s.removeCall(id)
		return nil, err
	}
	response, err := call.Wait(ctx, s.timeout)
	if err != nil {
		s.removeCall(id)
		return nil, err
	}
	return response, nil
}

// Reply answers a server-initiated request on behalf of an HTTP client. The
// result or error payload travels to the child verbatim.
func (s *Session) Reply(id int64, result, errObject json.RawMessage) error {
	data, err := darkhold.NewReply(id, result, errObject)
	if err != nil {
		return err
	}
	return s.send(data)
}

// EnsureInitialized performs the upstream initialize handshake exactly once
// per session. A child complaint that it is already initialized counts as
// success.
func (s *Session) EnsureInitialized(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	params, err := json.Marshal(newInitializeParams())
	if err != nil {
		return err
	}
	response, err := s.Call(ctx, "initialize", params)
	if err != nil {
		return err
	}
	if response.Error != nil {
		if !strings.Contains(strings.ToLower(response.Error.Message), "already initialized") {
			return response.Error
		}
	}
	s.initialized = true
	return nil
}

func (s *Session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	closed, exitErr := s.closed, s.exitErr
	s.mu.Unlock()
	if closed {
		return darkhold.NewTransportClosedError(s.id, exitErr)
	}
	return s.runner.Send(append(data, '\n'))
}

func (s *Session) addCall(call *Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return darkhold.NewTransportClosedError(s.id, s.exitErr)
	}
	s.calls[call.Id] = call
	return nil
}

func (s *Session) takeCall(id int64) *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls[id]
	delete(s.calls, id)
	return call
}

func (s *Session) removeCall(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, id)
}

func (s *Session) addThread(threadId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadId] = struct{}{}
}

// SoleThread returns the only thread routed to this session, empty when the
// session serves none or several. Used to attribute interaction requests
// that arrive without a threadId.
func (s *Session) SoleThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.threads) != 1 {
		return ""
	}
	for threadId := range s.threads {
		return threadId
	}
	return ""
}

func (s *Session) threadIds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result = make([]string, 0, len(s.threads))
	for threadId := range s.threads {
		result = append(result, threadId)
	}
	return result
}

func (s *Session) watch() {
	<-s.runner.Done()
	s.close(s.runner.Err())
}

// close rejects every outstanding waiter before anyone else learns about the
// exit, so no HTTP call can observe a half-dead session.
func (s *Session) close(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.exitErr = err
	pending := make([]*Call, 0, len(s.calls))
	for id, call := range s.calls {
		pending = append(pending, call)
		delete(s.calls, id)
	}
	s.mu.Unlock()

	for _, call := range pending {
		call.SetError(darkhold.NewTransportClosedError(s.id, err))
	}
	s.handler.OnExit(s, err)
}

// Stop asks the child to exit and escalates to a kill after the grace
// period.
func (s *Session) Stop(ctx context.Context) error {
	if !s.Alive() {
		return nil
	}
	_ = s.runner.Interrupt()
	select {
	case <-s.runner.Done():
		return nil
	case <-time.After(s.grace):
	case <-ctx.Done():
	}
	_ = s.runner.Kill()
	select {
	case <-s.runner.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type clientInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

type clientCapabilities struct {
	ExperimentalApi bool `json:"experimentalApi"`
}

type initializeParams struct {
	ClientInfo   clientInfo         `json:"clientInfo"`
	Capabilities clientCapabilities `json:"capabilities"`
}

func newInitializeParams() *initializeParams {
	return &initializeParams{
		ClientInfo: clientInfo{
			Name:    darkhold.ClientName,
			Title:   darkhold.ClientTitle,
			Version: darkhold.ClientVersion,
		},
		Capabilities: clientCapabilities{ExperimentalApi: true},
	}
}

// prefixWriter forwards child stderr lines to the gateway's error sink with
// the owning session id prefixed.
type prefixWriter struct {
	out    io.Writer
	prefix string
	mu     sync.Mutex
	buf    []byte
}

func newPrefixWriter(out io.Writer, sessionId int64) *prefixWriter {
	return &prefixWriter{out: out, prefix: fmt.Sprintf("[app-server session=%d] ", sessionId)}
}

func (w *prefixWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, data...)
	for {
		index := bytes.IndexByte(w.buf, '\n')
		if index == -1 {
			return len(data), nil
		}
		line := w.buf[:index]
		w.buf = w.buf[index+1:]
		_, _ = fmt.Fprintf(w.out, "%s%s\n", w.prefix, line)
	}
}
