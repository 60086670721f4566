package appserver

import (
	"context"
	"encoding/json"
	"github.com/viant/darkhold"
	"github.com/viant/darkhold/internal/collection"
	"github.com/viant/darkhold/metrics"
	"golang.org/x/sync/errgroup"
	"sync"
)

// Manager owns the pool of child sessions and the thread affinity map.
// Threads stick to the session that first produced them so the child's
// in-memory thread state stays authoritative.
type Manager struct {
	options  *options
	sessions *collection.SyncMap[int64, *Session]

	mu            sync.Mutex
	threadSession map[string]int64
	nextSessionId int64
}

// NewManager creates a session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		options:       newOptions(opts...),
		sessions:      collection.NewSyncMap[int64, *Session](),
		threadSession: map[string]int64{},
	}
	m.options.handler = &sessionSink{manager: m, next: m.options.handler}
	return m
}

// Select returns the session that should serve the given thread: the bound
// session when it is still alive, else the lowest-id live session, else a
// freshly spawned child. Selection and spawning are atomic so concurrent
// callers cannot each spawn a child.
func (m *Manager) Select(ctx context.Context, threadId string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threadId != "" {
		if id, ok := m.threadSession[threadId]; ok {
			if session, found := m.sessions.Get(id); found && session.Alive() {
				return session, nil
			}
			delete(m.threadSession, threadId)
		}
	}
	var best *Session
	m.sessions.Range(func(id int64, candidate *Session) bool {
		if !candidate.Alive() {
			return true
		}
		if best == nil || candidate.id < best.id {
			best = candidate
		}
		return true
	})
	if best != nil {
		return best, nil
	}
	return m.spawn(ctx)
}

func (m *Manager) spawn(ctx context.Context) (*Session, error) {
	m.nextSessionId++
	session := newSession(m.nextSessionId, m.options.factory(), m.options)
	if err := session.start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	m.sessions.Put(session.id, session)
	metrics.RecordChildSpawn()
	metrics.SetChildSessions(m.sessions.Len())
	m.options.logger.Info("spawned app-server", "session", session.id)
	return session, nil
}

// Bind routes a thread to a session. Idempotent; safe to call for every
// thread-producing event.
func (m *Manager) Bind(threadId string, session *Session) {
	if threadId == "" || session == nil {
		return
	}
	m.mu.Lock()
	m.threadSession[threadId] = session.id
	m.mu.Unlock()
	session.addThread(threadId)
}

// Session returns the live session with the given id.
func (m *Manager) Session(id int64) (*Session, bool) {
	session, ok := m.sessions.Get(id)
	if !ok || !session.Alive() {
		return nil, false
	}
	return session, true
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Call forwards one request to the session and runs the registered
// interceptors when the child answered without an error object. Interceptor
// errors are logged, never returned.
func (m *Manager) Call(ctx context.Context, session *Session, method string, params json.RawMessage) (*darkhold.Frame, error) {
	response, err := session.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if response.Error == nil {
		for _, interceptor := range m.options.interceptors {
			if err := interceptor.Intercept(ctx, session, method, response.Result); err != nil {
				m.options.logger.Warn("call interceptor failed", "method", method, "error", err)
			}
		}
	}
	return response, nil
}

// Shutdown stops every child concurrently and waits for them to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	m.sessions.Range(func(id int64, session *Session) bool {
		group.Go(func() error {
			return session.Stop(groupCtx)
		})
		return true
	})
	return group.Wait()
}

func (m *Manager) remove(session *Session, err error) {
	m.mu.Lock()
	for _, threadId := range session.threadIds() {
		if m.threadSession[threadId] == session.id {
			delete(m.threadSession, threadId)
		}
	}
	m.mu.Unlock()
	m.sessions.Delete(session.id)
	metrics.SetChildSessions(m.sessions.Len())
	m.options.logger.Info("app-server exited", "session", session.id, "error", err)
}

// sessionSink runs manager bookkeeping after the gateway handler observed an
// exit, so affinity entries are cleared only once pending interactions were
// purged.
type sessionSink struct {
	manager *Manager
	next    Handler
}

func (s *sessionSink) OnRequest(ctx context.Context, session *Session, frame *darkhold.Frame) {
	s.next.OnRequest(ctx, session, frame)
}

func (s *sessionSink) OnNotification(ctx context.Context, session *Session, frame *darkhold.Frame) {
	s.next.OnNotification(ctx, session, frame)
}

func (s *sessionSink) OnExit(session *Session, err error) {
	s.next.OnExit(session, err)
	s.manager.remove(session, err)
}
