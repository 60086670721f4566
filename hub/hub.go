// Package hub fans thread events out to SSE subscribers. Every published
// event is appended to the durable per-thread log first and only then framed
// and delivered, so the log line position and the SSE event id always agree.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/darkhold/eventlog"
	"github.com/viant/darkhold/internal/collection"
	"github.com/viant/darkhold/metrics"
)

const defaultKeepalive = 15 * time.Second

// Hub publishes thread events to the event log and to live subscribers.
type Hub struct {
	store     *eventlog.Store
	logger    *slog.Logger
	keepalive time.Duration
	threads   *collection.SyncMap[string, *threadState]
}

// threadState serializes publishes for one thread and tracks its consumers.
type threadState struct {
	mu sync.Mutex
	// nextId is the id the next published event will get, or zero until the
	// log has been sized.
	nextId      int
	subscribers map[string]*Subscriber
}

// Option represents a hub option.
type Option func(h *Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithKeepalive sets the keepalive cadence for idle subscribers. A
// non-positive interval disables keepalives.
func WithKeepalive(interval time.Duration) Option {
	return func(h *Hub) {
		h.keepalive = interval
	}
}

// New creates a hub backed by the supplied event log store.
func New(store *eventlog.Store, options ...Option) *Hub {
	result := &Hub{
		store:     store,
		logger:    slog.Default(),
		keepalive: defaultKeepalive,
		threads:   collection.NewSyncMap[string, *threadState](),
	}
	for _, option := range options {
		option(result)
	}
	return result
}

// Publish appends payload to the thread's event log, assigns the next event
// id and delivers the framed event to every subscriber. When the append
// fails the event is dropped so ids keep matching log line positions, and
// later publishes proceed normally.
func (h *Hub) Publish(ctx context.Context, threadId string, payload string) {
	state := h.state(threadId)
	state.mu.Lock()
	defer state.mu.Unlock()
	next, err := h.ensureNextId(state, threadId)
	if err != nil {
		h.logger.Error("failed to size event log", "thread", threadId, "error", err)
		return
	}
	if err := h.store.Append(ctx, threadId, payload); err != nil {
		h.logger.Error("failed to append event", "thread", threadId, "error", err)
		return
	}
	state.nextId = next + 1
	metrics.RecordEventPublished()
	frame := FrameEvent(next, payload)
	for id, subscriber := range state.subscribers {
		if subscriber.send(frame) {
			continue
		}
		delete(state.subscribers, id)
		subscriber.stop()
		metrics.SubscriberRemoved()
		h.logger.Warn("dropped slow subscriber", "thread", threadId, "subscriber", id)
	}
}

// Subscribe registers a live subscriber and returns the frames to replay for
// events after lastEventId. Replay covers ids lastEventId+1 up to but not
// including the registration snapshot; anything newer arrives on the live
// channel, so the caller sees no gap and no duplicate.
func (h *Hub) Subscribe(threadId string, lastEventId int) (*Subscriber, []string, error) {
	state := h.state(threadId)
	state.mu.Lock()
	next, err := h.ensureNextId(state, threadId)
	if err != nil {
		state.mu.Unlock()
		return nil, nil, err
	}
	subscriber := newSubscriber(threadId, h.keepalive)
	state.subscribers[subscriber.id] = subscriber
	state.mu.Unlock()
	metrics.SubscriberAdded()

	lines, err := h.store.Read(threadId)
	if err != nil {
		h.Unsubscribe(subscriber)
		return nil, nil, err
	}
	var replay []string
	for index, line := range lines {
		id := index + 1
		if id <= lastEventId || id >= next {
			continue
		}
		replay = append(replay, FrameEvent(id, line))
	}
	return subscriber, replay, nil
}

// Unsubscribe removes a subscriber; safe to call after the hub already
// dropped it.
func (h *Hub) Unsubscribe(subscriber *Subscriber) {
	if subscriber == nil {
		return
	}
	state, ok := h.threads.Get(subscriber.threadId)
	if ok {
		state.mu.Lock()
		if _, exists := state.subscribers[subscriber.id]; exists {
			delete(state.subscribers, subscriber.id)
			metrics.SubscriberRemoved()
		}
		state.mu.Unlock()
	}
	subscriber.stop()
}

// Invalidate forgets the cached next event id; used after the log file was
// rewritten in place.
func (h *Hub) Invalidate(threadId string) {
	state, ok := h.threads.Get(threadId)
	if !ok {
		return
	}
	state.mu.Lock()
	state.nextId = 0
	state.mu.Unlock()
}

// Subscribers returns the live subscriber count for a thread.
func (h *Hub) Subscribers(threadId string) int {
	state, ok := h.threads.Get(threadId)
	if !ok {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return len(state.subscribers)
}

func (h *Hub) state(threadId string) *threadState {
	state, _ := h.threads.GetOrPut(threadId, &threadState{subscribers: map[string]*Subscriber{}})
	return state
}

// ensureNextId sizes the counter from the log file on first use; callers hold
// the thread mutex.
func (h *Hub) ensureNextId(state *threadState, threadId string) (int, error) {
	if state.nextId == 0 {
		count, err := h.store.Count(threadId)
		if err != nil {
			return 0, err
		}
		state.nextId = count + 1
	}
	return state.nextId, nil
}
