// Package interaction tracks server-initiated requests that wait for a
// client decision delivered over HTTP.
package interaction

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/viant/darkhold/metrics"
)

// Record is one pending server-initiated request. UpstreamId is the child's
// numeric request id; the reply has to go back to the owning session under
// that exact id.
type Record struct {
	SessionId  int64
	UpstreamId int64
	Method     string
	Params     json.RawMessage
	ReceivedAt time.Time
}

type key struct {
	threadId  string
	requestId string
}

// Broker holds pending interactions keyed by thread and request id.
type Broker struct {
	mu      sync.Mutex
	pending map[key]*Record
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{pending: make(map[key]*Record)}
}

// Register stores a pending interaction, replacing any previous record under
// the same thread and request id.
func (b *Broker) Register(threadId, requestId string, record *Record) {
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now()
	}
	b.mu.Lock()
	b.pending[key{threadId: threadId, requestId: requestId}] = record
	size := len(b.pending)
	b.mu.Unlock()
	metrics.SetPendingInteractions(size)
}

// Take removes and returns the pending interaction. The removal is atomic,
// so of any number of concurrent responders exactly one gets the record.
func (b *Broker) Take(threadId, requestId string) (*Record, bool) {
	aKey := key{threadId: threadId, requestId: requestId}
	b.mu.Lock()
	record, ok := b.pending[aKey]
	if ok {
		delete(b.pending, aKey)
	}
	size := len(b.pending)
	b.mu.Unlock()
	if ok {
		metrics.SetPendingInteractions(size)
	}
	return record, ok
}

// PurgeSession drops every pending interaction owned by the session and
// returns how many were removed.
func (b *Broker) PurgeSession(sessionId int64) int {
	b.mu.Lock()
	removed := 0
	for aKey, record := range b.pending {
		if record.SessionId == sessionId {
			delete(b.pending, aKey)
			removed++
		}
	}
	size := len(b.pending)
	b.mu.Unlock()
	if removed > 0 {
		metrics.SetPendingInteractions(size)
	}
	return removed
}

// Len returns the number of pending interactions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
