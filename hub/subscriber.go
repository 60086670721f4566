package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBuffer bounds how many frames a subscriber may lag behind before
// the hub drops it.
const subscriberBuffer = 128

// Subscriber is one live SSE consumer of a thread's event feed.
type Subscriber struct {
	id       string
	threadId string
	frames   chan string
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscriber(threadId string, keepalive time.Duration) *Subscriber {
	result := &Subscriber{
		id:       uuid.New().String(),
		threadId: threadId,
		frames:   make(chan string, subscriberBuffer),
		done:     make(chan struct{}),
	}
	go result.tick(keepalive)
	return result
}

// Frames returns the live frame feed, keepalives included.
func (s *Subscriber) Frames() <-chan string {
	return s.frames
}

// Done is closed once the hub removed the subscriber.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// send queues a frame without blocking; false means the subscriber fell too
// far behind and has to go.
func (s *Subscriber) send(frame string) bool {
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

func (s *Subscriber) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// tick queues a keepalive comment on an idle cadence; a full buffer already
// has traffic keeping the connection warm.
func (s *Subscriber) tick(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			select {
			case s.frames <- KeepaliveFrame:
			default:
			}
		}
	}
}
