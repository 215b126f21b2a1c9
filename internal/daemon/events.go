package daemon

import (
	"sync"
	"time"

	"scribe/internal/history"
)

// Event is a job status change pushed to websocket subscribers.
type Event struct {
	JobID     string         `json:"job_id"`
	Status    history.Status `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const subscriberBuffer = 16

// eventHub fans job events out to per-job subscribers. Slow subscribers drop
// events rather than block workers.
type eventHub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *eventHub) subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan Event]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[jobID], ch)
			if len(h.subs[jobID]) == 0 {
				delete(h.subs, jobID)
			}
		})
	}
}

func (h *eventHub) publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[evt.JobID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *eventHub) subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
