package progress

import "sync"

// Hub is a Reporter that fans events out to subscribers and remembers the
// latest one. A full subscriber loses its oldest buffered event, so the most
// recent event is always delivered and Report never blocks.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	last Event
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Report implements Reporter.
func (h *Hub) Report(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = e
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			// Only Report sends, under h.mu, so one receive frees a slot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// Last returns the most recent event.
func (h *Hub) Last() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Subscribe registers a new subscriber with the given buffer size.
// The returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Verify interface implementation at compile time.
var _ Reporter = (*Hub)(nil)
