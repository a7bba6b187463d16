package web

import (
	"sync"

	"github.com/MrWong99/fabula/internal/nav"
)

// hub fans session state snapshots out to websocket watchers. Slow
// subscribers drop intermediate snapshots instead of blocking publishers;
// a watcher always eventually sees the latest state.
type hub struct {
	mu   sync.Mutex
	subs map[chan nav.State]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan nav.State]struct{})}
}

// subscribe registers a new watcher and returns its channel plus an
// unsubscribe func.
func (h *hub) subscribe() (<-chan nav.State, func()) {
	ch := make(chan nav.State, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// publish delivers state to every subscriber, replacing any undelivered
// older snapshot.
func (h *hub) publish(state nav.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- state:
		default:
			// Drop the stale snapshot and queue the fresh one.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (h *hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
