package watch

import (
	"sync"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
)

// Hub fans snapshots out to subscribers of one match. Slow subscribers only
// ever see the latest snapshot.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.MatchSnapshot]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.MatchSnapshot]struct{})}
}

// Subscribe returns a channel of snapshots for matchID and a cancel func that
// must be called to release it.
func (h *Hub) Subscribe(matchID string) (<-chan domain.MatchSnapshot, func()) {
	ch := make(chan domain.MatchSnapshot, 1)
	h.mu.Lock()
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[chan domain.MatchSnapshot]struct{})
		h.subs[matchID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[matchID], ch)
			if len(h.subs[matchID]) == 0 {
				delete(h.subs, matchID)
			}
			h.mu.Unlock()
		})
	}
}

// Publish never blocks.
func (h *Hub) Publish(snap domain.MatchSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[snap.ID] {
		select {
		case ch <- snap:
			continue
		default:
		}
		// replace the stale pending snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (h *Hub) Subscribers(matchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[matchID])
}
