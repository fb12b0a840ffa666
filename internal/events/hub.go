// Package events fans order status transitions out to websocket
// subscribers so a dashboard can follow an order live.
package events

import (
	"sync"
	"time"

	"lanzaweb/internal/models"
)

type Event struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Error   string             `json:"error,omitempty"`
	At      time.Time          `json:"at"`
}

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers interest in one order. The returned cancel must
// be called exactly once; it closes the channel.
func (h *Hub) Subscribe(orderID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)
	h.mu.Lock()
	if h.subs[orderID] == nil {
		h.subs[orderID] = make(map[chan Event]struct{})
	}
	h.subs[orderID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[orderID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, orderID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish never blocks; a slow subscriber just misses the event.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.OrderID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
