package services

import (
	"context"
	"sync"

	"canopy-backend-go/internal/notify"

	"github.com/gorilla/websocket"
)

// ActivityHub fans activities out to connected admin websocket clients.
type ActivityHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	ch      chan notify.Activity
}

func NewActivityHub() *ActivityHub {
	return &ActivityHub{
		clients: map[*websocket.Conn]bool{},
		ch:      make(chan notify.Activity, 64),
	}
}

func (h *ActivityHub) Run(ctx context.Context) {
	for {
		select {
		case activity := <-h.ch:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(activity); err != nil {
					_ = conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// Broadcast queues an activity; it is dropped when the buffer is full.
func (h *ActivityHub) Broadcast(activity notify.Activity) {
	select {
	case h.ch <- activity:
	default:
	}
}

func (h *ActivityHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *ActivityHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *ActivityHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
