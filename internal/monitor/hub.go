// Package monitor implements a read-only websocket feed of stats.Snapshot
// values (§4.9's FPS counter plus host metrics), generalized from the
// connection-manager idiom of the websocket-chat pack member: no inbound
// command interpretation, broadcast only.
package monitor

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/deskstream/deskstream/internal/stats"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub accepts websocket clients and broadcasts every stats.Snapshot it is
// given to all of them, msgpack-encoded. It never interprets anything a
// client sends: inbound messages are read and discarded only to notice
// when the client goes away.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection until it errors or closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain and discard anything the client sends; this is a push-only
	// feed, but we still need to notice when the peer goes away.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast msgpack-encodes snap and pushes it to every connected client,
// dropping any client whose write fails.
func (h *Hub) Broadcast(snap stats.Snapshot) {
	payload, err := msgpack.Marshal(snap)
	if err != nil {
		log.Printf("monitor: marshal snapshot: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			h.remove(c)
		}
	}
}

// Count reports the number of currently connected monitor clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
