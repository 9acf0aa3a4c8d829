package ws

import (
	"encoding/json"
	"log"

	"github.com/avukic/skolar/internal/domain"
)

// Hub is the server-side event router: given a committed mutation it
// resolves the set of open connections whose scope matches and pushes the
// event to each, including the mutating principal's own connection.
type Hub struct {
	// clients maps (principal, connection scope) → client. At most one
	// open handle exists per key; registering a replacement tears down
	// the stale one first.
	clients map[handleKey]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	// remote, when set, forwards locally-originated events to the other
	// server instances (redis bridge).
	remote RemotePublisher
}

// RemotePublisher fans an event out to other server instances.
type RemotePublisher interface {
	Publish(scope domain.Scope, data []byte)
}

type handleKey struct {
	principalID string
	scope       string // "channel:<uuid>" or "inbox"
}

type broadcastMsg struct {
	scope domain.Scope
	data  []byte
	// local marks an event that arrived from another instance via the
	// bridge; it must not be re-published.
	local bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[handleKey]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
	}
}

// SetRemote attaches the cross-instance publisher. Must be called before
// Run.
func (h *Hub) SetRemote(r RemotePublisher) {
	h.remote = r
}

// Run starts the Hub's event loop. Call this in a goroutine; it exits
// when the done channel closes.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case client := <-h.register:
			key := client.key()
			if stale, ok := h.clients[key]; ok {
				// A second handle for the same (principal, scope): the
				// old one is stale, tear it down before replacing it.
				stale.shutdown()
				log.Printf("ws hub: replaced stale handle for %s %s", key.principalID, key.scope)
			}
			h.clients[key] = client
			log.Printf("ws hub: %s connected on %s (%d total)", key.principalID, key.scope, len(h.clients))

		case client := <-h.unregister:
			key := client.key()
			if current, ok := h.clients[key]; ok && current == client {
				delete(h.clients, key)
				client.shutdown()
				log.Printf("ws hub: %s disconnected from %s (%d total)", key.principalID, key.scope, len(h.clients))
			}

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-done:
			for key, client := range h.clients {
				delete(h.clients, key)
				client.shutdown()
			}
			return
		}
	}
}

// deliver pushes to every matching connection. A failed push (full send
// buffer) drops only that handle; delivery to the remaining handles
// continues and the dropped client is left to its reconnect policy.
func (h *Hub) deliver(msg *broadcastMsg) {
	for key, client := range h.clients {
		if !client.wants(msg.scope) {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			delete(h.clients, key)
			client.shutdown()
			log.Printf("ws hub: dropped slow handle %s %s", key.principalID, key.scope)
		}
	}
	if h.remote != nil && !msg.local {
		h.remote.Publish(msg.scope, msg.data)
	}
}

// Broadcast routes an event to every open connection matching its scope.
func (h *Hub) Broadcast(scope domain.Scope, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	h.broadcast <- &broadcastMsg{scope: scope, data: data}
}

// DeliverRemote routes an event that another instance published. It is
// delivered locally only, never re-published.
func (h *Hub) DeliverRemote(scope domain.Scope, data []byte) {
	h.broadcast <- &broadcastMsg{scope: scope, data: data, local: true}
}
