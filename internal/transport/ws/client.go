package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/avukic/skolar/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Client is one open push connection: a (principal, scope) handle. The
// scope is fixed at handshake time, either a single channel or the
// principal's direct-message inbox.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal domain.Principal

	// channelScope is set for channel connections; inbox is true for the
	// principal's DM inbox connection.
	channelScope domain.Scope
	inbox        bool

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newChannelClient(hub *Hub, conn *websocket.Conn, p domain.Principal, scope domain.Scope) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		principal:    p,
		channelScope: scope,
		send:         make(chan []byte, sendBufSize),
		done:         make(chan struct{}),
	}
}

func newInboxClient(hub *Hub, conn *websocket.Conn, p domain.Principal) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		principal: p,
		inbox:     true,
		send:      make(chan []byte, sendBufSize),
		done:      make(chan struct{}),
	}
}

func (c *Client) key() handleKey {
	scope := "inbox"
	if !c.inbox {
		scope = string(c.channelScope)
	}
	return handleKey{principalID: c.principal.ID.String(), scope: scope}
}

// wants reports whether a mutation on scope must reach this connection.
// An inbox connection matches every DM scope its principal participates
// in; a channel connection matches its channel exactly.
func (c *Client) wants(scope domain.Scope) bool {
	if c.inbox {
		return scope.Includes(c.principal.ID)
	}
	return c.channelScope == scope
}

// shutdown is called by the hub exactly once per handle.
func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.send)
		close(c.done)
	})
}

// ReadPump reads control events from the WebSocket until the peer goes
// away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: %s disconnected", c.principal.ID)
			} else {
				log.Printf("ws: read error from %s: %v", c.principal.ID, err)
			}
			return
		}

		switch event.Type {
		case EventTypePing:
			c.sendPong()
		default:
			c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
		}
	}
}

// WritePump writes queued events to the WebSocket and keeps the
// transport-level ping going.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.principal.ID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.principal.ID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong, Timestamp: time.Now().Unix()})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, "", ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
