package client

import (
	"context"
	"net/url"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Transport is one established push connection. The production
// implementation wraps a WebSocket; tests substitute their own.
type Transport interface {
	ReadEvent(ctx context.Context) (*Event, error)
	WriteJSON(ctx context.Context, v any) error
	Close() error
}

// Dialer opens a Transport for a scope. Dial suspends until the
// handshake completes or ctx ends.
type Dialer interface {
	Dial(ctx context.Context, scope string) (Transport, error)
}

// WSDialer dials the server's /ws endpoint, authenticating via the
// portal token.
type WSDialer struct {
	// BaseURL is the server root, e.g. "ws://localhost:8080".
	BaseURL string
	// Token is the portal-issued bearer token.
	Token string
}

func (d *WSDialer) Dial(ctx context.Context, scope string) (Transport, error) {
	q := url.Values{}
	q.Set("token", d.Token)
	q.Set("scope", scope)
	conn, _, err := websocket.Dial(ctx, d.BaseURL+"/ws?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadEvent(ctx context.Context) (*Event, error) {
	var evt Event
	if err := wsjson.Read(ctx, t.conn, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

func (t *wsTransport) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, t.conn, v)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
