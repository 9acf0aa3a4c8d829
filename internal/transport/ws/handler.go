package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/identity"
)

// ScopeAuthorizer re-enforces the access rules for a scope server-side
// before a push connection opens.
type ScopeAuthorizer interface {
	AuthorizeScope(ctx context.Context, p domain.Principal, scope domain.Scope) error
}

// ServeWS returns the HTTP handler that upgrades to WebSocket. The
// handshake carries everything the connection needs: auth via ?token=
// (WebSocket dials cannot send headers from browsers) and the scope via
// ?scope=channel:<id> or ?scope=inbox for the principal's DM inbox.
func ServeWS(hub *Hub, verifier *identity.TokenVerifier, authorizer ScopeAuthorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		principal, err := verifier.Verify(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		scopeStr := r.URL.Query().Get("scope")
		if scopeStr == "" {
			http.Error(w, "missing scope", http.StatusBadRequest)
			return
		}

		var makeClient func(*Hub) *Client
		if scopeStr == "inbox" {
			makeClient = func(h *Hub) *Client {
				return newInboxClient(h, nil, principal)
			}
		} else {
			scope, err := domain.ParseScope(scopeStr)
			if err != nil || !scope.IsChannel() {
				http.Error(w, "invalid scope", http.StatusBadRequest)
				return
			}
			if err := authorizer.AuthorizeScope(r.Context(), principal, scope); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			makeClient = func(h *Hub) *Client {
				return newChannelClient(h, nil, principal, scope)
			}
		}

		conn, err := acceptWS(w, r)
		if err != nil {
			log.Printf("ws: accept error: %v", err)
			return
		}

		client := makeClient(hub)
		client.conn = conn
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
