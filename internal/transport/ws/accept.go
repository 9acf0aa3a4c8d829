package ws

import (
	"net/http"

	"nhooyr.io/websocket"
)

func acceptWS(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		// The portal frontend and the API live on different origins in
		// dev; origin policy is enforced by the reverse proxy in prod.
		InsecureSkipVerify: true,
	})
}
