package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"prdhub/api/internal/collab"
)

// Authenticator resolves the user behind a socket upgrade request, either
// from a single-use collab ticket in the query string or from a bearer
// token.
type Authenticator interface {
	SocketUser(ctx context.Context, r *http.Request) (collab.User, error)
}

// Handler upgrades HTTP requests to collaboration sockets.
type Handler struct {
	coord    *collab.Coordinator
	auth     Authenticator
	upgrader websocket.Upgrader
}

func NewHandler(coord *collab.Coordinator, auth Authenticator, allowedOrigin string) *Handler {
	return &Handler{
		coord: coord,
		auth:  auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.SocketUser(r.Context(), r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := newConn(socket, user, h.coord)
	go conn.writeLoop()
	conn.readLoop(context.Background())
}
