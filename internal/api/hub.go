package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const eventWriteDeadline = 5 * time.Second

// Hub fans completed verdicts out to connected websocket clients so
// extension dashboards can watch analyses in real time.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		log:     log.WithComponent("events"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowedOrigin(origin, allowedOrigins)
			},
		},
	}
}

// ServeWS upgrades the request and subscribes the client to verdict events.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("Websocket upgrade failed",
			"error", err,
			"ip", c.ClientIP(),
		)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Infow("Event client connected",
		"clients", count,
		"ip", c.ClientIP(),
	)

	go h.drain(conn)
}

// drain consumes inbound frames so control messages are processed and a
// closed connection is noticed promptly.
func (h *Hub) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.log.Debugw("Event client disconnected", "clients", count)
}

// Broadcast sends the report to every subscriber. Clients that cannot keep
// up within the write deadline are dropped rather than blocking the rest.
func (h *Hub) Broadcast(report *types.RiskReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(eventWriteDeadline))
		if err := conn.WriteJSON(report); err != nil {
			h.log.Debugw("Dropping stalled event client", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.clients, conn)
	}
}
