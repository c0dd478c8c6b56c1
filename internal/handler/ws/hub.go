package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"TIKR/internal/domain/models"
	xlogger "TIKR/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Hub fans prediction updates out to connected WebSocket clients. Slow
// clients are dropped rather than allowed to stall a broadcast.
type Hub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader
	buffer   int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type updateMessage struct {
	Type string                    `json:"type"`
	Data []*models.PredictionEvent `json:"data"`
	At   models.Timestamp          `json:"at"`
}

// NewHub creates the broadcast hub. Buffer bounds the per-client send queue.
func NewHub(logger *xlogger.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:  buffer,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/predictions", h.Serve)
}

// Serve upgrades the connection and keeps it subscribed until it closes.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[cl] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws client connected", xlogger.Int("clients", total))
	go h.writePump(cl)
	go h.readPump(cl)
	return nil
}

// Broadcast encodes the records once and enqueues the frame to every client.
func (h *Hub) Broadcast(records []*models.PredictionRecord) {
	events := make([]*models.PredictionEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, models.EventFrom(rec))
	}
	frame, err := json.Marshal(updateMessage{
		Type: "prediction_update",
		Data: events,
		At:   models.Now(),
	})
	if err != nil {
		h.logger.Error("ws frame encode failed", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- frame:
		default:
			// Queue full: the client cannot keep up.
			delete(h.clients, cl)
			close(cl.send)
		}
	}
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for cl := range h.clients {
		close(cl.send)
		delete(h.clients, cl)
	}
	return nil
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is noticing the close.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.remove(cl)
		cl.conn.Close()
	}()
	cl.conn.SetReadLimit(512)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}
