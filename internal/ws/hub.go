package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mindcare/backend/internal/models"
	"mindcare/backend/pkg/errors"
	"mindcare/backend/pkg/logger"
	pkgws "mindcare/backend/pkg/ws"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// A frame carries at most one chat message
	maxMessageSize = 32 * 1024
)

var (
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// MessageSender stores a user message and produces the assistant reply
type MessageSender interface {
	SendMessage(ctx context.Context, userID uint, sessionID, content string) (*models.ChatExchange, error)
}

// ErrorMapper turns a service error into the error returned to the client
type ErrorMapper func(error) *errors.AppError

// Hub tracks open chat connections
type Hub struct {
	sender   MessageSender
	mapError ErrorMapper
	log      *logger.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

// Client is one WebSocket connection bound to a chat session
type Client struct {
	ID        string
	UserID    uint
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	hub       *Hub
	done      chan struct{} // closed when WritePump exits
	log       *logger.Logger
}

func NewHub(sender MessageSender, mapError ErrorMapper, log *logger.Logger) *Hub {
	return &Hub{
		sender:   sender,
		mapError: mapError,
		log:      log.WithComponent("chat_ws"),
		clients:  make(map[*Client]struct{}),
	}
}

// ActiveConnections returns the number of open connections
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.Conn.Close()
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Serve upgrades the request and runs the connection until either side closes it.
// The caller has already checked that sessionID belongs to userID.
func (h *Hub) Serve(c *gin.Context, userID uint, sessionID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 16),
		hub:       h,
		done:      make(chan struct{}),
	}
	client.log = h.log.WithFields("client_id", client.ID, "session_id", sessionID)

	if !h.register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	client.log.Info("Chat connection opened")

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

// ReadPump handles frames one at a time so replies keep the order of questions.
// It is the only writer to Send and closes it on exit.
func (c *Client) ReadPump(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		cancel()
		c.hub.unregister(c)
		close(c.Send)
		c.log.Info("Chat connection closed")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected close", "error", err.Error())
			}
			return
		}

		var frame pkgws.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("INVALID_FRAME", "Frames must be JSON objects with a content field")
			continue
		}
		c.handle(ctx, frame)
		// Generating a reply can outlast pongWait; the peer was not expected to
		// ping while it waited.
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *Client) handle(ctx context.Context, frame pkgws.ClientFrame) {
	exchange, err := c.hub.sender.SendMessage(ctx, c.UserID, c.SessionID, frame.Content)
	if err != nil {
		appErr := c.hub.mapError(err)
		if appErr.StatusCode >= http.StatusInternalServerError {
			c.log.LogError(err, "Chat message failed")
		}
		c.sendError(appErr.Code, appErr.Message)
		return
	}
	c.send(exchange)
}

func (c *Client) sendError(code, message string) {
	c.send(pkgws.ErrorFrame{Error: pkgws.ErrorBody{Code: code, Message: message}})
}

func (c *Client) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.LogError(err, "Error marshaling frame")
		return
	}
	select {
	case c.Send <- data:
	case <-c.done:
	}
}

// WritePump forwards Send to the connection and keeps it alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
