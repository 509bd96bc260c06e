package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"academy/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the API
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is a realtime notification about a department matrix.
type Event struct {
	Type         string             `json:"type"`
	DepartmentID uuid.UUID          `json:"department_id"`
	Status       model.MatrixStatus `json:"status,omitempty"`
	PositionID   *uuid.UUID         `json:"position_id,omitempty"`
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub          *Hub
	Conn         *websocket.Conn
	Send         chan []byte
	Role         string
	DepartmentID *uuid.UUID
}

// wants reports whether the client should receive events of a department.
// Heads of department and trainees only follow their own department.
func (c *Client) wants(departmentID uuid.UUID) bool {
	switch c.Role {
	case model.RoleHeadOfDepartment, model.RoleTrainee, model.RoleStudent:
		return c.DepartmentID != nil && *c.DepartmentID == departmentID
	default:
		return true
	}
}

type envelope struct {
	departmentID uuid.UUID
	payload      []byte
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	log        logrus.FieldLogger
	mu         sync.Mutex
}

// NewHub initializes a new WS Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log.WithField("component", "ws"),
	}
}

// Run starts the core dispatch loop for WebSocket events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.WithField("role", client.Role).Debug("client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("client disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.departmentID) {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for delivery. It never blocks the caller; events are
// dropped when the queue is full.
func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode event")
		return
	}
	select {
	case h.broadcast <- envelope{departmentID: ev.DepartmentID, payload: payload}:
	default:
		h.log.WithField("type", ev.Type).Warn("broadcast queue full, event dropped")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the connection until the peer goes away
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.WithError(err).Debug("unexpected close")
			}
			break
		}
	}
}

// ServeWs handles websocket requests from the peer
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		hub.log.Debug("connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		hub.log.WithError(err).Debug("connection rejected: invalid token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, _ := claims["role"].(string)
	if role == "" {
		hub.log.Debug("connection rejected: token without role")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var deptID *uuid.UUID
	if raw, _ := claims["department_id"].(string); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			deptID = &id
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.WithError(err).Warn("upgrade failed")
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), Role: role, DepartmentID: deptID}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
