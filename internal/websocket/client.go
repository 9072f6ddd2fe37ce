package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// ClientMessageHandler processes validated frames of type room_join,
// room_leave and message.
type ClientMessageHandler interface {
	HandleMessage(client *Client, msg *Message) error
}

type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	rooms map[uuid.UUID]bool
	mu    sync.RWMutex

	sendMu sync.Mutex
	closed bool

	limiter *rate.Limiter
	log     *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	c := &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendQueueSize),
		Hub:    hub,
		rooms:  make(map[uuid.UUID]bool),
		log:    zap.NewNop(),
	}
	if hub != nil {
		c.log = hub.log
	}
	return c
}

// SetMessageLimiter caps chat sends to requests per window.
func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	if requests <= 0 || window <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

func (c *Client) allowSend() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// ReadPump decodes frames until the connection fails, then unregisters the
// client.
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed",
					zap.String("client_id", c.ID.String()),
					zap.Error(err))
			}
			return
		}

		c.dispatch(raw, handler)
	}
}

func (c *Client) dispatch(raw []byte, handler ClientMessageHandler) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.SendError("INVALID_ARGUMENT", ErrInvalidMessage.Error(), "")
		return
	}
	if err := Validate(&msg); err != nil {
		c.SendError("INVALID_ARGUMENT", err.Error(), msg.Type)
		return
	}

	msg.UserID = c.UserID

	switch msg.Type {
	case TypePing, TypePong:
		return
	case TypeMessage:
		if !c.allowSend() {
			c.SendError("RATE_LIMITED", "too many messages, slow down", msg.Type)
			return
		}
	}

	if handler == nil {
		return
	}
	if err := handler.HandleMessage(c, &msg); err != nil {
		c.log.Debug("message handling failed",
			zap.String("client_id", c.ID.String()),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
	}
}

// WritePump drains the send queue onto the connection and keeps it alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue never blocks.
func (c *Client) enqueue(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) SendMessage(msgType MessageType, roomID *uuid.UUID, data interface{}) error {
	payload, err := NewEvent(msgType, roomID, c.UserID, data)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Client) SendError(code, errorMsg string, refType MessageType) {
	err := c.SendMessage(TypeError, nil, ErrorPayload{
		Code:    code,
		Error:   errorMsg,
		RefType: refType,
	})
	if err != nil && !errors.Is(err, ErrClientClosed) {
		c.log.Warn("failed to queue error frame",
			zap.String("client_id", c.ID.String()),
			zap.Error(err))
	}
}

func (c *Client) addRoom(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomID] = true
}

func (c *Client) removeRoom(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

func (c *Client) IsInRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

func (c *Client) GetRooms() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]uuid.UUID, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}
