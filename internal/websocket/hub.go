package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRoomUsers is the number of distinct identities a conversation room
// admits: the two participants of the match.
const maxRoomUsers = 2

// Hub is the room registry of one server instance. Rooms are keyed by match
// id and exist only while at least one connection is joined.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Connections by user id. A user may have several tabs open.
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Connections by room (match id).
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	mu sync.RWMutex

	pingInterval time.Duration
	log          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:      make(map[uuid.UUID]*Client),
		userClients:  make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:        make(map[uuid.UUID]map[uuid.UUID]*Client),
		pingInterval: 30 * time.Second,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run sends application-level pings until Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop closes every connection.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			client.Conn.Close()
		}
		delete(h.clients, id)
	}
	h.userClients = make(map[uuid.UUID]map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.Hub = h
	h.clients[client.ID] = client

	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	h.log.Debug("client registered",
		zap.String("client_id", client.ID.String()),
		zap.String("user_id", client.UserID.String()))
}

// Unregister removes the client from every room and closes its queue.
// Calling it twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, roomID := range client.GetRooms() {
		h.removeFromRoomUnsafe(client, roomID)
	}

	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	delete(h.clients, client.ID)
	client.closeSend()

	h.log.Debug("client unregistered",
		zap.String("client_id", client.ID.String()),
		zap.String("user_id", client.UserID.String()))
}

// JoinRoom adds a registered client to the room of matchID. Joining a room
// the client is already in only refreshes the member list it receives.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return ErrClientNotRegistered
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]*Client)
	}

	if _, member := room[client.ID]; !member {
		users := roomUserSet(room)
		if _, known := users[client.UserID]; !known && len(users) >= maxRoomUsers {
			return ErrRoomFull
		}

		room[client.ID] = client
		h.rooms[roomID] = room
		client.addRoom(roomID)

		if data, err := NewEvent(TypeRoomJoin, &roomID, client.UserID, nil); err == nil {
			h.broadcastToRoomExcept(roomID, data, client.ID)
		}
	}

	h.sendRoomUsers(client, roomID)
	return nil
}

// LeaveRoom is idempotent.
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomUnsafe(client, roomID)
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room[client.ID]; !ok {
		return
	}

	delete(room, client.ID)
	client.removeRoom(roomID)

	if len(room) == 0 {
		delete(h.rooms, roomID)
		return
	}

	if data, err := NewEvent(TypeRoomLeave, &roomID, client.UserID, nil); err == nil {
		h.broadcastToRoomExcept(roomID, data, client.ID)
	}
}

// CloseRoom sends message to every member and then drops the room.
func (h *Hub) CloseRoom(roomID uuid.UUID, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for _, client := range room {
		if message != nil {
			h.deliver(client, message)
		}
		client.removeRoom(roomID)
	}
	delete(h.rooms, roomID)
}

// SendToUser delivers to every connection of the user.
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.userClients[userID] {
		if h.deliver(client, message) {
			delivered++
		}
	}
	return delivered
}

// SendToRoom delivers to every connection joined to the room and returns
// how many queues accepted the message. Slow clients are skipped.
func (h *Hub) SendToRoom(roomID uuid.UUID, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.broadcastToRoomExcept(roomID, message, uuid.Nil)
}

func (h *Hub) broadcastToRoomExcept(roomID uuid.UUID, message []byte, excludeID uuid.UUID) int {
	delivered := 0
	for _, client := range h.rooms[roomID] {
		if client.ID == excludeID {
			continue
		}
		if h.deliver(client, message) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) deliver(client *Client, message []byte) bool {
	if err := client.enqueue(message); err != nil {
		h.log.Warn("dropping message for client",
			zap.String("client_id", client.ID.String()),
			zap.String("user_id", client.UserID.String()),
			zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) sendRoomUsers(client *Client, roomID uuid.UUID) {
	users := make([]uuid.UUID, 0, maxRoomUsers)
	for userID := range roomUserSet(h.rooms[roomID]) {
		users = append(users, userID)
	}

	if data, err := NewEvent(TypeRoomUsers, &roomID, client.UserID, users); err == nil {
		h.deliver(client, data)
	}
}

func roomUserSet(room map[uuid.UUID]*Client) map[uuid.UUID]struct{} {
	users := make(map[uuid.UUID]struct{}, maxRoomUsers)
	for _, c := range room {
		users[c.UserID] = struct{}{}
	}
	return users
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := NewEvent(TypePing, nil, uuid.Nil, nil)
	if err != nil {
		return
	}
	for _, client := range h.clients {
		_ = client.enqueue(data)
	}
}

// GetRoomUsers returns the distinct users currently joined to the room.
func (h *Hub) GetRoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, maxRoomUsers)
	for userID := range roomUserSet(h.rooms[roomID]) {
		users = append(users, userID)
	}
	return users
}

// RoomSize returns the number of connections joined to the room.
func (h *Hub) RoomSize(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}

// HasRoom reports whether the registry currently holds an entry for roomID.
func (h *Hub) HasRoom(roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[roomID]
	return ok
}

func (h *Hub) GetOnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}
