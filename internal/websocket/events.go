package websocket

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type MessageType string

const (
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	// Client to server.
	TypeRoomJoin  MessageType = "room_join"
	TypeRoomLeave MessageType = "room_leave"
	TypeMessage   MessageType = "message"

	// Server to client.
	TypeNewMessage   MessageType = "new_message"
	TypeRoomUsers    MessageType = "room_users"
	TypeMatchCreated MessageType = "match_created"
	TypeMatchRemoved MessageType = "match_removed"
	TypeError        MessageType = "error"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Type      MessageType     `json:"type" validate:"required,oneof=ping pong room_join room_leave message"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty" validate:"required_unless=Type ping Type pong"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SendPayload is the data of a client "message" frame.
type SendPayload struct {
	Content string `json:"content" validate:"required"`
}

// ChatMessage is the data of a "new_message" frame.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	MatchID   uuid.UUID `json:"match_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchPayload is the data of "match_created" and "match_removed" frames.
type MatchPayload struct {
	MatchID    uuid.UUID `json:"match_id"`
	UserLowID  uuid.UUID `json:"user_low_id"`
	UserHighID uuid.UUID `json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ErrorPayload struct {
	Code    string      `json:"code"`
	Error   string      `json:"error"`
	RefType MessageType `json:"ref_type,omitempty"`
}

var validate = validator.New()

// Validate checks a decoded frame or payload against its struct tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// NewEvent encodes a server frame.
func NewEvent(msgType MessageType, roomID *uuid.UUID, userID uuid.UUID, data any) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = jsonData
	}

	return json.Marshal(msg)
}
