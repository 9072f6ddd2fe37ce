package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/services"
	"github.com/thereayou/heartmatch/internal/websocket"
)

const socketOpTimeout = 10 * time.Second

// MessageHandler serves room_join, room_leave and message frames.
type MessageHandler struct {
	chat *services.ChatService
	log  *zap.Logger
}

func NewMessageHandler(chat *services.ChatService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{chat: chat, log: log}
}

func (h *MessageHandler) HandleMessage(client *websocket.Client, msg *websocket.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), socketOpTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case websocket.TypeRoomJoin:
		err = h.chat.Join(ctx, *msg.RoomID, client)

	case websocket.TypeRoomLeave:
		h.chat.Leave(*msg.RoomID, client)

	case websocket.TypeMessage:
		err = h.handleTextMessage(ctx, client, msg)

	default:
		h.log.Debug("unhandled message type", zap.String("type", string(msg.Type)))
		return nil
	}

	if err != nil {
		client.SendError(services.ErrorCode(err), err.Error(), msg.Type)
	}
	return err
}

func (h *MessageHandler) handleTextMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.SendPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return services.ErrInvalidArgument
	}
	if err := websocket.Validate(&payload); err != nil {
		return services.ErrInvalidArgument
	}

	// The broadcast reaches the sender's joined connections too, so there
	// is no separate acknowledgement frame.
	_, err := h.chat.SendMessage(ctx, *msg.RoomID, client.UserID, payload.Content)
	return err
}
