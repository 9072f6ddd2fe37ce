package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/handlers/dto"
	"github.com/thereayou/heartmatch/internal/services"
)

type HTTPMessageHandler struct {
	chat *services.ChatService
	log  *zap.Logger
}

func NewHTTPMessageHandler(chat *services.ChatService, log *zap.Logger) *HTTPMessageHandler {
	return &HTTPMessageHandler{chat: chat, log: log}
}

// GetMessages returns the conversation history, oldest first.
func (h *HTTPMessageHandler) GetMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	messages, err := h.chat.History(c.Request.Context(), matchID, userID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": dto.Messages(messages)})
}

// SendMessage is the HTTP alternative to a websocket "message" frame. The
// broadcast to the room is the same.
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	message, err := h.chat.SendMessage(c.Request.Context(), matchID, userID, req.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, dto.Message(message))
}
