package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	ws "github.com/thereayou/heartmatch/internal/websocket"
)

type WebSocketOptions struct {
	// AllowedOrigins restricts the Origin header of the handshake. Empty
	// means any origin.
	AllowedOrigins []string
	MessageRate    int
	MessageWindow  time.Duration
}

type WebSocketHandler struct {
	hub            *ws.Hub
	messageHandler ws.ClientMessageHandler
	upgrader       websocket.Upgrader
	opts           WebSocketOptions
	log            *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, messageHandler ws.ClientMessageHandler, opts WebSocketOptions, log *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		messageHandler: messageHandler,
		opts:           opts,
		log:            log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	client.SetMessageLimiter(h.opts.MessageRate, h.opts.MessageWindow)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.messageHandler)
}
