package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/heartmatch/internal/handlers"
)

type Routes struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Likes     *handlers.LikeHandler
	Matches   *handlers.MatchHandler
	Messages  *handlers.HTTPMessageHandler
	WebSocket *handlers.WebSocketHandler

	RequireAuth   gin.HandlerFunc
	RequireWSAuth gin.HandlerFunc
}

func APIEndpoints(r *gin.Engine, h Routes) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.RequireAuth, h.Auth.Logout)
	}

	api := r.Group("/api/v1", h.RequireAuth)
	{
		api.GET("/me", h.Users.GetMe)
		api.GET("/users/:id", h.Users.GetUser)

		api.POST("/likes", h.Likes.Create)
		api.GET("/likes", h.Likes.List)
		api.DELETE("/likes/:userId", h.Likes.Delete)

		api.GET("/matches", h.Matches.List)
		api.GET("/matches/:id", h.Matches.Get)
		api.DELETE("/matches/:id", h.Matches.Delete)

		api.GET("/matches/:id/messages", h.Messages.GetMessages)
		api.POST("/matches/:id/messages", h.Messages.SendMessage)
	}

	r.GET("/ws", h.RequireWSAuth, h.WebSocket.HandleWebSocket)
}
