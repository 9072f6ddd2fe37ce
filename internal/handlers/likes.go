package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/handlers/dto"
	"github.com/thereayou/heartmatch/internal/middleware"
	"github.com/thereayou/heartmatch/internal/services"
)

type LikeHandler struct {
	likes *services.LikeService
	log   *zap.Logger
}

func NewLikeHandler(likes *services.LikeService, log *zap.Logger) *LikeHandler {
	return &LikeHandler{likes: likes, log: log}
}

// Create records a like. The response carries the match when the like
// completed a mutual pair.
func (h *LikeHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		badRequest(c, "invalid to_user_id")
		return
	}

	res, err := h.likes.RecordLike(c.Request.Context(), userID, toUserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if res.MatchCreated {
		status = http.StatusCreated
	}
	c.JSON(status, dto.RecordLike(res))
}

func (h *LikeHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	toUserID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	if err := h.likes.RemoveLike(c.Request.Context(), userID, toUserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LikeHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ids, err := h.likes.LikesFrom(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_ids": ids})
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": "unauthorized"})
		return uuid.Nil, false
	}
	return userID, true
}
