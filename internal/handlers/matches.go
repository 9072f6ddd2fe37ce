package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/handlers/dto"
	"github.com/thereayou/heartmatch/internal/services"
)

type MatchHandler struct {
	matches *services.MatchService
	log     *zap.Logger
}

func NewMatchHandler(matches *services.MatchService, log *zap.Logger) *MatchHandler {
	return &MatchHandler{matches: matches, log: log}
}

func (h *MatchHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	views, err := h.matches.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result := make([]*dto.MatchResponse, len(views))
	for i := range views {
		result[i] = dto.MatchView(&views[i])
	}
	c.JSON(http.StatusOK, gin.H{"matches": result})
}

func (h *MatchHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.matches.GetView(c.Request.Context(), matchID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MatchView(view))
}

// Delete unmatches. Messages of the match are removed with it.
func (h *MatchHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.matches.Unmatch(c.Request.Context(), matchID, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
