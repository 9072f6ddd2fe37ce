package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/services"
)

var statusByCode = map[string]int{
	"INVALID_ARGUMENT": http.StatusBadRequest,
	"UNAUTHORIZED":     http.StatusForbidden,
	"NOT_FOUND":        http.StatusNotFound,
	"CONFLICT":         http.StatusConflict,
	"UNAVAILABLE":      http.StatusServiceUnavailable,
}

// respondError writes the service error. Internal and unavailable errors
// are logged and their details withheld from the client.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	code := services.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
		msg = http.StatusText(status)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "error": msg})
}
