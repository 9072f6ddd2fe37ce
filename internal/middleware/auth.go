package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/pkg/auth"
)

const (
	UserIDKey = "userID"
	TokenKey  = "token"
)

type tokenExtractor func(r *http.Request) (string, error)

// AuthMiddleware accepts a bearer token from the Authorization header.
func AuthMiddleware(jwtManager *auth.JWTManager, blacklist auth.Blacklist, log *zap.Logger) gin.HandlerFunc {
	return authenticate(jwtManager, blacklist, log, auth.ExtractTokenFromHeader)
}

// WSAuthMiddleware also accepts ?token= since browsers cannot set headers
// on a websocket handshake.
func WSAuthMiddleware(jwtManager *auth.JWTManager, blacklist auth.Blacklist, log *zap.Logger) gin.HandlerFunc {
	return authenticate(jwtManager, blacklist, log, auth.ExtractToken)
}

func authenticate(jwtManager *auth.JWTManager, blacklist auth.Blacklist, log *zap.Logger, extract tokenExtractor) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token, err := extract(c.Request)
		if err != nil {
			abortUnauthorized(c, "missing or invalid token")
			return
		}

		if blacklist != nil {
			revoked, err := blacklist.IsRevoked(c.Request.Context(), token)
			if err != nil {
				log.Warn("token blacklist unavailable", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE", "error": "cannot verify token"})
				return
			}
			if revoked {
				abortUnauthorized(c, "token is revoked")
				return
			}
		}

		userID, err := jwtManager.UserID(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": msg})
}

// CurrentUserID returns the identity set by the auth middleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
