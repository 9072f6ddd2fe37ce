package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/heartmatch/internal/handlers/dto"
	"github.com/thereayou/heartmatch/internal/middleware"
	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
	"github.com/thereayou/heartmatch/pkg/auth"
)

// Accounts is the part of the user store registration and login need.
type Accounts interface {
	SaveUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandler struct {
	accounts   Accounts
	jwtManager *auth.JWTManager
	blacklist  auth.Blacklist
	log        *zap.Logger
}

func NewAuthHandler(accounts Accounts, jwtMgr *auth.JWTManager, blacklist auth.Blacklist, log *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, jwtManager: jwtMgr, blacklist: blacklist, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "error": "cannot hash password"})
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Name:         req.Name,
		Age:          req.Age,
		Bio:          req.Bio,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.accounts.SaveUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, services.ErrConflict) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"code": "CONFLICT", "error": "username or email already taken"})
			return
		}
		respondError(c, h.log, err)
		return
	}

	h.issueToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.accounts.FindUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			invalidCredentials(c)
			return
		}
		respondError(c, h.log, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		invalidCredentials(c)
		return
	}

	h.issueToken(c, http.StatusOK, user)
}

// Logout revokes the current token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	if token == "" {
		invalidCredentials(c)
		return
	}

	exp, err := h.jwtManager.Expiry(token)
	if err != nil {
		invalidCredentials(c)
		return
	}

	if h.blacklist != nil {
		if err := h.blacklist.Revoke(c.Request.Context(), token, time.Until(exp)); err != nil {
			h.log.Warn("revoke token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"code": "UNAVAILABLE", "error": "cannot revoke token"})
			return
		}
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) issueToken(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.jwtManager.Generate(user.ID)
	if err != nil {
		h.log.Error("generate token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "error": "could not generate token"})
		return
	}

	c.JSON(status, dto.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.PrivateUser(user),
	})
}

func invalidCredentials(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": "invalid credentials"})
}
