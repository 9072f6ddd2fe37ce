package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"max=100"`
	Age      int    `json:"age" binding:"omitempty,gte=18,lte=120"`
	Bio      string `json:"bio" binding:"max=500"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Age       int       `json:"age,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PublicUser hides the email of other users.
func PublicUser(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Age:       u.Age,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
}

func PrivateUser(u *models.User) UserResponse {
	r := PublicUser(u)
	r.Email = u.Email
	return r
}
