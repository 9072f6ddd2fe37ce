package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
)

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	MatchID   uuid.UUID `json:"match_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func Message(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		MatchID:   m.MatchID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func Messages(ms []models.Message) []MessageResponse {
	out := make([]MessageResponse, len(ms))
	for i := range ms {
		out[i] = Message(&ms[i])
	}
	return out
}

type LikeRequest struct {
	ToUserID string `json:"to_user_id" binding:"required,uuid"`
}

type LikeResponse struct {
	ID         uuid.UUID `json:"id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type RecordLikeResponse struct {
	Like    LikeResponse   `json:"like"`
	Match   *MatchResponse `json:"match"`
	IsMatch bool           `json:"is_match"`
	// NewMatch is true only for the like that created the match.
	NewMatch bool `json:"new_match"`
}

type MatchResponse struct {
	ID         uuid.UUID     `json:"id"`
	UserLowID  uuid.UUID     `json:"user_low_id"`
	UserHighID uuid.UUID     `json:"user_high_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Other      *UserResponse `json:"other_user,omitempty"`
}

func Match(m *models.Match) *MatchResponse {
	if m == nil {
		return nil
	}
	return &MatchResponse{
		ID:         m.ID,
		UserLowID:  m.UserLowID,
		UserHighID: m.UserHighID,
		CreatedAt:  m.CreatedAt,
	}
}

func MatchView(v *services.MatchView) *MatchResponse {
	r := Match(v.Match)
	if v.Other != nil {
		other := PublicUser(v.Other)
		r.Other = &other
	}
	return r
}

func RecordLike(res *services.LikeResult) RecordLikeResponse {
	return RecordLikeResponse{
		Like: LikeResponse{
			ID:         res.Like.ID,
			FromUserID: res.Like.FromUserID,
			ToUserID:   res.Like.ToUserID,
			CreatedAt:  res.Like.CreatedAt,
		},
		Match:    Match(res.Match),
		IsMatch:  res.Match != nil,
		NewMatch: res.MatchCreated,
	}
}
