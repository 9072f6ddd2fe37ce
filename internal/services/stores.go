package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
)

// Stores are expected to return errors wrapping ErrNotFound, ErrConflict or
// ErrUnavailable.

type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type LikeStore interface {
	// InsertLikeIfAbsent stores (from, to) once. created is false when the
	// pair already existed; the stored record is returned either way.
	InsertLikeIfAbsent(ctx context.Context, from, to uuid.UUID) (like *models.Like, created bool, err error)
	DeleteLike(ctx context.Context, from, to uuid.UUID) (bool, error)
	LikeExists(ctx context.Context, from, to uuid.UUID) (bool, error)
	ListLikedUserIDs(ctx context.Context, from uuid.UUID) ([]uuid.UUID, error)
}

type MatchStore interface {
	// InsertMatchIfAbsent is an atomic conditional insert keyed by the
	// canonical pair. low must sort before high.
	InsertMatchIfAbsent(ctx context.Context, low, high uuid.UUID) (match *models.Match, created bool, err error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	GetMatchByPair(ctx context.Context, low, high uuid.UUID) (*models.Match, error)
	ListMatchesForUser(ctx context.Context, userID uuid.UUID) ([]models.Match, error)
	// DeleteMatch removes the match together with its messages.
	DeleteMatch(ctx context.Context, id uuid.UUID) error
}

type MessageStore interface {
	// SaveMessage assigns ID and CreatedAt.
	SaveMessage(ctx context.Context, message *models.Message) error
	// ListMessages returns the newest limit messages, oldest first.
	ListMessages(ctx context.Context, matchID uuid.UUID, limit int) ([]models.Message, error)
}

// Relay carries encoded server frames to the connections they target,
// on this instance or on every instance.
type Relay interface {
	PublishRoom(ctx context.Context, roomID uuid.UUID, frame []byte) error
	PublishUser(ctx context.Context, userID uuid.UUID, frame []byte) error
	PublishClose(ctx context.Context, roomID uuid.UUID, frame []byte) error
}
