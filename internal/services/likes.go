package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/websocket"
)

type LikeResult struct {
	Like *models.Like
	// Match is set when the pair is mutual, whether or not this call created it.
	Match *models.Match
	// MatchCreated is true only for the call whose insert created the match.
	MatchCreated bool
}

type LikeService struct {
	users   UserDirectory
	likes   LikeStore
	matches MatchStore
	relay   Relay
	log     *zap.Logger
}

type LikeDependencies struct {
	Users   UserDirectory
	Likes   LikeStore
	Matches MatchStore
	// Relay is optional. Without it no match_created frames are sent.
	Relay Relay
	Log   *zap.Logger
}

func NewLikeService(deps LikeDependencies) *LikeService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &LikeService{
		users:   deps.Users,
		likes:   deps.Likes,
		matches: deps.Matches,
		relay:   deps.Relay,
		log:     log,
	}
}

// RecordLike stores the directional like and, when the reverse like exists,
// makes sure the single match for the pair exists. Both steps are
// insert-if-absent, so concurrent calls for the two directions converge on
// one match without a lock held across them.
func (s *LikeService) RecordLike(ctx context.Context, from, to uuid.UUID) (*LikeResult, error) {
	if from == uuid.Nil || to == uuid.Nil {
		return nil, fmt.Errorf("record like: %w: user id is required", ErrInvalidArgument)
	}
	if from == to {
		return nil, fmt.Errorf("record like: %w: cannot like yourself", ErrInvalidArgument)
	}

	ok, err := s.users.UserExists(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("record like: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("record like: %w: user %s", ErrNotFound, to)
	}

	like, _, err := s.likes.InsertLikeIfAbsent(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("record like: %w", err)
	}
	result := &LikeResult{Like: like}

	mutual, err := s.likes.LikeExists(ctx, to, from)
	if err != nil {
		return nil, fmt.Errorf("record like: reverse lookup: %w", err)
	}
	if !mutual {
		return result, nil
	}

	low, high := models.CanonicalPair(from, to)
	match, created, err := s.matches.InsertMatchIfAbsent(ctx, low, high)
	if err != nil {
		return nil, fmt.Errorf("record like: create match: %w", err)
	}
	result.Match = match
	result.MatchCreated = created

	if created {
		s.log.Info("match created",
			zap.String("match_id", match.ID.String()),
			zap.String("user_low_id", low.String()),
			zap.String("user_high_id", high.String()))
		s.notifyMatch(ctx, match)
	}
	return result, nil
}

// RemoveLike deletes the directional like. An existing match is kept.
func (s *LikeService) RemoveLike(ctx context.Context, from, to uuid.UUID) error {
	if from == uuid.Nil || to == uuid.Nil {
		return fmt.Errorf("remove like: %w: user id is required", ErrInvalidArgument)
	}
	if _, err := s.likes.DeleteLike(ctx, from, to); err != nil {
		return fmt.Errorf("remove like: %w", err)
	}
	return nil
}

// LikesFrom returns the users userID currently likes.
func (s *LikeService) LikesFrom(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.likes.ListLikedUserIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("likes from: %w", err)
	}
	return ids, nil
}

func (s *LikeService) notifyMatch(ctx context.Context, match *models.Match) {
	if s.relay == nil {
		return
	}

	frame, err := websocket.NewEvent(websocket.TypeMatchCreated, &match.ID, uuid.Nil, matchPayload(match))
	if err != nil {
		s.log.Error("encode match_created", zap.Error(err))
		return
	}
	for _, userID := range []uuid.UUID{match.UserLowID, match.UserHighID} {
		if err := s.relay.PublishUser(ctx, userID, frame); err != nil {
			s.log.Warn("match notification not delivered",
				zap.String("match_id", match.ID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}
}

func matchPayload(match *models.Match) websocket.MatchPayload {
	return websocket.MatchPayload{
		MatchID:    match.ID,
		UserLowID:  match.UserLowID,
		UserHighID: match.UserHighID,
		CreatedAt:  match.CreatedAt,
	}
}
