package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/websocket"
)

type MatchService struct {
	matches MatchStore
	users   UserDirectory
	relay   Relay
	log     *zap.Logger
}

type MatchDependencies struct {
	Matches MatchStore
	Users   UserDirectory
	Relay   Relay
	Log     *zap.Logger
}

// MatchView is a match seen from one participant.
type MatchView struct {
	Match *models.Match
	Other *models.User
}

func NewMatchService(deps MatchDependencies) *MatchService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &MatchService{
		matches: deps.Matches,
		users:   deps.Users,
		relay:   deps.Relay,
		log:     log,
	}
}

func (s *MatchService) ListForUser(ctx context.Context, userID uuid.UUID) ([]MatchView, error) {
	matches, err := s.matches.ListMatchesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	views := make([]MatchView, 0, len(matches))
	for i := range matches {
		view, err := s.view(ctx, &matches[i], userID)
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns the match if userID is one of its participants.
func (s *MatchService) Get(ctx context.Context, matchID, userID uuid.UUID) (*models.Match, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrUnauthorized)
	}
	return match, nil
}

func (s *MatchService) GetView(ctx context.Context, matchID, userID uuid.UUID) (*MatchView, error) {
	match, err := s.Get(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, match, userID)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Unmatch deletes the match with its messages and closes the live room.
func (s *MatchService) Unmatch(ctx context.Context, matchID, userID uuid.UUID) error {
	match, err := s.Get(ctx, matchID, userID)
	if err != nil {
		return fmt.Errorf("unmatch: %w", err)
	}
	if err := s.matches.DeleteMatch(ctx, match.ID); err != nil {
		return fmt.Errorf("unmatch: %w", err)
	}

	s.log.Info("match removed",
		zap.String("match_id", match.ID.String()),
		zap.String("by_user_id", userID.String()))

	if s.relay == nil {
		return nil
	}
	frame, err := websocket.NewEvent(websocket.TypeMatchRemoved, &match.ID, userID, matchPayload(match))
	if err != nil {
		s.log.Error("encode match_removed", zap.Error(err))
		return nil
	}
	if err := s.relay.PublishClose(ctx, match.ID, frame); err != nil {
		s.log.Warn("room close not delivered", zap.String("match_id", match.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *MatchService) view(ctx context.Context, match *models.Match, userID uuid.UUID) (MatchView, error) {
	view := MatchView{Match: match}
	if s.users == nil {
		return view, nil
	}
	otherID, ok := match.OtherUser(userID)
	if !ok {
		return view, fmt.Errorf("match %s: %w", match.ID, ErrUnauthorized)
	}
	other, err := s.users.GetUser(ctx, otherID)
	if err != nil {
		return view, err
	}
	view.Other = other
	return view, nil
}
