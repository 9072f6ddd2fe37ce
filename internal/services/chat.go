package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/websocket"
)

const (
	DefaultMaxMessageLength = 2000
	DefaultHistoryLimit     = 200
)

// RoomRegistry is the in-memory membership side of chat, implemented by
// websocket.Hub.
type RoomRegistry interface {
	JoinRoom(client *websocket.Client, roomID uuid.UUID) error
	LeaveRoom(client *websocket.Client, roomID uuid.UUID)
}

type Sanitizer interface {
	Sanitize(s string) string
}

type ChatService struct {
	matches  MatchStore
	messages MessageStore
	rooms    RoomRegistry
	relay    Relay
	log      *zap.Logger

	sanitizer    Sanitizer
	maxLength    int
	historyLimit int

	clock *monotonicClock
}

type ChatDependencies struct {
	Matches  MatchStore
	Messages MessageStore
	Rooms    RoomRegistry
	Relay    Relay
	Log      *zap.Logger

	MaxMessageLength int
	HistoryLimit     int
}

func NewChatService(deps ChatDependencies) *ChatService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxLength := deps.MaxMessageLength
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ChatService{
		matches:      deps.Matches,
		messages:     deps.Messages,
		rooms:        deps.Rooms,
		relay:        deps.Relay,
		log:          log,
		sanitizer:    bluemonday.StrictPolicy(),
		maxLength:    maxLength,
		historyLimit: historyLimit,
		clock:        &monotonicClock{now: time.Now},
	}
}

func (s *ChatService) participantMatch(ctx context.Context, matchID, userID uuid.UUID) (*models.Match, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrUnauthorized)
	}
	return match, nil
}

// Join adds the connection to the room of matchID once its user is known to
// be a participant. The match is read again after joining so a concurrent
// unmatch cannot leave a room behind for a deleted match.
func (s *ChatService) Join(ctx context.Context, matchID uuid.UUID, client *websocket.Client) error {
	if _, err := s.participantMatch(ctx, matchID, client.UserID); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	if err := s.rooms.JoinRoom(client, matchID); err != nil {
		switch {
		case errors.Is(err, websocket.ErrRoomFull):
			return fmt.Errorf("join: %w: %v", ErrConflict, err)
		case errors.Is(err, websocket.ErrClientNotRegistered):
			return fmt.Errorf("join: %w: %v", ErrUnavailable, err)
		default:
			return fmt.Errorf("join: %w", err)
		}
	}

	if _, err := s.matches.GetMatch(ctx, matchID); err != nil {
		s.rooms.LeaveRoom(client, matchID)
		return fmt.Errorf("join: %w", err)
	}
	return nil
}

func (s *ChatService) Leave(matchID uuid.UUID, client *websocket.Client) {
	s.rooms.LeaveRoom(client, matchID)
}

// SendMessage persists the message and only then fans it out. Delivery
// problems are logged, never returned: success means the message is stored.
func (s *ChatService) SendMessage(ctx context.Context, matchID, senderID uuid.UUID, content string) (*models.Message, error) {
	if _, err := s.participantMatch(ctx, matchID, senderID); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	content, err := s.cleanContent(content)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	message := &models.Message{
		ID:        uuid.New(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.clock.next(),
	}
	if err := s.messages.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	frame, err := websocket.NewEvent(websocket.TypeNewMessage, &matchID, senderID, ChatMessageOf(message))
	if err != nil {
		s.log.Error("encode new_message", zap.String("message_id", message.ID.String()), zap.Error(err))
		return message, nil
	}
	if s.relay != nil {
		if err := s.relay.PublishRoom(ctx, matchID, frame); err != nil {
			s.log.Warn("message stored but not broadcast",
				zap.String("match_id", matchID.String()),
				zap.String("message_id", message.ID.String()),
				zap.Error(err))
		}
	}
	return message, nil
}

// History returns up to limit of the newest messages, oldest first. A
// non-positive limit uses the configured default.
func (s *ChatService) History(ctx context.Context, matchID, userID uuid.UUID, limit int) ([]models.Message, error) {
	if _, err := s.participantMatch(ctx, matchID, userID); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	messages, err := s.messages.ListMessages(ctx, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return messages, nil
}

// cleanContent trims content and checks it. Content is stored as sent:
// anything the sanitizer would strip is markup and is rejected.
func (s *ChatService) cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is empty", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return "", fmt.Errorf("%w: content exceeds %d characters", ErrInvalidArgument, s.maxLength)
	}
	if html.UnescapeString(s.sanitizer.Sanitize(content)) != html.UnescapeString(content) {
		return "", fmt.Errorf("%w: content must be plain text", ErrInvalidArgument)
	}
	return content, nil
}

// ChatMessageOf converts a stored message into its wire form.
func ChatMessageOf(m *models.Message) websocket.ChatMessage {
	return websocket.ChatMessage{
		ID:        m.ID,
		MatchID:   m.MatchID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// monotonicClock hands out strictly increasing timestamps at the
// microsecond precision postgres keeps, so createdAt order equals send order.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *monotonicClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
