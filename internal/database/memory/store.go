// Package memory is an in-process store with the same insert-if-absent
// guarantees as the postgres store. Each conditional insert runs under the
// store lock, which plays the role of the unique index.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
)

type likeKey struct {
	from uuid.UUID
	to   uuid.UUID
}

type pairKey struct {
	low  uuid.UUID
	high uuid.UUID
}

type Store struct {
	mu sync.RWMutex

	users    map[uuid.UUID]*models.User
	likes    map[likeKey]*models.Like
	matches  map[uuid.UUID]*models.Match
	pairs    map[pairKey]uuid.UUID
	messages map[uuid.UUID][]models.Message

	// failWith, when set, is returned by every write. Used to simulate an
	// unavailable backend.
	failWith error
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		likes:    make(map[likeKey]*models.Like),
		matches:  make(map[uuid.UUID]*models.Match),
		pairs:    make(map[pairKey]uuid.UUID),
		messages: make(map[uuid.UUID][]models.Message),
	}
}

// FailWrites makes subsequent writes fail with err wrapped as unavailable.
// Passing nil restores normal behaviour.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) writeErr(op string) error {
	if s.failWith == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, services.ErrUnavailable, s.failWith)
}

func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr("save user"); err != nil {
		return err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return fmt.Errorf("save user: %w: user exists", services.ErrConflict)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := *user
	s.users[u.ID] = &u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", services.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[id]
	return ok, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find user by email: %w", services.ErrNotFound)
}

func (s *Store) InsertLikeIfAbsent(_ context.Context, from, to uuid.UUID) (*models.Like, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr("insert like"); err != nil {
		return nil, false, err
	}
	key := likeKey{from: from, to: to}
	if existing, ok := s.likes[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	if _, ok := s.users[to]; !ok {
		return nil, false, fmt.Errorf("insert like: %w: target user", services.ErrNotFound)
	}

	like := &models.Like{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		CreatedAt:  time.Now().UTC(),
	}
	s.likes[key] = like
	cp := *like
	return &cp, true, nil
}

func (s *Store) DeleteLike(_ context.Context, from, to uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr("delete like"); err != nil {
		return false, err
	}
	key := likeKey{from: from, to: to}
	if _, ok := s.likes[key]; !ok {
		return false, nil
	}
	delete(s.likes, key)
	return true, nil
}

func (s *Store) LikeExists(_ context.Context, from, to uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.likes[likeKey{from: from, to: to}]
	return ok, nil
}

func (s *Store) ListLikedUserIDs(_ context.Context, from uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	likes := make([]*models.Like, 0)
	for k, l := range s.likes {
		if k.from == from {
			likes = append(likes, l)
		}
	}
	sort.Slice(likes, func(i, j int) bool { return likes[i].CreatedAt.Before(likes[j].CreatedAt) })

	ids := make([]uuid.UUID, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.ToUserID)
	}
	return ids, nil
}

func (s *Store) InsertMatchIfAbsent(_ context.Context, low, high uuid.UUID) (*models.Match, bool, error) {
	if low.String() >= high.String() {
		return nil, false, fmt.Errorf("insert match: %w: pair is not canonical", services.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr("insert match"); err != nil {
		return nil, false, err
	}
	key := pairKey{low: low, high: high}
	if id, ok := s.pairs[key]; ok {
		cp := *s.matches[id]
		return &cp, false, nil
	}

	match := &models.Match{
		ID:         uuid.New(),
		UserLowID:  low,
		UserHighID: high,
		CreatedAt:  time.Now().UTC(),
	}
	s.matches[match.ID] = match
	s.pairs[key] = match.ID
	cp := *match
	return &cp, true, nil
}

func (s *Store) GetMatch(_ context.Context, id uuid.UUID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("get match: %w", services.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *Store) GetMatchByPair(_ context.Context, low, high uuid.UUID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[pairKey{low: low, high: high}]
	if !ok {
		return nil, fmt.Errorf("get match by pair: %w", services.ErrNotFound)
	}
	cp := *s.matches[id]
	return &cp, nil
}

func (s *Store) ListMatchesForUser(_ context.Context, userID uuid.UUID) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]models.Match, 0)
	for _, m := range s.matches {
		if m.HasUser(userID) {
			matches = append(matches, *m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches, nil
}

// CountMatches reports how many match records exist for the unordered pair.
func (s *Store) CountMatches(a, b uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.matches {
		if m.HasUser(a) && m.HasUser(b) {
			n++
		}
	}
	return n
}

func (s *Store) DeleteMatch(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr("delete match"); err != nil {
		return err
	}
	m, ok := s.matches[id]
	if !ok {
		return fmt.Errorf("delete match: %w", services.ErrNotFound)
	}
	delete(s.pairs, pairKey{low: m.UserLowID, high: m.UserHighID})
	delete(s.matches, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) SaveMessage(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr("save message"); err != nil {
		return err
	}
	if _, ok := s.matches[message.MatchID]; !ok {
		return fmt.Errorf("save message: %w: match", services.ErrNotFound)
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	s.messages[message.MatchID] = append(s.messages[message.MatchID], *message)
	return nil
}

func (s *Store) ListMessages(_ context.Context, matchID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Message, len(s.messages[matchID]))
	copy(all, s.messages[matchID])
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
