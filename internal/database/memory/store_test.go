package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
)

func seed(t *testing.T, s *Store, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, s.SaveUser(context.Background(), &models.User{
			ID:       ids[i],
			Username: ids[i].String(),
			Email:    ids[i].String() + "@example.com",
		}))
	}
	return ids
}

func TestInsertMatchIfAbsentIsAtomic(t *testing.T) {
	s := New()
	ids := seed(t, s, 2)
	low, high := models.CanonicalPair(ids[0], ids[1])

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		seen    = map[uuid.UUID]struct{}{}
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok, err := s.InsertMatchIfAbsent(context.Background(), low, high)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			seen[m.ID] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, s.CountMatches(ids[0], ids[1]))

	_, _, err := s.InsertMatchIfAbsent(context.Background(), high, low)
	assert.ErrorIs(t, err, services.ErrInvalidArgument)
}

func TestInsertLikeIfAbsent(t *testing.T) {
	s := New()
	ids := seed(t, s, 2)
	ctx := context.Background()

	first, created, err := s.InsertLikeIfAbsent(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.InsertLikeIfAbsent(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = s.InsertLikeIfAbsent(ctx, ids[0], uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestListMessagesOrderAndLimit(t *testing.T) {
	s := New()
	ids := seed(t, s, 2)
	ctx := context.Background()
	low, high := models.CanonicalPair(ids[0], ids[1])
	m, _, err := s.InsertMatchIfAbsent(ctx, low, high)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []int{2, 0, 1} {
		require.NoError(t, s.SaveMessage(ctx, &models.Message{
			MatchID:   m.ID,
			SenderID:  ids[0],
			Content:   base.Add(time.Duration(offset) * time.Second).Format(time.RFC3339),
			CreatedAt: base.Add(time.Duration(offset) * time.Second),
		}))
	}

	all, err := s.ListMessages(ctx, m.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}

	newest, err := s.ListMessages(ctx, m.ID, 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, base.Add(time.Second), newest[0].CreatedAt)
	assert.Equal(t, base.Add(2*time.Second), newest[1].CreatedAt)

	err = s.SaveMessage(ctx, &models.Message{MatchID: uuid.New(), SenderID: ids[0], Content: "x"})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestDeleteMatchRemovesMessages(t *testing.T) {
	s := New()
	ids := seed(t, s, 2)
	ctx := context.Background()
	low, high := models.CanonicalPair(ids[0], ids[1])
	m, _, err := s.InsertMatchIfAbsent(ctx, low, high)
	require.NoError(t, err)
	require.NoError(t, s.SaveMessage(ctx, &models.Message{MatchID: m.ID, SenderID: ids[0], Content: "hi"}))

	require.NoError(t, s.DeleteMatch(ctx, m.ID))

	msgs, err := s.ListMessages(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = s.GetMatchByPair(ctx, low, high)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMatch(ctx, m.ID), services.ErrNotFound)
}

func TestFailWrites(t *testing.T) {
	s := New()
	ids := seed(t, s, 2)
	s.FailWrites(errors.New("disk full"))

	_, _, err := s.InsertLikeIfAbsent(context.Background(), ids[0], ids[1])
	assert.ErrorIs(t, err, services.ErrUnavailable)

	ok, err := s.UserExists(context.Background(), ids[0])
	require.NoError(t, err)
	assert.True(t, ok)

	s.FailWrites(nil)
	_, created, err := s.InsertLikeIfAbsent(context.Background(), ids[0], ids[1])
	require.NoError(t, err)
	assert.True(t, created)
}
