package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/heartmatch/internal/database/memory"
	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
)

type publishCall struct {
	target uuid.UUID
	frame  []byte
}

type recordingRelay struct {
	mu     sync.Mutex
	rooms  []publishCall
	users  []publishCall
	closes []publishCall
	err    error
}

func (r *recordingRelay) PublishRoom(_ context.Context, roomID uuid.UUID, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, publishCall{roomID, frame})
	return r.err
}

func (r *recordingRelay) PublishUser(_ context.Context, userID uuid.UUID, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, publishCall{userID, frame})
	return r.err
}

func (r *recordingRelay) PublishClose(_ context.Context, roomID uuid.UUID, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, publishCall{roomID, frame})
	return r.err
}

func seedUsers(t *testing.T, store *memory.Store, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		err := store.SaveUser(context.Background(), &models.User{
			ID:       id,
			Username: id.String()[:8],
			Email:    id.String()[:8] + "@example.com",
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func newLikeService(store *memory.Store, relay services.Relay) *services.LikeService {
	return services.NewLikeService(services.LikeDependencies{
		Users:   store,
		Likes:   store,
		Matches: store,
		Relay:   relay,
	})
}

func TestRecordLikeWithoutReciprocationCreatesNoMatch(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	svc := newLikeService(store, nil)

	res, err := svc.RecordLike(context.Background(), ids[0], ids[1])
	require.NoError(t, err)
	assert.NotNil(t, res.Like)
	assert.Nil(t, res.Match)
	assert.False(t, res.MatchCreated)
	assert.Zero(t, store.CountMatches(ids[0], ids[1]))
}

func TestRecordLikeMutualCreatesCanonicalMatch(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	relay := &recordingRelay{}
	svc := newLikeService(store, relay)
	ctx := context.Background()

	_, err := svc.RecordLike(ctx, ids[1], ids[0])
	require.NoError(t, err)
	res, err := svc.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)

	require.NotNil(t, res.Match)
	assert.True(t, res.MatchCreated)
	low, high := models.CanonicalPair(ids[0], ids[1])
	assert.Equal(t, low, res.Match.UserLowID)
	assert.Equal(t, high, res.Match.UserHighID)
	assert.Less(t, res.Match.UserLowID.String(), res.Match.UserHighID.String())

	// both participants are told
	require.Len(t, relay.users, 2)
	assert.ElementsMatch(t, []uuid.UUID{low, high}, []uuid.UUID{relay.users[0].target, relay.users[1].target})
}

func TestRecordLikeIsIdempotent(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	svc := newLikeService(store, nil)
	ctx := context.Background()

	first, err := svc.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)
	second, err := svc.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, first.Like.ID, second.Like.ID)

	_, err = svc.RecordLike(ctx, ids[1], ids[0])
	require.NoError(t, err)
	again, err := svc.RecordLike(ctx, ids[1], ids[0])
	require.NoError(t, err)
	require.NotNil(t, again.Match)
	assert.False(t, again.MatchCreated)
	assert.Equal(t, 1, store.CountMatches(ids[0], ids[1]))
}

func TestRecordLikeRejectsBadInput(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 1)
	svc := newLikeService(store, nil)
	ctx := context.Background()

	_, err := svc.RecordLike(ctx, ids[0], ids[0])
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = svc.RecordLike(ctx, ids[0], uuid.Nil)
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = svc.RecordLike(ctx, ids[0], uuid.New())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRecordLikeSurfacesUnavailableStore(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	svc := newLikeService(store, nil)
	store.FailWrites(errors.New("connection refused"))

	_, err := svc.RecordLike(context.Background(), ids[0], ids[1])
	assert.ErrorIs(t, err, services.ErrUnavailable)
	assert.Equal(t, "UNAVAILABLE", services.ErrorCode(err))
}

func TestConcurrentMutualLikesCreateExactlyOneMatch(t *testing.T) {
	for round := 0; round < 50; round++ {
		store := memory.New()
		ids := seedUsers(t, store, 2)
		svc := newLikeService(store, nil)
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make([]*services.LikeResult, 2)
		errs := make([]error, 2)
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i], errs[i] = svc.RecordLike(ctx, ids[i], ids[1-i])
			}(i)
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		require.Equal(t, 1, store.CountMatches(ids[0], ids[1]), "round %d", round)

		created := 0
		for _, r := range results {
			if r.MatchCreated {
				created++
			}
		}
		assert.Equal(t, 1, created, "round %d", round)
		assert.True(t, results[0].Match != nil || results[1].Match != nil)
	}
}

func TestRemoveLikeKeepsMatch(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	svc := newLikeService(store, nil)
	ctx := context.Background()

	_, err := svc.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)
	_, err = svc.RecordLike(ctx, ids[1], ids[0])
	require.NoError(t, err)

	require.NoError(t, svc.RemoveLike(ctx, ids[0], ids[1]))
	// removing twice is fine
	require.NoError(t, svc.RemoveLike(ctx, ids[0], ids[1]))

	liked, err := svc.LikesFrom(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, liked)
	assert.Equal(t, 1, store.CountMatches(ids[0], ids[1]))
}

func TestLikeAfterUnlikeDoesNotMatch(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	svc := newLikeService(store, nil)
	ctx := context.Background()

	_, err := svc.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)
	require.NoError(t, svc.RemoveLike(ctx, ids[0], ids[1]))

	res, err := svc.RecordLike(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Nil(t, res.Match)
	assert.Zero(t, store.CountMatches(ids[0], ids[1]))
}

func TestLikesFrom(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 3)
	svc := newLikeService(store, nil)
	ctx := context.Background()

	_, err := svc.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)
	_, err = svc.RecordLike(ctx, ids[0], ids[2])
	require.NoError(t, err)

	liked, err := svc.LikesFrom(ctx, ids[0])
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{ids[1], ids[2]}, liked)
}
