package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/heartmatch/internal/broker"
	"github.com/thereayou/heartmatch/internal/database/memory"
	"github.com/thereayou/heartmatch/internal/models"
	"github.com/thereayou/heartmatch/internal/services"
	"github.com/thereayou/heartmatch/internal/websocket"
)

type chatFixture struct {
	store   *memory.Store
	hub     *websocket.Hub
	likes   *services.LikeService
	matches *services.MatchService
	chat    *services.ChatService
}

func newChatFixture() *chatFixture {
	store := memory.New()
	hub := websocket.NewHub(nil)
	relay := broker.NewLocalRelay(hub)
	return &chatFixture{
		store: store,
		hub:   hub,
		likes: services.NewLikeService(services.LikeDependencies{
			Users: store, Likes: store, Matches: store, Relay: relay,
		}),
		matches: services.NewMatchService(services.MatchDependencies{
			Matches: store, Users: store, Relay: relay,
		}),
		chat: services.NewChatService(services.ChatDependencies{
			Matches: store, Messages: store, Rooms: hub, Relay: relay,
		}),
	}
}

func (f *chatFixture) match(t *testing.T, a, b uuid.UUID) *models.Match {
	t.Helper()
	ctx := context.Background()
	_, err := f.likes.RecordLike(ctx, a, b)
	require.NoError(t, err)
	res, err := f.likes.RecordLike(ctx, b, a)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	return res.Match
}

func (f *chatFixture) connect(userID uuid.UUID) *websocket.Client {
	c := websocket.NewClient(f.hub, nil, userID)
	f.hub.Register(c)
	return c
}

func received(c *websocket.Client, msgType websocket.MessageType) []websocket.Message {
	var out []websocket.Message
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return out
			}
			var msg websocket.Message
			if err := json.Unmarshal(raw, &msg); err == nil && msg.Type == msgType {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func chatMessages(t *testing.T, c *websocket.Client) []websocket.ChatMessage {
	t.Helper()
	var out []websocket.ChatMessage
	for _, m := range received(c, websocket.TypeNewMessage) {
		var cm websocket.ChatMessage
		require.NoError(t, json.Unmarshal(m.Data, &cm))
		out = append(out, cm)
	}
	return out
}

func TestJoinRequiresParticipant(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 3)
	m := f.match(t, ids[0], ids[1])
	ctx := context.Background()

	err := f.chat.Join(ctx, m.ID, f.connect(ids[2]))
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	err = f.chat.Join(ctx, uuid.New(), f.connect(ids[0]))
	assert.ErrorIs(t, err, services.ErrNotFound)

	require.NoError(t, f.chat.Join(ctx, m.ID, f.connect(ids[0])))
	assert.True(t, f.hub.HasRoom(m.ID))
}

func TestSendMessageValidation(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 3)
	m := f.match(t, ids[0], ids[1])
	ctx := context.Background()

	_, err := f.chat.SendMessage(ctx, m.ID, ids[2], "hi")
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = f.chat.SendMessage(ctx, m.ID, ids[0], "   ")
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = f.chat.SendMessage(ctx, m.ID, ids[0], "<script></script>")
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = f.chat.SendMessage(ctx, m.ID, ids[0], strings.Repeat("a", services.DefaultMaxMessageLength+1))
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = f.chat.SendMessage(ctx, uuid.New(), ids[0], "hi")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestSendMessageKeepsPlainTextAsSent(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 2)
	m := f.match(t, ids[0], ids[1])
	ctx := context.Background()

	for _, content := range []string{
		"a < b && c > d",
		"R&amp;D",
		"i <3 you",
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		`she said "ok" & left`,
	} {
		msg, err := f.chat.SendMessage(ctx, m.ID, ids[0], "  "+content+" ")
		require.NoError(t, err, content)
		assert.Equal(t, content, msg.Content)
	}

	history, err := f.chat.History(ctx, m.ID, ids[1], 0)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "R&amp;D", history[1].Content)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", history[3].Content)
}

func TestSendMessageRejectsMarkup(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 2)
	m := f.match(t, ids[0], ids[1])
	ctx := context.Background()

	peer := f.connect(ids[1])
	require.NoError(t, f.chat.Join(ctx, m.ID, peer))

	for _, content := range []string{
		"<b>hey</b> you",
		"see <you> later",
		"if a<b and c>d",
		`<img src=x onerror="alert(1)">`,
	} {
		_, err := f.chat.SendMessage(ctx, m.ID, ids[0], content)
		assert.ErrorIs(t, err, services.ErrInvalidArgument, content)
	}

	assert.Empty(t, chatMessages(t, peer))
	history, err := f.chat.History(ctx, m.ID, ids[0], 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

// unmatchingRooms completes an unmatch right before the hub join, the window
// between the participant check and the room insert.
type unmatchingRooms struct {
	*websocket.Hub
	before func()
}

func (r *unmatchingRooms) JoinRoom(client *websocket.Client, roomID uuid.UUID) error {
	if r.before != nil {
		r.before()
	}
	return r.Hub.JoinRoom(client, roomID)
}

func TestJoinRacingUnmatchLeavesNoRoom(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 2)
	m := f.match(t, ids[0], ids[1])
	ctx := context.Background()

	rooms := &unmatchingRooms{Hub: f.hub}
	rooms.before = func() {
		require.NoError(t, f.matches.Unmatch(ctx, m.ID, ids[1]))
	}
	chat := services.NewChatService(services.ChatDependencies{
		Matches:  f.store,
		Messages: f.store,
		Rooms:    rooms,
		Relay:    broker.NewLocalRelay(f.hub),
	})

	client := f.connect(ids[0])
	err := chat.Join(ctx, m.ID, client)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.False(t, f.hub.HasRoom(m.ID))
	assert.False(t, client.IsInRoom(m.ID))
}

func TestSendMessageBroadcastsToRoomOnly(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 4)
	ctx := context.Background()
	roomA := f.match(t, ids[0], ids[1])
	roomB := f.match(t, ids[2], ids[3])

	senderTab := f.connect(ids[0])
	senderOtherTab := f.connect(ids[0])
	peer := f.connect(ids[1])
	elsewhere := f.connect(ids[2])
	require.NoError(t, f.chat.Join(ctx, roomA.ID, senderTab))
	require.NoError(t, f.chat.Join(ctx, roomA.ID, senderOtherTab))
	require.NoError(t, f.chat.Join(ctx, roomA.ID, peer))
	require.NoError(t, f.chat.Join(ctx, roomB.ID, elsewhere))

	msg, err := f.chat.SendMessage(ctx, roomA.ID, ids[0], "hi")
	require.NoError(t, err)

	for _, c := range []*websocket.Client{senderTab, senderOtherTab, peer} {
		got := chatMessages(t, c)
		require.Len(t, got, 1)
		assert.Equal(t, msg.ID, got[0].ID)
		assert.Equal(t, "hi", got[0].Content)
		assert.Equal(t, ids[0], got[0].SenderID)
	}
	assert.Empty(t, chatMessages(t, elsewhere))
}

func TestSendMessageNotBroadcastWhenPersistenceFails(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 2)
	ctx := context.Background()
	m := f.match(t, ids[0], ids[1])

	peer := f.connect(ids[1])
	require.NoError(t, f.chat.Join(ctx, m.ID, peer))
	f.store.FailWrites(errors.New("disk full"))

	_, err := f.chat.SendMessage(ctx, m.ID, ids[0], "hi")
	assert.ErrorIs(t, err, services.ErrUnavailable)
	assert.Empty(t, chatMessages(t, peer))
}

func TestSendMessageSucceedsWhenRelayFails(t *testing.T) {
	store := memory.New()
	ids := seedUsers(t, store, 2)
	ctx := context.Background()
	likes := newLikeService(store, nil)
	_, err := likes.RecordLike(ctx, ids[0], ids[1])
	require.NoError(t, err)
	res, err := likes.RecordLike(ctx, ids[1], ids[0])
	require.NoError(t, err)

	chat := services.NewChatService(services.ChatDependencies{
		Matches:  store,
		Messages: store,
		Rooms:    websocket.NewHub(nil),
		Relay:    &recordingRelay{err: errors.New("redis down")},
	})
	msg, err := chat.SendMessage(ctx, res.Match.ID, ids[0], "hi")
	require.NoError(t, err)

	history, err := chat.History(ctx, res.Match.ID, ids[1], 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestSenderOrderIsPreserved(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 2)
	ctx := context.Background()
	m := f.match(t, ids[0], ids[1])

	peer := f.connect(ids[1])
	require.NoError(t, f.chat.Join(ctx, m.ID, peer))

	const n = 100
	for i := 0; i < n; i++ {
		_, err := f.chat.SendMessage(ctx, m.ID, ids[0], fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	history, err := f.chat.History(ctx, m.ID, ids[0], 0)
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Content)
		if i > 0 {
			assert.True(t, msg.CreatedAt.After(history[i-1].CreatedAt))
		}
	}

	live := chatMessages(t, peer)
	require.Len(t, live, n)
	for i, msg := range live {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Content)
	}
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 3)
	ctx := context.Background()
	m := f.match(t, ids[0], ids[1])

	for i := 0; i < 5; i++ {
		_, err := f.chat.SendMessage(ctx, m.ID, ids[i%2], fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	history, err := f.chat.History(ctx, m.ID, ids[1], 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "m3", history[0].Content)
	assert.Equal(t, "m4", history[1].Content)

	_, err = f.chat.History(ctx, m.ID, ids[2], 0)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestMatchConversationScenario(t *testing.T) {
	f := newChatFixture()
	ids := seedUsers(t, f.store, 2)
	u1, u2 := ids[0], ids[1]
	ctx := context.Background()

	u1Conn := f.connect(u1)
	u2Conn := f.connect(u2)

	res, err := f.likes.RecordLike(ctx, u1, u2)
	require.NoError(t, err)
	assert.Nil(t, res.Match)

	res, err = f.likes.RecordLike(ctx, u2, u1)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	low, high := models.CanonicalPair(u1, u2)
	assert.Equal(t, low, res.Match.UserLowID)
	assert.Equal(t, high, res.Match.UserHighID)
	matchID := res.Match.ID

	assert.Len(t, received(u1Conn, websocket.TypeMatchCreated), 1)
	assert.Len(t, received(u2Conn, websocket.TypeMatchCreated), 1)

	require.NoError(t, f.chat.Join(ctx, matchID, u1Conn))
	require.NoError(t, f.chat.Join(ctx, matchID, u2Conn))

	_, err = f.chat.SendMessage(ctx, matchID, u1, "hi")
	require.NoError(t, err)
	got := chatMessages(t, u2Conn)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, u1, got[0].SenderID)

	_, err = f.chat.SendMessage(ctx, matchID, u2, "hey")
	require.NoError(t, err)
	got = chatMessages(t, u1Conn)
	require.Len(t, got, 2)
	assert.Equal(t, "hey", got[1].Content)
	assert.Equal(t, u2, got[1].SenderID)

	require.NoError(t, f.matches.Unmatch(ctx, matchID, u1))
	assert.False(t, f.hub.HasRoom(matchID))
	assert.Len(t, received(u2Conn, websocket.TypeMatchRemoved), 1)

	messages, err := f.store.ListMessages(ctx, matchID, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	err = f.chat.Join(ctx, matchID, u1Conn)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
