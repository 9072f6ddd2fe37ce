package broker

import (
	"strings"

	"github.com/google/uuid"
)

// Channel layout used on redis. Every instance subscribes to all three
// patterns and hands frames to its local hub.
var (
	ChannelPrefix = "heartmatch"
	roomChannel   = ChannelPrefix + ":room:"
	userChannel   = ChannelPrefix + ":user:"
	closeChannel  = ChannelPrefix + ":close:"
)

type channelKind int

const (
	kindUnknown channelKind = iota
	kindRoom
	kindUser
	kindClose
)

func RoomChannel(roomID uuid.UUID) string { return roomChannel + roomID.String() }
func UserChannel(userID uuid.UUID) string { return userChannel + userID.String() }
func CloseChannel(roomID uuid.UUID) string { return closeChannel + roomID.String() }

func subscribePatterns() []string {
	return []string{roomChannel + "*", userChannel + "*", closeChannel + "*"}
}

func parseChannel(channel string) (channelKind, uuid.UUID, bool) {
	var kind channelKind
	var rest string
	switch {
	case strings.HasPrefix(channel, roomChannel):
		kind, rest = kindRoom, strings.TrimPrefix(channel, roomChannel)
	case strings.HasPrefix(channel, userChannel):
		kind, rest = kindUser, strings.TrimPrefix(channel, userChannel)
	case strings.HasPrefix(channel, closeChannel):
		kind, rest = kindClose, strings.TrimPrefix(channel, closeChannel)
	default:
		return kindUnknown, uuid.Nil, false
	}

	id, err := uuid.Parse(rest)
	if err != nil {
		return kindUnknown, uuid.Nil, false
	}
	return kind, id, true
}
