// Package broker moves server frames from the instance that produced them
// to the hubs holding the target connections.
package broker

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink is the local delivery side, implemented by websocket.Hub.
type Sink interface {
	SendToRoom(roomID uuid.UUID, message []byte) int
	SendToUser(userID uuid.UUID, message []byte) int
	CloseRoom(roomID uuid.UUID, message []byte)
}

// LocalRelay delivers straight into the hub of this process.
type LocalRelay struct {
	sink Sink
}

func NewLocalRelay(sink Sink) *LocalRelay {
	return &LocalRelay{sink: sink}
}

func (r *LocalRelay) PublishRoom(_ context.Context, roomID uuid.UUID, frame []byte) error {
	r.sink.SendToRoom(roomID, frame)
	return nil
}

func (r *LocalRelay) PublishUser(_ context.Context, userID uuid.UUID, frame []byte) error {
	r.sink.SendToUser(userID, frame)
	return nil
}

func (r *LocalRelay) PublishClose(_ context.Context, roomID uuid.UUID, frame []byte) error {
	r.sink.CloseRoom(roomID, frame)
	return nil
}

// RedisRelay publishes frames on redis so that every instance, this one
// included, delivers them to its own connections. Run must be started for
// anything to arrive locally.
type RedisRelay struct {
	client *redis.Client
	sink   Sink
	log    *zap.Logger
}

func NewRedisRelay(client *redis.Client, sink Sink, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{client: client, sink: sink, log: log}
}

func (r *RedisRelay) PublishRoom(ctx context.Context, roomID uuid.UUID, frame []byte) error {
	return r.publish(ctx, RoomChannel(roomID), frame)
}

func (r *RedisRelay) PublishUser(ctx context.Context, userID uuid.UUID, frame []byte) error {
	return r.publish(ctx, UserChannel(userID), frame)
}

func (r *RedisRelay) PublishClose(ctx context.Context, roomID uuid.UUID, frame []byte) error {
	return r.publish(ctx, CloseChannel(roomID), frame)
}

func (r *RedisRelay) publish(ctx context.Context, channel string, frame []byte) error {
	if err := r.client.Publish(ctx, channel, frame).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens the pattern subscription and waits for redis to confirm
// it. The returned ready subscription is consumed by Run.
func (r *RedisRelay) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub := r.client.PSubscribe(ctx, subscribePatterns()...)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", ChannelPrefix, err)
	}
	return sub, nil
}

// Run forwards subscribed frames to the sink until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) dispatch(channel string, frame []byte) {
	kind, id, ok := parseChannel(channel)
	if !ok {
		r.log.Warn("ignoring frame on unknown channel", zap.String("channel", channel))
		return
	}

	switch kind {
	case kindRoom:
		r.sink.SendToRoom(id, frame)
	case kindUser:
		r.sink.SendToUser(id, frame)
	case kindClose:
		r.sink.CloseRoom(id, frame)
	}
}
