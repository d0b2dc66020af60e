package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomMessage is the envelope carried on the rooms channel. Data is the
// event payload as already-encoded JSON.
type RoomMessage struct {
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	TsUnix int64           `json:"ts_unix"`
}

// RoomPubSub relays room events between API instances over one Redis
// channel.
type RoomPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewRoomPubSub(rdb *redis.Client) *RoomPubSub {
	return &RoomPubSub{
		rdb:     rdb,
		channel: ChannelRooms(),
	}
}

func (p *RoomPubSub) Publish(ctx context.Context, room, event string, payload any) error {
	const op = "redis.RoomPubSub.Publish"

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b, err := json.Marshal(RoomMessage{
		Room:   room,
		Event:  event,
		Data:   data,
		TsUnix: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscribe delivers every well-formed message to handler until ctx is
// done. ready, when not nil, is called once the subscription is confirmed.
func (p *RoomPubSub) Subscribe(ctx context.Context, ready func(), handler func(ctx context.Context, msg RoomMessage)) error {
	const op = "redis.RoomPubSub.Subscribe"

	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ready != nil {
		ready()
	}

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg RoomMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.Room != "" && msg.Event != "" {
				handler(ctx, msg)
			}
		}
	}
}
