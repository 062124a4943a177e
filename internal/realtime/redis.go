package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-board/internal/events"
)

// RedisTransport receives ticket events from a Redis pub/sub channel. The
// Redis connection authenticates with its own credentials; the session
// token only gates whether a subscription may be opened.
type RedisTransport struct {
	client  *redis.Client
	channel string
}

// NewRedisTransport subscribes to channel on client.
func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{client: client, channel: channel}
}

// Dial implements Transport.
func (t *RedisTransport) Dial(ctx context.Context, token string) (Conn, error) {
	if token == "" {
		return nil, errors.New("redis transport: no session token")
	}
	sub := t.client.Subscribe(ctx, t.channel)
	// Wait for the subscription confirmation so connect errors surface here.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", t.channel, err)
	}
	return &redisConn{id: uuid.NewString(), sub: sub}, nil
}

type redisConn struct {
	id        string
	sub       *redis.PubSub
	closeOnce sync.Once
	closeErr  error
}

func (c *redisConn) ID() string { return c.id }

func (c *redisConn) Receive(ctx context.Context) (events.Envelope, error) {
	for {
		msg, err := c.sub.ReceiveMessage(ctx)
		if err != nil {
			return events.Envelope{}, err
		}
		var env events.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
			continue
		}
		return env, nil
	}
}

func (c *redisConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sub.Close()
	})
	return c.closeErr
}
