package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-board/internal/events"
)

func TestRedisTransportReceivesPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	transport := NewRedisTransport(client, "board:events")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := transport.Dial(ctx, "tok")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	mr.Publish("board:events", `garbage`)
	mr.Publish("board:events", `{"type":"ticketDeleted","data":{"id":"9"}}`)

	env, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if env.Type != events.EventTicketDeleted || string(env.Data) != `{"id":"9"}` {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestRedisTransportNeedsToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if _, err := NewRedisTransport(client, "board:events").Dial(context.Background(), ""); err == nil {
		t.Fatal("dial without a token should fail")
	}
}
