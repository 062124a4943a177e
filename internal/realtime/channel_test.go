package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/ticket-board/internal/events"
	"github.com/spec-kit/ticket-board/internal/observability"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

type fakeGate struct {
	valid bool
	token string
}

func (g fakeGate) Valid() bool   { return g.valid }
func (g fakeGate) Token() string { return g.token }

type fakeConn struct {
	id        string
	msgs      chan events.Envelope
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     id,
		msgs:   make(chan events.Envelope, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Receive(ctx context.Context) (events.Envelope, error) {
	select {
	case env := <-c.msgs:
		return env, nil
	case err := <-c.fail:
		return events.Envelope{}, err
	case <-c.closed:
		return events.Envelope{}, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// scriptedTransport answers the n-th dial with script(n).
type scriptedTransport struct {
	mu     sync.Mutex
	dials  int
	tokens []string
	script func(n int) (Conn, error)
}

func (t *scriptedTransport) Dial(_ context.Context, token string) (Conn, error) {
	t.mu.Lock()
	t.dials++
	n := t.dials
	t.tokens = append(t.tokens, token)
	t.mu.Unlock()
	return t.script(n)
}

func (t *scriptedTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handler(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) count(t events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) ofType(t events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestChannel(transport Transport, gate Gate) (*Channel, *eventLog, *[]time.Duration) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	log := &eventLog{}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketDeleted,
		events.EventConnect, events.EventConnectError, events.EventDisconnect, events.EventReconnectFailed,
	} {
		dispatcher.Subscribe(et, log.handler)
	}

	ch := NewChannel(transport, gate, dispatcher, nil, observability.NewMetrics(), Options{
		ReconnectAttempts: DefaultReconnectAttempts,
		ReconnectDelay:    DefaultReconnectDelay,
	})
	var mu sync.Mutex
	waits := &[]time.Duration{}
	ch.wait = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return ctx.Err() == nil
	}
	return ch, log, waits
}

func waitDone(t *testing.T, ch *Channel) {
	t.Helper()
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel loop did not stop")
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestGivesUpAfterFiveFailedReconnects(t *testing.T) {
	transport := &scriptedTransport{script: func(n int) (Conn, error) {
		if n == 1 {
			conn := newFakeConn("first")
			conn.fail <- errors.New("transport close")
			return conn, nil
		}
		return nil, errors.New("connection refused")
	}}
	ch, log, waits := newTestChannel(transport, fakeGate{valid: true, token: "tok"})

	if err := ch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, ch)

	if got := transport.count(); got != 6 {
		t.Fatalf("dials = %d, want 1 initial + 5 reconnects", got)
	}
	if ch.State() != StateGaveUp {
		t.Errorf("state = %s, want %s", ch.State(), StateGaveUp)
	}
	if got := log.count(events.EventConnectError); got != 5 {
		t.Errorf("connect_error events = %d, want 5", got)
	}
	if got := log.count(events.EventReconnectFailed); got != 1 {
		t.Errorf("reconnect_failed events = %d, want 1", got)
	}
	if len(*waits) != 5 {
		t.Fatalf("waits = %d, want 5", len(*waits))
	}
	for _, d := range *waits {
		if d != 3*time.Second {
			t.Errorf("wait = %v, want 3s", d)
		}
	}
	for _, tok := range transport.tokens {
		if tok != "tok" {
			t.Errorf("dialed with token %q", tok)
		}
	}
}

func TestInitialConnectFailureIsBounded(t *testing.T) {
	transport := &scriptedTransport{script: func(int) (Conn, error) {
		return nil, errors.New("dial tcp: refused")
	}}
	ch, _, _ := newTestChannel(transport, fakeGate{valid: true, token: "tok"})
	_ = ch.Start(context.Background())
	waitDone(t, ch)

	if got := transport.count(); got != 6 {
		t.Fatalf("dials = %d, want 6", got)
	}
}

func TestSuccessfulReconnectResetsAttempts(t *testing.T) {
	var mu sync.Mutex
	var last *fakeConn
	transport := &scriptedTransport{script: func(n int) (Conn, error) {
		conn := newFakeConn("c")
		if n <= 8 {
			conn.fail <- errors.New("ping timeout")
		}
		mu.Lock()
		last = conn
		mu.Unlock()
		return conn, nil
	}}
	ch, log, _ := newTestChannel(transport, fakeGate{valid: true, token: "tok"})
	_ = ch.Start(context.Background())

	eventually(t, func() bool { return transport.count() == 9 && ch.State() == StateConnected })

	connects := log.ofType(events.EventConnect)
	if len(connects) != 9 {
		t.Fatalf("connect events = %d", len(connects))
	}
	if connects[0].Payload.(events.ConnectPayload).Reconnect {
		t.Error("first connect is not a reconnect")
	}
	if !connects[1].Payload.(events.ConnectPayload).Reconnect {
		t.Error("second connect should be flagged as reconnect")
	}

	ch.Close()
	if ch.State() != StateClosed {
		t.Errorf("state = %s", ch.State())
	}
	mu.Lock()
	defer mu.Unlock()
	select {
	case <-last.closed:
	default:
		t.Error("live connection should be closed on teardown")
	}
}

func TestEventsArePublished(t *testing.T) {
	conn := newFakeConn("c1")
	transport := &scriptedTransport{script: func(int) (Conn, error) { return conn, nil }}
	ch, log, _ := newTestChannel(transport, fakeGate{valid: true, token: "tok"})
	_ = ch.Start(context.Background())
	defer ch.Close()

	conn.msgs <- events.Envelope{Type: "pong", Data: json.RawMessage(`{}`)}
	conn.msgs <- events.Envelope{Type: events.EventTicketCreated, Data: json.RawMessage(`{"id":1}`)}
	conn.msgs <- events.Envelope{Type: events.EventTicketDeleted, Data: json.RawMessage(`{"id":1}`)}

	eventually(t, func() bool { return log.count(events.EventTicketDeleted) == 1 })
	created := log.ofType(events.EventTicketCreated)
	if len(created) != 1 || string(created[0].Data) != `{"id":1}` {
		t.Fatalf("created events = %+v", created)
	}
	if created[0].ID == "" || created[0].ReceivedAt.IsZero() {
		t.Error("events should carry an id and receive time")
	}
	if ch.metrics.EventCount("pong") != 0 {
		t.Error("unknown events must not be counted")
	}
}

func TestCloseStopsBlockedConnection(t *testing.T) {
	conn := newFakeConn("c1")
	transport := &scriptedTransport{script: func(int) (Conn, error) { return conn, nil }}
	ch, log, _ := newTestChannel(transport, fakeGate{valid: true, token: "tok"})
	_ = ch.Start(context.Background())
	eventually(t, func() bool { return ch.State() == StateConnected })

	ch.Close()

	disconnects := log.ofType(events.EventDisconnect)
	if len(disconnects) != 1 {
		t.Fatalf("disconnect events = %d", len(disconnects))
	}
	if reason := disconnects[0].Payload.(events.DisconnectPayload).Reason; reason != "io client disconnect" {
		t.Errorf("reason = %q", reason)
	}
	if transport.count() != 1 {
		t.Error("teardown must not trigger a reconnect")
	}
}

func TestStartRequiresValidSession(t *testing.T) {
	transport := &scriptedTransport{script: func(int) (Conn, error) { return newFakeConn("x"), nil }}
	ch, _, _ := newTestChannel(transport, fakeGate{valid: false})

	err := ch.Start(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeSessionInvalid) {
		t.Fatalf("Start = %v", err)
	}
	if transport.count() != 0 {
		t.Error("no connection may be opened without a session")
	}
	ch.Close()
}
