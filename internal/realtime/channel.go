package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/events"
	"github.com/spec-kit/ticket-board/internal/observability"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

// State describes the connection as shown to the user.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateGaveUp       State = "gave-up"
	StateClosed       State = "closed"
)

// Default reconnection policy.
const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 3 * time.Second
)

var errClientClosed = errors.New("io client disconnect")

// Transport opens authenticated connections.
type Transport interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is one live connection. Receive blocks until the next envelope;
// Close unblocks it and must be safe to call more than once.
type Conn interface {
	ID() string
	Receive(ctx context.Context) (events.Envelope, error)
	Close() error
}

// Gate reports whether the session still allows a connection.
type Gate interface {
	Valid() bool
	Token() string
}

// Options tunes the reconnection policy.
type Options struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Channel keeps one real-time connection alive and publishes what it
// receives to a dispatcher.
type Channel struct {
	transport  Transport
	gate       Gate
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	opts       Options
	wait       func(ctx context.Context, d time.Duration) bool

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel constructs a channel. Zero options fall back to the defaults.
func NewChannel(transport Transport, gate Gate, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, opts Options) *Channel {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = DefaultReconnectAttempts
	}
	if opts.ReconnectDelay < 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		transport:  transport,
		gate:       gate,
		dispatcher: dispatcher,
		logger:     logger.Named("realtime"),
		metrics:    metrics,
		opts:       opts,
		wait:       sleepContext,
		state:      StateDisconnected,
	}
}

// Start launches the connection loop. It refuses to run without a valid
// session and is a no-op when the loop is already running.
func (c *Channel) Start(ctx context.Context) error {
	if !c.gate.Valid() {
		return apperrors.NewSessionInvalid("channel start")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateConnecting
	go c.run(loopCtx, c.done)
	return nil
}

// Close tears the connection down and waits for the loop to exit.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.setState(StateClosed)
}

// Done is closed when the loop exits, either on Close or after giving up.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = s
}

// run connects, pumps, and reconnects. attempts counts consecutive failed
// reconnection attempts and resets after every successful connect.
func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	connectedOnce := false
	attempts := 0
	for {
		if !c.gate.Valid() {
			c.logger.Info("session no longer valid, channel stopping")
			return
		}

		conn, err := c.transport.Dial(ctx, c.gate.Token())
		if err == nil {
			attempts = 0
			c.setState(StateConnected)
			c.logger.Info("connected", zap.String("connection_id", conn.ID()), zap.Bool("reconnect", connectedOnce))
			c.lifecycle(ctx, events.EventConnect, events.ConnectPayload{ConnectionID: conn.ID(), Reconnect: connectedOnce})
			connectedOnce = true

			err = c.pump(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				c.lifecycle(context.Background(), events.EventDisconnect, events.DisconnectPayload{Reason: errClientClosed.Error()})
				return
			}
			c.logger.Warn("disconnected", zap.Error(err))
			c.lifecycle(ctx, events.EventDisconnect, events.DisconnectPayload{Reason: errString(err)})
		} else {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("connect failed", zap.Int("attempt", attempts), zap.Error(err))
			c.lifecycle(ctx, events.EventConnectError, events.DisconnectPayload{Reason: errString(err), Attempt: attempts})
		}

		if attempts >= c.opts.ReconnectAttempts {
			c.setState(StateGaveUp)
			c.logger.Warn("giving up on realtime updates", zap.Int("attempts", attempts))
			c.lifecycle(ctx, events.EventReconnectFailed, events.DisconnectPayload{Attempt: attempts})
			return
		}
		attempts++
		c.setState(StateReconnecting)
		if !c.wait(ctx, c.opts.ReconnectDelay) {
			return
		}
	}
}

// pump delivers envelopes until the connection fails or ctx ends.
func (c *Channel) pump(ctx context.Context, conn Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		env, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		switch env.Type {
		case events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketDeleted:
		default:
			c.logger.Debug("ignoring unknown event", zap.String("type", string(env.Type)))
			continue
		}
		c.metrics.RecordEvent(string(env.Type))
		if err := c.dispatcher.Publish(ctx, events.Event{
			ID:         uuid.NewString(),
			Type:       env.Type,
			Data:       env.Data,
			ReceivedAt: time.Now(),
		}); err != nil {
			c.logger.Warn("event handler failed", zap.String("type", string(env.Type)), zap.Error(err))
		}
	}
}

func (c *Channel) lifecycle(ctx context.Context, t events.EventType, payload interface{}) {
	c.metrics.RecordEvent(string(t))
	_ = c.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       t,
		ReceivedAt: time.Now(),
		Payload:    payload,
	})
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
