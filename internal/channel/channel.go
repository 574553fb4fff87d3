// ABOUTME: ReconnectingChannel owning at most one push connection per conversation.
// ABOUTME: Capped exponential backoff; after max attempts it degrades to polling only.

package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenshop/support-chat/internal/transcript"
)

const (
	// DefaultMaxAttempts is how many reconnects are tried before the
	// channel gives up for the rest of the conversation.
	DefaultMaxAttempts = 5

	defaultBaseDelay = time.Second
	defaultMaxDelay  = 30 * time.Second
)

// ErrChannelClosed indicates the channel was torn down or gave up.
var ErrChannelClosed = errors.New("channel closed")

// MessageSink receives messages decoded from inbound frames. Both this
// channel and the poller deliver into the same sink so the transcript merge
// exists in exactly one place.
type MessageSink func(transcript.Message)

// Config describes one channel's conversation binding and retry policy.
type Config struct {
	URL          string
	Subscription Subscription
	ContactID    int64

	// Zero values select DefaultMaxAttempts / 1s / 30s.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// reconnectTimer is the cancellable handle for a scheduled reconnect.
type reconnectTimer interface {
	Stop() bool
}

// Channel maintains at most one open push connection for the active
// conversation. On close it retries with exponential backoff
// (BaseDelay * 2^attempts, capped at MaxDelay) up to MaxAttempts, then stops
// permanently and notifies the supervisor so polling becomes the sole
// transport. Close is idempotent and safe from any state.
type Channel struct {
	cfg         Config
	dialer      Dialer
	sink        MessageSink
	onExhausted func()
	logger      *slog.Logger

	// afterFunc is a seam for backoff tests.
	afterFunc func(time.Duration, func()) reconnectTimer

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	conn      Conn
	timer     reconnectTimer
	attempts  int
	exhausted bool
	closed    bool
	started   bool
}

// New creates a channel. onExhausted may be nil; pass nil logger for default.
func New(cfg Config, dialer Dialer, sink MessageSink, onExhausted func(), logger *slog.Logger) *Channel {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		cfg:         cfg,
		dialer:      dialer,
		sink:        sink,
		onExhausted: onExhausted,
		logger:      logger.With("component", "channel", "conversation_id", cfg.Subscription.ConversationID),
		afterFunc: func(d time.Duration, f func()) reconnectTimer {
			return time.AfterFunc(d, f)
		},
	}
}

// Connect opens the connection if none is open and starts the read loop.
// The given context bounds the whole channel lifetime: cancelling it stops
// reads and any pending reconnect.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if !c.started {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.started = true
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.dial()
}

// dial performs one connection attempt, subscribing on success.
func (c *Channel) dial() error {
	c.mu.Lock()
	if c.closed || c.exhausted {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	ctx := c.ctx
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.logger.Warn("channel dial failed", "error", err)
		c.scheduleReconnect()
		return err
	}

	cmd, err := subscribeCommand(c.cfg.Subscription)
	if err == nil {
		err = conn.WriteMessage(ctx, cmd)
	}
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return err
		}
		c.logger.Warn("channel subscribe failed", "error", err)
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrChannelClosed
	}
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("channel connected")
	go c.readLoop(ctx, conn)
	return nil
}

// readLoop consumes frames until the connection fails or the channel closes.
func (c *Channel) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closing := c.closed
			c.mu.Unlock()

			_ = conn.Close()
			if closing || ctx.Err() != nil {
				return
			}
			c.logger.Warn("channel connection lost", "error", err)
			c.scheduleReconnect()
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame delivers message.created frames to the sink.
func (c *Channel) handleFrame(data []byte) {
	remote, ok, err := parseFrame(data)
	if err != nil {
		c.logger.Warn("unparseable frame ignored", "error", err)
		return
	}
	if !ok {
		return
	}

	msg := remote.ToTranscript(c.cfg.ContactID)
	c.logger.Debug("message received", "message_id", msg.ID, "sender", msg.Sender.String())
	c.sink(msg)
}

// scheduleReconnect arms the backoff timer for the next attempt, or gives up
// when attempts are exhausted.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.exhausted || c.timer != nil {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.cfg.MaxAttempts {
		c.exhausted = true
		onExhausted := c.onExhausted
		c.mu.Unlock()

		c.logger.Warn("reconnect attempts exhausted, polling is now the only transport",
			"attempts", c.cfg.MaxAttempts)
		if onExhausted != nil {
			onExhausted()
		}
		return
	}

	delay := c.backoffDelay(c.attempts)
	c.attempts++
	attempt := c.attempts
	c.timer = c.afterFunc(delay, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		_ = c.dial()
	})
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// backoffDelay returns BaseDelay * 2^attempt capped at MaxDelay.
func (c *Channel) backoffDelay(attempt int) time.Duration {
	delay := c.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	if delay > c.cfg.MaxDelay {
		return c.cfg.MaxDelay
	}
	return delay
}

// Close tears the channel down. The pending reconnect timer is cancelled
// before the socket closes so no reconnect can fire after disposal.
// Safe to call multiple times and from any state.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	timer := c.timer
	c.timer = nil
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Debug("channel closed")
}

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Exhausted reports whether the channel has permanently given up.
func (c *Channel) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}
