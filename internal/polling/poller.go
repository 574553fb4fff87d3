// ABOUTME: Periodic full-history fetch feeding the same merge path as the channel.
// ABOUTME: Runs alongside the push channel on purpose; idempotent merge absorbs overlap.

package polling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenshop/support-chat/internal/gateway"
	"github.com/lumenshop/support-chat/internal/transcript"
)

// DefaultInterval is how often the full history is refetched.
const DefaultInterval = 5 * time.Second

// HistoryFetcher is what the poller needs from the ticketing gateway.
type HistoryFetcher interface {
	ListMessages(ctx context.Context, conversationID int64) ([]gateway.RemoteMessage, error)
}

// MessageSink receives each fetched message in received order.
type MessageSink func(transcript.Message)

// Poller refetches the conversation history on a fixed interval and feeds
// every record through the sink. It deliberately runs concurrently with the
// push channel: a socket that is open but silently not delivering is
// indistinguishable from a quiet conversation, so the poll provides a bounded
// staleness guarantee at the cost of duplicate traffic, which the transcript
// merge absorbs.
type Poller struct {
	fetcher        HistoryFetcher
	conversationID int64
	contactID      int64
	interval       time.Duration
	sink           MessageSink
	logger         *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a poller. A zero interval selects DefaultInterval.
func New(fetcher HistoryFetcher, conversationID, contactID int64, interval time.Duration, sink MessageSink, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:        fetcher,
		conversationID: conversationID,
		contactID:      contactID,
		interval:       interval,
		sink:           sink,
		logger:         logger.With("component", "poller", "conversation_id", conversationID),
	}
}

// Start begins ticking. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(pollCtx)
	p.logger.Debug("polling started", "interval", p.interval)
}

// Stop halts ticking. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.logger.Debug("polling stopped")
	}
}

// Running reports whether the poller is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll fetches the full history and feeds it through the sink in received
// order. Fetch failures are transport errors: logged, never surfaced.
func (p *Poller) poll(ctx context.Context) {
	msgs, err := p.fetcher.ListMessages(ctx, p.conversationID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("history fetch failed", "error", err)
		return
	}

	for _, remote := range msgs {
		p.sink(remote.ToTranscript(p.contactID))
	}
}
