// ABOUTME: Shared test doubles for the session engine tests.
// ABOUTME: Fake gateway, bot, channel, and poller with call recording.

package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/lumenshop/support-chat/internal/channel"
	"github.com/lumenshop/support-chat/internal/gateway"
	"github.com/lumenshop/support-chat/internal/polling"
)

type fakeGateway struct {
	mu sync.Mutex

	contactID      int64
	conversationID int64
	nextMessageID  int64
	listResult     []gateway.RemoteMessage

	findErr   error
	createErr error
	toggleErr error
	postErr   error
	listErr   error

	findCalls    int
	createParams []gateway.CreateConversationParams
	toggles      []string
	posts        []string
	resolved     []int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{contactID: 42, conversationID: 314, nextMessageID: 5000}
}

func (g *fakeGateway) FindOrCreateContact(_ context.Context, _ gateway.Profile) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.findCalls++
	if g.findErr != nil {
		return 0, g.findErr
	}
	return g.contactID, nil
}

func (g *fakeGateway) CreateConversation(_ context.Context, params gateway.CreateConversationParams) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return 0, g.createErr
	}
	g.createParams = append(g.createParams, params)
	return g.conversationID, nil
}

func (g *fakeGateway) PostMessage(_ context.Context, _ int64, text string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.postErr != nil {
		return 0, g.postErr
	}
	g.posts = append(g.posts, text)
	g.nextMessageID++
	return g.nextMessageID, nil
}

func (g *fakeGateway) ListMessages(_ context.Context, _ int64) ([]gateway.RemoteMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.listResult, nil
}

func (g *fakeGateway) ToggleStatus(_ context.Context, _ int64, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.toggleErr != nil {
		return g.toggleErr
	}
	g.toggles = append(g.toggles, status)
	return nil
}

func (g *fakeGateway) Resolve(_ context.Context, conversationID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolved = append(g.resolved, conversationID)
	return nil
}

func (g *fakeGateway) resolvedIDs() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int64, len(g.resolved))
	copy(out, g.resolved)
	return out
}

type fakeBot struct {
	answer  string
	err     error
	block   bool
	started chan struct{}
}

func (b *fakeBot) Ask(ctx context.Context, _ string) (string, error) {
	if b.block {
		if b.started != nil {
			close(b.started)
			b.started = nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	if b.err != nil {
		return "", b.err
	}
	return b.answer, nil
}

type fakeChannel struct {
	mu          sync.Mutex
	sub         channel.Subscription
	contactID   int64
	sink        channel.MessageSink
	onExhausted func()
	connected   bool
	closeCalls  int
	exhausted   bool
}

func (c *fakeChannel) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closeCalls++
}

func (c *fakeChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

type fakePoller struct {
	mu         sync.Mutex
	sink       polling.MessageSink
	running    bool
	stopCalls  int
	startCalls int
}

func (p *fakePoller) Start(_ context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.startCalls++
}

func (p *fakePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.stopCalls++
}

func (p *fakePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession wires a session to fake transports and returns all pieces.
func newTestSession(gw Gateway, bot BotQuerier) (*Session, *fakeChannel, *fakePoller) {
	s := New(Config{
		AccountID:    7,
		InboxID:      3,
		WebsocketURL: "ws://support.test/cable",
		Profile: gateway.Profile{
			Name:  "Shopper",
			Email: "shopper@example.com",
		},
	}, gw, bot, testLogger())

	fc := &fakeChannel{}
	fp := &fakePoller{}
	s.newChannel = func(sub channel.Subscription, contactID int64, sink channel.MessageSink, onExhausted func()) PushChannel {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		fc.sub = sub
		fc.contactID = contactID
		fc.sink = sink
		fc.onExhausted = onExhausted
		return fc
	}
	s.newPoller = func(_, _ int64, sink polling.MessageSink) Poller {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		fp.sink = sink
		return fp
	}
	return s, fc, fp
}

// escalate drives a session from Bot to a live Agent conversation.
func escalate(s *Session, problem string) error {
	if err := s.ReferToAgent(context.Background()); err != nil {
		return err
	}
	return s.SubmitProblem(context.Background(), problem)
}
