// ABOUTME: Tests for transport supervision, delivery merging, and teardown order.
// ABOUTME: Covers dual-transport dedup, polling-only degradation, and Close semantics.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenshop/support-chat/internal/transcript"
)

func agentMsg(id, text string) transcript.Message {
	return transcript.Message{
		ID:        id,
		Text:      text,
		Sender:    transcript.SenderAgent,
		CreatedAt: time.Now(),
		Kind:      transcript.KindPlain,
	}
}

func TestSession_DeliverFromBothTransportsDeduplicates(t *testing.T) {
	s, fc, fp := newTestSession(newFakeGateway(), &fakeBot{})
	defer s.Close(context.Background())

	require.NoError(t, escalate(s, "my order is late"))
	before := len(s.Snapshot().Messages)

	// The same agent reply arrives over the socket and in a poll batch.
	fc.sink(agentMsg("9001", "hello, let me check"))
	fp.sink(agentMsg("9001", "hello, let me check"))
	fp.sink(agentMsg("9002", "your parcel is at the depot"))
	fc.sink(agentMsg("9002", "your parcel is at the depot"))

	snap := s.Snapshot()
	// Placeholder consumed by the first agent reply, two new entries total.
	assert.Len(t, snap.Messages, before+2-1)
	assert.False(t, hasPlaceholder(snap.Messages))
}

func TestSession_DeliverClearsAwaitingReply(t *testing.T) {
	s, fc, _ := newTestSession(newFakeGateway(), &fakeBot{})
	defer s.Close(context.Background())

	require.NoError(t, escalate(s, "my order is late"))
	require.True(t, s.AwaitingReply())

	// The user's own message echoed back must NOT clear the spinner
	fc.sink(transcript.Message{ID: "5001", Text: "my order is late", Sender: transcript.SenderUser, Kind: transcript.KindPlain})
	assert.True(t, s.AwaitingReply())

	fc.sink(agentMsg("9001", "on it"))
	assert.False(t, s.AwaitingReply())
}

func TestSession_PollingOnlyAfterChannelExhausted(t *testing.T) {
	// Scenario: the channel gives up for good; polling keeps delivering.
	s, fc, fp := newTestSession(newFakeGateway(), &fakeBot{})
	defer s.Close(context.Background())

	require.NoError(t, escalate(s, "my order is late"))

	fc.mu.Lock()
	fc.exhausted = true
	fc.connected = false
	onExhausted := fc.onExhausted
	fc.mu.Unlock()
	onExhausted()

	require.True(t, fp.Running(), "poller must remain the sole transport")

	fp.sink(agentMsg("9050", "sorry for the wait"))
	snap := s.Snapshot()
	assert.True(t, containsID(snap.Messages, "9050"))
}

func TestSession_Close_TeardownOrder(t *testing.T) {
	gw := newFakeGateway()
	bot := &fakeBot{block: true, started: make(chan struct{})}
	s, fc, fp := newTestSession(gw, bot)

	require.NoError(t, escalate(s, "my order is late"))

	// Cannot ask the bot in Agent mode, so drive the blocking query through
	// a second session sharing the same bot.
	s2, _, _ := newTestSession(gw, bot)
	askDone := make(chan error, 1)
	started := bot.started
	go func() { askDone <- s2.AskQuestion(context.Background(), "hanging question") }()
	<-started
	s2.Close(context.Background())

	select {
	case err := <-askDone:
		assert.ErrorIs(t, err, ErrSessionClosed, "in-flight bot query must be cancelled by Close")
	case <-time.After(time.Second):
		t.Fatal("bot query was not cancelled on Close")
	}

	s.Close(context.Background())
	assert.Equal(t, 1, fc.closeCalls, "channel closed on teardown")
	assert.Equal(t, 1, fp.stopCalls, "poller stopped on teardown")
	assert.Contains(t, gw.resolvedIDs(), int64(314), "best-effort resolve fired")
}

func TestSession_Close_Idempotent(t *testing.T) {
	gw := newFakeGateway()
	s, fc, fp := newTestSession(gw, &fakeBot{})

	require.NoError(t, escalate(s, "my order is late"))

	s.Close(context.Background())
	s.Close(context.Background())

	assert.Equal(t, 1, fc.closeCalls)
	assert.Equal(t, 1, fp.stopCalls)
	assert.Len(t, gw.resolvedIDs(), 1, "resolve must fire exactly once")
}

func TestSession_Close_WithoutConversation(t *testing.T) {
	gw := newFakeGateway()
	s, _, _ := newTestSession(gw, &fakeBot{})

	s.Close(context.Background())
	assert.Empty(t, gw.resolvedIDs(), "nothing to resolve without a conversation")
}

func TestSession_OperationsAfterClose(t *testing.T) {
	s, _, _ := newTestSession(newFakeGateway(), &fakeBot{})
	s.Close(context.Background())

	assert.ErrorIs(t, s.AskQuestion(context.Background(), "anyone?"), ErrSessionClosed)
	assert.ErrorIs(t, s.ReferToAgent(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, s.StartTicket(), ErrSessionClosed)
}

func TestSession_DeliverAfterCloseIsDropped(t *testing.T) {
	s, fc, _ := newTestSession(newFakeGateway(), &fakeBot{})

	require.NoError(t, escalate(s, "my order is late"))
	before := len(s.Snapshot().Messages)

	s.Close(context.Background())
	fc.sink(agentMsg("9100", "too late"))

	assert.Len(t, s.Snapshot().Messages, before)
}
