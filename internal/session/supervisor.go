// ABOUTME: Transport lifecycle supervision: start/stop channel and poller on mode changes.
// ABOUTME: Owns scoped teardown and the single delivery sink both transports feed.

package session

import (
	"context"
	"time"

	"github.com/lumenshop/support-chat/internal/channel"
	"github.com/lumenshop/support-chat/internal/transcript"
)

// resolveTimeout bounds the best-effort resolve call during teardown.
const resolveTimeout = 5 * time.Second

// startTransportsLocked builds the channel and poller for the current
// conversation. Caller must hold s.mu with mode==ModeAgent and a set
// conversation id. Network activity is deferred to connectTransports so no
// I/O happens under the lock.
func (s *Session) startTransportsLocked() {
	sub := channel.Subscription{
		AccountID:      s.cfg.AccountID,
		InboxID:        s.cfg.InboxID,
		ConversationID: s.conversationID,
	}
	s.channel = s.newChannel(sub, s.contactID, s.deliver, s.onChannelExhausted)
	s.poller = s.newPoller(s.conversationID, s.contactID, s.deliver)
}

// connectTransports opens the channel and starts polling. Transport errors
// are recovered by backoff inside the channel and are invisible here.
func (s *Session) connectTransports() {
	s.mu.Lock()
	ch := s.channel
	po := s.poller
	s.mu.Unlock()

	if po != nil {
		po.Start(s.lifeCtx)
	}
	if ch != nil {
		if err := ch.Connect(s.lifeCtx); err != nil {
			s.logger.Warn("initial channel connect failed, backoff takes over", "error", err)
		}
	}
}

// stopTransportsLocked tears down both transports. Caller must hold s.mu.
// Channel.Close cancels any pending reconnect timer before closing the
// socket, so nothing fires after disposal.
func (s *Session) stopTransportsLocked() {
	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	if s.poller != nil {
		s.poller.Stop()
		s.poller = nil
	}
}

// deliver is the single inbound sink shared by the channel and the poller,
// so the merge logic exists exactly once. A non-user message clears the
// awaiting-reply spinner.
func (s *Session) deliver(msg transcript.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	appended := s.log.Merge(msg)
	if msg.Sender != transcript.SenderUser {
		s.awaitingReply = false
	}
	if appended {
		s.logger.Debug("message merged",
			"message_id", msg.ID,
			"sender", msg.Sender.String())
	}
}

// onChannelExhausted runs when the channel has permanently given up.
// Polling is already active, so the conversation degrades silently.
func (s *Session) onChannelExhausted() {
	s.logger.Warn("push channel gave up, continuing with polling only")
}

// Close tears the session down, in order: cancel any in-flight bot query,
// cancel the pending reconnect timer and close the socket, stop polling,
// then best-effort resolve the conversation. Resolve failures are logged
// only. Close is idempotent.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	if s.botCancel != nil {
		s.botCancel()
		s.botCancel = nil
	}
	s.stopTransportsLocked()
	conversationID := s.conversationID
	s.mu.Unlock()

	s.lifeCancel()
	s.resolveBestEffort(ctx, conversationID)
	s.logger.Info("session closed")
}

// resolveBestEffort fires a resolve for the conversation, if any. Errors are
// logged and swallowed; teardown never surfaces gateway failures.
func (s *Session) resolveBestEffort(ctx context.Context, conversationID int64) {
	if conversationID == 0 {
		return
	}
	resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
	defer cancel()

	if err := s.gw.Resolve(resolveCtx, conversationID); err != nil {
		s.logger.Warn("resolve failed", "error", err, "conversation_id", conversationID)
	}
}

// Snapshot is a render-ready view of the session.
type Snapshot struct {
	Mode           Mode
	Messages       []transcript.Message
	AwaitingReply  bool
	ConversationID int64
}

// Snapshot returns the current mode and transcript for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Mode:           s.mode,
		Messages:       s.log.Messages(),
		AwaitingReply:  s.awaitingReply,
		ConversationID: s.conversationID,
	}
}

// Mode returns the active conversation mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// AwaitingReply reports whether the user is waiting on the agent side.
func (s *Session) AwaitingReply() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingReply
}

// ActionsVisible reports whether a bot message still shows its action row.
func (s *Session) ActionsVisible(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.ActionsVisible(messageID)
}

// TransportsRunning reports whether the channel or poller is active. It
// exists for the mode/transport invariant: transports run iff the mode is
// ModeAgent with a set conversation id.
func (s *Session) TransportsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel != nil || s.poller != nil
}
