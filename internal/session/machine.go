// ABOUTME: The conversation state machine: mode transitions and their gateway calls.
// ABOUTME: Gateway and timeout failures become transcript messages, never escape here.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lumenshop/support-chat/internal/channel"
	"github.com/lumenshop/support-chat/internal/gateway"
	"github.com/lumenshop/support-chat/internal/polling"
	"github.com/lumenshop/support-chat/internal/transcript"
)

// ErrEmptyMessage rejects blank free-text input before any network call.
var ErrEmptyMessage = errors.New("message is empty")

// ErrInvalidMode indicates an operation was attempted in the wrong mode.
var ErrInvalidMode = errors.New("operation not valid in current mode")

// ErrSessionClosed indicates the session has been torn down.
var ErrSessionClosed = errors.New("session closed")

// Transcript texts the session authors itself.
const (
	defaultGreeting    = "Hi! Pick a topic below or type your question, and I'll do my best to help."
	describeProblemMsg = "You're in the queue for a support agent. Please describe your problem."
	describeTicketMsg  = "Please describe your issue and we'll open a support ticket for you."
	placeholderMsg     = "Looking for an agent to take your conversation..."
	ticketDoneMsg      = "Your ticket has been submitted. Our support team will reach out by email."
	botFailureMsg      = "Sorry, I couldn't find an answer right now. Please try again."
	referFailureMsg    = "We couldn't reach the support service. Please try again in a moment."
	postFailureMsg     = "Your message couldn't be delivered. Please try again."
	ticketFailureMsg   = "We couldn't submit your ticket. Please try again."
)

// Gateway is what the session needs from the ticketing backend.
type Gateway interface {
	FindOrCreateContact(ctx context.Context, profile gateway.Profile) (int64, error)
	CreateConversation(ctx context.Context, params gateway.CreateConversationParams) (int64, error)
	PostMessage(ctx context.Context, conversationID int64, text string) (int64, error)
	ListMessages(ctx context.Context, conversationID int64) ([]gateway.RemoteMessage, error)
	ToggleStatus(ctx context.Context, conversationID int64, status string) error
	Resolve(ctx context.Context, conversationID int64) error
}

// BotQuerier is the FAQ bot endpoint.
type BotQuerier interface {
	Ask(ctx context.Context, query string) (string, error)
}

// PushChannel abstracts the reconnecting websocket transport.
type PushChannel interface {
	Connect(ctx context.Context) error
	Close()
	Connected() bool
	Exhausted() bool
}

// Poller abstracts the polling fallback transport.
type Poller interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
}

// Config describes the session's account binding and customer identity.
type Config struct {
	AccountID    int64
	InboxID      int64
	WebsocketURL string
	Profile      gateway.Profile
	PollInterval time.Duration
	Greeting     string // zero value selects the default greeting
}

// Session is the conversation actor: the state machine plus the transport
// supervisor. All state is guarded by one mutex, and both transports deliver
// through the single deliver sink, so transcript mutations are serialized
// even though push and poll are logically concurrent sources.
type Session struct {
	cfg    Config
	gw     Gateway
	bot    BotQuerier
	logger *slog.Logger

	// Factories are seams for tests; defaults build the real transports.
	newChannel func(sub channel.Subscription, contactID int64, sink channel.MessageSink, onExhausted func()) PushChannel
	newPoller  func(conversationID, contactID int64, sink polling.MessageSink) Poller

	// lifeCtx outlives individual calls; transports are bound to it.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu             sync.Mutex
	mode           Mode
	log            *transcript.Log
	conversationID int64 // 0 means unset
	contactID      int64
	awaitingReply  bool
	channel        PushChannel
	poller         Poller
	botCancel      context.CancelFunc
	closed         bool
}

// New creates a session in ModeBot with the greeting already in the
// transcript. Pass nil logger for default.
func New(cfg Config, gw Gateway, bot BotQuerier, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Greeting == "" {
		cfg.Greeting = defaultGreeting
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())

	s := &Session{
		cfg:        cfg,
		gw:         gw,
		bot:        bot,
		logger:     logger.With("component", "session"),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		mode:       ModeBot,
		log:        transcript.NewLog(),
	}
	s.newChannel = func(sub channel.Subscription, contactID int64, sink channel.MessageSink, onExhausted func()) PushChannel {
		return channel.New(channel.Config{
			URL:          cfg.WebsocketURL,
			Subscription: sub,
			ContactID:    contactID,
		}, channel.WebsocketDialer{}, sink, onExhausted, logger)
	}
	s.newPoller = func(conversationID, contactID int64, sink polling.MessageSink) Poller {
		return polling.New(gw, conversationID, contactID, cfg.PollInterval, sink, logger)
	}

	s.appendGreeting()
	return s
}

// appendGreeting adds the FAQ entry prompt with its action row visible.
func (s *Session) appendGreeting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	greeting := transcript.NewLocal(s.cfg.Greeting, transcript.SenderBot, transcript.KindFAQ)
	s.log.Merge(greeting)
	s.log.ShowActions(greeting.ID)
}

// AskQuestion dispatches a freeform query to the bot endpoint. Valid only in
// ModeBot. The reply (or a failure notice) is appended as a bot message with
// the action row enabled.
func (s *Session) AskQuestion(ctx context.Context, text string) error {
	return s.ask(ctx, text, transcript.KindPlain)
}

// AskFAQTopic submits a canned FAQ topic. Same flow as AskQuestion but the
// user entry is recorded as an FAQ selection.
func (s *Session) AskFAQTopic(ctx context.Context, topic string) error {
	return s.ask(ctx, topic, transcript.KindFAQ)
}

func (s *Session) ask(ctx context.Context, text string, kind transcript.Kind) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != ModeBot {
		s.mu.Unlock()
		return fmt.Errorf("%w: ask requires bot mode, have %s", ErrInvalidMode, s.mode)
	}
	s.log.HideAllActions()
	s.log.Merge(transcript.NewLocal(text, transcript.SenderUser, kind))

	askCtx, cancel := context.WithCancel(ctx)
	s.botCancel = cancel
	s.mu.Unlock()
	defer cancel()

	answer, err := s.bot.Ask(askCtx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.botCancel = nil
	if s.closed {
		return ErrSessionClosed
	}

	if err != nil {
		s.logger.Warn("bot query failed", "error", err)
		s.appendBotNotice(botFailureMsg)
		return nil
	}
	s.appendBotNotice(answer)
	return nil
}

// appendBotNotice appends a bot message with the action row visible.
// Caller must hold s.mu.
func (s *Session) appendBotNotice(text string) {
	msg := transcript.NewLocal(text, transcript.SenderBot, transcript.KindPlain)
	s.log.Merge(msg)
	s.log.ShowActions(msg.ID)
}

// ReferToAgent escalates to a human agent: finds or creates the contact,
// opens a pending conversation, and moves to ModeAwaitingProblem. On gateway
// failure the session stays in ModeBot with the action row re-shown.
func (s *Session) ReferToAgent(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != ModeBot {
		s.mu.Unlock()
		return fmt.Errorf("%w: refer requires bot mode, have %s", ErrInvalidMode, s.mode)
	}
	s.log.HideAllActions()
	s.mu.Unlock()

	contactID, err := s.gw.FindOrCreateContact(ctx, s.cfg.Profile)
	if err == nil {
		var conversationID int64
		conversationID, err = s.gw.CreateConversation(ctx, gateway.CreateConversationParams{
			ContactID:        contactID,
			InboxID:          s.cfg.InboxID,
			Status:           "pending",
			CustomAttributes: s.cfg.Profile.CustomAttributes,
		})
		if err == nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.closed {
				return ErrSessionClosed
			}
			s.contactID = contactID
			s.conversationID = conversationID
			s.mode = ModeAwaitingProblem
			s.log.Merge(transcript.NewLocal(describeProblemMsg, transcript.SenderBot, transcript.KindPlain))
			s.logger.Info("escalated to agent queue",
				"contact_id", contactID,
				"conversation_id", conversationID)
			return nil
		}
	}

	s.logger.Warn("escalation failed", "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.appendBotNotice(referFailureMsg)
	return nil
}

// SubmitProblem sends the user's first free-text problem statement: toggles
// the conversation open, posts the message, migrates the optimistic id to the
// server id, enters ModeAgent, and starts both transports.
func (s *Session) SubmitProblem(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != ModeAwaitingProblem {
		s.mu.Unlock()
		return fmt.Errorf("%w: submit requires awaiting_problem mode, have %s", ErrInvalidMode, s.mode)
	}
	conversationID := s.conversationID
	local := transcript.NewLocal(text, transcript.SenderUser, transcript.KindPlain)
	s.log.Merge(local)
	s.mu.Unlock()

	err := s.gw.ToggleStatus(ctx, conversationID, "open")
	var messageID int64
	if err == nil {
		messageID, err = s.gw.PostMessage(ctx, conversationID, text)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		s.logger.Warn("first agent message failed", "error", err)
		s.appendBotNotice(postFailureMsg)
		s.mu.Unlock()
		return nil
	}

	// Identity migration: the channel and the poller will both report this
	// message under the server id, and merge must treat those as duplicates.
	if rekeyErr := s.log.Rekey(local.ID, gateway.FormatMessageID(messageID)); rekeyErr != nil {
		s.logger.Warn("rekey failed", "error", rekeyErr, "message_id", messageID)
	}

	s.mode = ModeAgent
	s.awaitingReply = true
	if _, phErr := s.log.AppendPlaceholder(placeholderMsg); phErr != nil {
		s.logger.Debug("placeholder skipped", "error", phErr)
	}
	s.startTransportsLocked()
	s.mu.Unlock()

	s.connectTransports()
	s.logger.Info("conversation live", "conversation_id", conversationID)
	return nil
}

// SendAgentMessage posts a follow-up message while the conversation is live.
func (s *Session) SendAgentMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != ModeAgent {
		s.mu.Unlock()
		return fmt.Errorf("%w: send requires agent mode, have %s", ErrInvalidMode, s.mode)
	}
	conversationID := s.conversationID
	local := transcript.NewLocal(text, transcript.SenderUser, transcript.KindPlain)
	s.log.Merge(local)
	s.mu.Unlock()

	messageID, err := s.gw.PostMessage(ctx, conversationID, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.logger.Warn("message post failed", "error", err)
		s.appendBotNotice(postFailureMsg)
		return nil
	}
	if rekeyErr := s.log.Rekey(local.ID, gateway.FormatMessageID(messageID)); rekeyErr != nil {
		s.logger.Warn("rekey failed", "error", rekeyErr, "message_id", messageID)
	}
	s.awaitingReply = true
	return nil
}

// StartTicket moves from ModeBot to ModeTicket and prompts for the body.
func (s *Session) StartTicket() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.mode != ModeBot {
		return fmt.Errorf("%w: ticket requires bot mode, have %s", ErrInvalidMode, s.mode)
	}
	s.mode = ModeTicket
	s.log.HideAllActions()
	s.log.Merge(transcript.NewLocal(describeTicketMsg, transcript.SenderBot, transcript.KindPlain))
	return nil
}

// SubmitTicket creates contact, conversation, and message in one gateway
// round trip and returns to ModeBot whether or not the POST succeeds.
// If the freshly created conversation already contains a message with the
// identical text (the backend accepted the embedded initial message), it is
// not posted again.
func (s *Session) SubmitTicket(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != ModeTicket {
		s.mu.Unlock()
		return fmt.Errorf("%w: submit requires ticket mode, have %s", ErrInvalidMode, s.mode)
	}
	local := transcript.NewLocal(text, transcript.SenderUser, transcript.KindTicket)
	s.log.Merge(local)
	s.mu.Unlock()

	serverID, err := s.createTicket(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.mode = ModeBot
	if err != nil {
		s.logger.Warn("ticket submission failed", "error", err)
		s.appendBotNotice(ticketFailureMsg)
		return nil
	}
	if serverID != 0 {
		if rekeyErr := s.log.Rekey(local.ID, gateway.FormatMessageID(serverID)); rekeyErr != nil {
			s.logger.Warn("rekey failed", "error", rekeyErr, "message_id", serverID)
		}
	}
	s.appendBotNotice(ticketDoneMsg)
	return nil
}

// createTicket performs the gateway side of SubmitTicket. Returns the server
// id of the ticket message when one can be determined.
func (s *Session) createTicket(ctx context.Context, text string) (int64, error) {
	contactID, err := s.gw.FindOrCreateContact(ctx, s.cfg.Profile)
	if err != nil {
		return 0, err
	}

	conversationID, err := s.gw.CreateConversation(ctx, gateway.CreateConversationParams{
		ContactID:        contactID,
		InboxID:          s.cfg.InboxID,
		Status:           "open",
		CustomAttributes: s.cfg.Profile.CustomAttributes,
		InitialMessage:   text,
	})
	if err != nil {
		return 0, err
	}

	// The backend may or may not have accepted the embedded initial
	// message; only post when it is genuinely absent.
	existing, err := s.gw.ListMessages(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	for _, remote := range existing {
		if remote.Content == text {
			s.logger.Debug("ticket message already present, skipping post",
				"conversation_id", conversationID)
			return remote.ID, nil
		}
	}
	return s.gw.PostMessage(ctx, conversationID, text)
}

// AskAnotherQuestion abandons the live conversation and restarts the FAQ
// flow: transports stop, the conversation is resolved best-effort, identity
// is cleared, and the transcript resets to the greeting.
func (s *Session) AskAnotherQuestion(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.mode != ModeAgent {
		s.mu.Unlock()
		return fmt.Errorf("%w: restart requires agent mode, have %s", ErrInvalidMode, s.mode)
	}
	conversationID := s.conversationID
	s.stopTransportsLocked()
	s.mode = ModeBot
	s.conversationID = 0
	s.contactID = 0
	s.awaitingReply = false
	s.log.Reset()
	greeting := transcript.NewLocal(s.cfg.Greeting, transcript.SenderBot, transcript.KindFAQ)
	s.log.Merge(greeting)
	s.log.ShowActions(greeting.ID)
	s.mu.Unlock()

	s.resolveBestEffort(ctx, conversationID)
	s.logger.Info("conversation restarted")
	return nil
}
