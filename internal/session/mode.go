// ABOUTME: Conversation mode enum for the session state machine.
// ABOUTME: Exactly one mode is active at a time and drives transport lifecycle.

package session

// Mode is the conversation phase. It decides which gateway calls are legal
// and which transports run: the push channel and the poller are active iff
// the mode is ModeAgent and a conversation id is set.
type Mode int

const (
	// ModeBot is the initial FAQ/bot-query phase.
	ModeBot Mode = iota
	// ModeAwaitingProblem means a conversation exists and the session is
	// waiting for the user's first free-text problem statement.
	ModeAwaitingProblem
	// ModeAgent is a live human-agent conversation.
	ModeAgent
	// ModeTicket is waiting for the free-text body of a support ticket.
	ModeTicket
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeBot:
		return "bot"
	case ModeAwaitingProblem:
		return "awaiting_problem"
	case ModeAgent:
		return "agent"
	case ModeTicket:
		return "ticket"
	default:
		return "unknown"
	}
}
