// ABOUTME: Message model for the support conversation transcript.
// ABOUTME: Defines sender classification, message kinds, and local id generation.

package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender int

const (
	SenderUser Sender = iota
	SenderBot
	SenderAgent
)

// String returns a human-readable sender name.
func (s Sender) String() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderBot:
		return "bot"
	case SenderAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Kind classifies a message within the transcript.
type Kind int

const (
	KindPlain Kind = iota
	KindFAQ
	KindOrder
	KindTicket
	KindPlaceholder
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindFAQ:
		return "faq"
	case KindOrder:
		return "order"
	case KindTicket:
		return "ticket"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Message is a single transcript entry. ID is the deduplication key: locally
// authored messages carry a temporary id until the gateway acknowledges the
// send, at which point Log.Rekey migrates the entry to the server-assigned id.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	CreatedAt time.Time
	Kind      Kind
}

// NewLocal builds a locally-originated message with a temporary id. The
// "local-" prefix makes optimistic entries easy to spot in logs; it is never
// sent to the gateway as an identifier.
func NewLocal(text string, sender Sender, kind Kind) Message {
	return Message{
		ID:        "local-" + uuid.New().String(),
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now(),
		Kind:      kind,
	}
}
