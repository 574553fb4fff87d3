// ABOUTME: Conversion from remote message records to transcript messages.
// ABOUTME: Sender classification is shared by the push channel and the poller.

package gateway

import (
	"time"

	"github.com/lumenshop/support-chat/internal/transcript"
)

// ClassifySender maps a remote sender to a transcript sender. A message is the
// customer's own iff it was authored by the contact the session created;
// everything else (agent, bot rules, system) renders as the agent side.
func ClassifySender(senderType string, senderID, contactID int64) transcript.Sender {
	if senderType == "contact" && senderID == contactID {
		return transcript.SenderUser
	}
	return transcript.SenderAgent
}

// ToTranscript converts a remote record to a transcript message. CreatedAt
// arrives as seconds since epoch.
func (m RemoteMessage) ToTranscript(contactID int64) transcript.Message {
	return transcript.Message{
		ID:        FormatMessageID(m.ID),
		Text:      m.Content,
		Sender:    ClassifySender(m.Sender.Type, m.Sender.ID, contactID),
		CreatedAt: time.Unix(m.CreatedAt, 0),
		Kind:      transcript.KindPlain,
	}
}
