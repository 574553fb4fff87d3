// ABOUTME: Ordered, deduplicated transcript of a support conversation.
// ABOUTME: Merge is idempotent by message id; placeholders are replaced atomically.

package transcript

import (
	"errors"
	"time"
)

// ErrUnknownMessage indicates a rekey referenced an id not present in the log.
var ErrUnknownMessage = errors.New("message not in transcript")

// ErrDuplicateID indicates a rekey target id is already present in the log.
var ErrDuplicateID = errors.New("message id already in transcript")

// ErrPlaceholderExists indicates the log already holds a placeholder entry.
var ErrPlaceholderExists = errors.New("placeholder already present")

// Log is the conversation transcript. Entries are kept in arrival order and
// deduplicated by message id. Cross-transport chronological order is NOT
// guaranteed: the WebSocket channel and the polling fetch may interleave, and
// the log never re-sorts by CreatedAt. Renderers needing stricter ordering
// should sort at render time so placeholder replacement stays intact.
//
// Log is not safe for concurrent use. The session actor serializes all
// mutations, so both transports funnel through a single goroutine.
type Log struct {
	entries []Message
	index   map[string]int
	actions map[string]bool // bot message id -> action row visible
}

// NewLog creates an empty transcript.
func NewLog() *Log {
	return &Log{
		index:   make(map[string]int),
		actions: make(map[string]bool),
	}
}

// Merge folds an observed message into the transcript.
// Already-seen ids are a no-op, which is what makes the dual-transport
// delivery (push channel + polling) safe. A non-user message arriving while a
// placeholder is shown removes every placeholder before appending.
// Returns true if the message was appended.
func (l *Log) Merge(msg Message) bool {
	if _, seen := l.index[msg.ID]; seen {
		return false
	}

	if msg.Sender != SenderUser && l.hasPlaceholder() {
		l.removePlaceholders()
	}

	l.index[msg.ID] = len(l.entries)
	l.entries = append(l.entries, msg)
	return true
}

// Rekey migrates a locally-assigned message id to the server-assigned id,
// keeping the entry's position. This must happen before the channel or the
// poller report the same message under the server id, so that Merge treats
// those deliveries as duplicates rather than new entries.
func (l *Log) Rekey(oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	pos, ok := l.index[oldID]
	if !ok {
		return ErrUnknownMessage
	}
	if _, taken := l.index[newID]; taken {
		return ErrDuplicateID
	}

	l.entries[pos].ID = newID
	delete(l.index, oldID)
	l.index[newID] = pos

	if visible, tracked := l.actions[oldID]; tracked {
		delete(l.actions, oldID)
		l.actions[newID] = visible
	}
	return nil
}

// AppendPlaceholder adds a transient "looking for an agent" style entry.
// At most one placeholder may exist at a time.
func (l *Log) AppendPlaceholder(text string) (Message, error) {
	if l.hasPlaceholder() {
		return Message{}, ErrPlaceholderExists
	}
	msg := Message{
		ID:        "local-placeholder-" + time.Now().Format("150405.000000000"),
		Text:      text,
		Sender:    SenderBot,
		CreatedAt: time.Now(),
		Kind:      KindPlaceholder,
	}
	l.index[msg.ID] = len(l.entries)
	l.entries = append(l.entries, msg)
	return msg, nil
}

// Contains reports whether an id is present.
func (l *Log) Contains(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Messages returns a copy of the transcript in arrival order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the most recent entry, if any.
func (l *Log) Last() (Message, bool) {
	if len(l.entries) == 0 {
		return Message{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Reset drops every entry and all affordance state.
func (l *Log) Reset() {
	l.entries = nil
	l.index = make(map[string]int)
	l.actions = make(map[string]bool)
}

// ShowActions marks a bot message as offering the action row
// (Refer to Agent / Submit Ticket / Ask Another Question).
func (l *Log) ShowActions(messageID string) {
	if _, ok := l.index[messageID]; ok {
		l.actions[messageID] = true
	}
}

// HideActions hides the action row for one message.
func (l *Log) HideActions(messageID string) {
	delete(l.actions, messageID)
}

// HideAllActions hides every visible action row.
func (l *Log) HideAllActions() {
	l.actions = make(map[string]bool)
}

// ActionsVisible reports whether a message still shows its action row.
func (l *Log) ActionsVisible(messageID string) bool {
	return l.actions[messageID]
}

func (l *Log) hasPlaceholder() bool {
	for _, m := range l.entries {
		if m.Kind == KindPlaceholder {
			return true
		}
	}
	return false
}

// removePlaceholders drops all placeholder entries and rebuilds the index.
func (l *Log) removePlaceholders() {
	kept := l.entries[:0]
	for _, m := range l.entries {
		if m.Kind == KindPlaceholder {
			delete(l.index, m.ID)
			delete(l.actions, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	l.entries = kept
	for i, m := range l.entries {
		l.index[m.ID] = i
	}
}
