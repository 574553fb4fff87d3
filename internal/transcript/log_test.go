// ABOUTME: Tests for transcript merge, rekeying, and placeholder replacement.
// ABOUTME: Validates idempotence and dedup across interleaved transport deliveries.

package transcript

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id, text string, sender Sender) Message {
	return Message{
		ID:        id,
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now(),
		Kind:      KindPlain,
	}
}

func TestLog_Merge_Appends(t *testing.T) {
	log := NewLog()

	assert.True(t, log.Merge(msg("m-1", "hello", SenderUser)))
	assert.True(t, log.Merge(msg("m-2", "hi there", SenderAgent)))

	assert.Equal(t, 2, log.Len())
	assert.True(t, log.Contains("m-1"))
	assert.True(t, log.Contains("m-2"))
}

func TestLog_Merge_Idempotent(t *testing.T) {
	log := NewLog()

	first := msg("m-1", "hello", SenderUser)
	assert.True(t, log.Merge(first))

	// Same id with a different payload must still be a no-op
	variant := msg("m-1", "completely different text", SenderAgent)
	assert.False(t, log.Merge(variant))

	require.Equal(t, 1, log.Len())
	assert.Equal(t, "hello", log.Messages()[0].Text)
}

func TestLog_Merge_InterleavedTransports(t *testing.T) {
	// Channel and poller both deliver overlapping sets of ids in
	// different orders; the final log must hold each id exactly once.
	log := NewLog()

	channelOrder := []string{"m-1", "m-2", "m-3"}
	pollOrder := []string{"m-2", "m-1", "m-3", "m-4"}

	for i := 0; i < len(pollOrder); i++ {
		if i < len(channelOrder) {
			log.Merge(msg(channelOrder[i], "via channel", SenderAgent))
		}
		log.Merge(msg(pollOrder[i], "via poll", SenderAgent))
	}

	assert.Equal(t, 4, log.Len())
	seen := map[string]int{}
	for _, m := range log.Messages() {
		seen[m.ID]++
	}
	for id, count := range seen {
		assert.Equalf(t, 1, count, "id %s duplicated", id)
	}
}

func TestLog_Merge_PreservesArrivalOrder(t *testing.T) {
	log := NewLog()

	earlier := time.Now().Add(-time.Hour)
	later := time.Now()

	newest := msg("m-new", "arrived first", SenderAgent)
	newest.CreatedAt = later
	oldest := msg("m-old", "arrived second", SenderAgent)
	oldest.CreatedAt = earlier

	log.Merge(newest)
	log.Merge(oldest)

	// Arrival order wins; the log never re-sorts by CreatedAt.
	msgs := log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-new", msgs[0].ID)
	assert.Equal(t, "m-old", msgs[1].ID)
}

func TestLog_Merge_ReplacesPlaceholder(t *testing.T) {
	log := NewLog()

	_, err := log.AppendPlaceholder("looking for an agent...")
	require.NoError(t, err)
	require.Equal(t, 1, log.Len())

	reply := msg("m-1", "hi, how can I help?", SenderAgent)
	assert.True(t, log.Merge(reply))

	// Exactly the agent reply remains, zero placeholders.
	msgs := log.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m-1", msgs[0].ID)
	for _, m := range msgs {
		assert.NotEqual(t, KindPlaceholder, m.Kind)
	}
}

func TestLog_Merge_UserMessageKeepsPlaceholder(t *testing.T) {
	log := NewLog()

	_, err := log.AppendPlaceholder("looking for an agent...")
	require.NoError(t, err)

	log.Merge(msg("m-1", "are you there?", SenderUser))

	// User's own message must not consume the placeholder.
	require.Equal(t, 2, log.Len())
	assert.Equal(t, KindPlaceholder, log.Messages()[0].Kind)
}

func TestLog_AppendPlaceholder_OnlyOne(t *testing.T) {
	log := NewLog()

	_, err := log.AppendPlaceholder("looking for an agent...")
	require.NoError(t, err)

	_, err = log.AppendPlaceholder("still looking...")
	assert.ErrorIs(t, err, ErrPlaceholderExists)
	assert.Equal(t, 1, log.Len())
}

func TestLog_Rekey(t *testing.T) {
	log := NewLog()

	local := NewLocal("my order is late", SenderUser, KindPlain)
	log.Merge(msg("m-0", "earlier entry", SenderBot))
	log.Merge(local)

	require.NoError(t, log.Rekey(local.ID, "srv-42"))

	// Position unchanged, old id gone, new id present.
	msgs := log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "srv-42", msgs[1].ID)
	assert.False(t, log.Contains(local.ID))

	// Later delivery of the same message under the server id is a dup.
	assert.False(t, log.Merge(msg("srv-42", "my order is late", SenderUser)))
	assert.Equal(t, 2, log.Len())
}

func TestLog_Rekey_Errors(t *testing.T) {
	log := NewLog()
	log.Merge(msg("m-1", "one", SenderUser))
	log.Merge(msg("m-2", "two", SenderAgent))

	assert.ErrorIs(t, log.Rekey("nope", "srv-1"), ErrUnknownMessage)
	assert.ErrorIs(t, log.Rekey("m-1", "m-2"), ErrDuplicateID)
	assert.NoError(t, log.Rekey("m-1", "m-1"))
}

func TestLog_Rekey_CarriesActionVisibility(t *testing.T) {
	log := NewLog()
	log.Merge(msg("local-1", "bot answer", SenderBot))
	log.ShowActions("local-1")

	require.NoError(t, log.Rekey("local-1", "srv-9"))

	assert.False(t, log.ActionsVisible("local-1"))
	assert.True(t, log.ActionsVisible("srv-9"))
}

func TestLog_Actions(t *testing.T) {
	log := NewLog()
	log.Merge(msg("m-1", "bot answer", SenderBot))

	// Unknown ids are ignored
	log.ShowActions("ghost")
	assert.False(t, log.ActionsVisible("ghost"))

	log.ShowActions("m-1")
	assert.True(t, log.ActionsVisible("m-1"))

	log.HideAllActions()
	assert.False(t, log.ActionsVisible("m-1"))
}

func TestLog_Reset(t *testing.T) {
	log := NewLog()
	log.Merge(msg("m-1", "one", SenderUser))
	log.ShowActions("m-1")

	log.Reset()

	assert.Equal(t, 0, log.Len())
	assert.False(t, log.Contains("m-1"))
	assert.False(t, log.ActionsVisible("m-1"))

	// Ids can be merged again after a reset
	assert.True(t, log.Merge(msg("m-1", "one", SenderUser)))
}

func TestLog_MergeIdempotence_PayloadVariations(t *testing.T) {
	senders := []Sender{SenderUser, SenderBot, SenderAgent}
	kinds := []Kind{KindPlain, KindFAQ, KindOrder, KindTicket}

	for _, s := range senders {
		for _, k := range kinds {
			t.Run(fmt.Sprintf("%s_%s", s, k), func(t *testing.T) {
				log := NewLog()
				m := Message{ID: "m-x", Text: "payload", Sender: s, CreatedAt: time.Now(), Kind: k}
				assert.True(t, log.Merge(m))
				assert.False(t, log.Merge(m))
				assert.Equal(t, 1, log.Len())
			})
		}
	}
}
