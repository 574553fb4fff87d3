// ABOUTME: Transcript rendering for the terminal client.
// ABOUTME: Prints newly merged messages with per-sender colors and a mode-aware prompt.

package main

import (
	"fmt"
	"sync"

	"github.com/fatih/color"

	"github.com/lumenshop/support-chat/internal/session"
	"github.com/lumenshop/support-chat/internal/transcript"
)

// renderer prints transcript messages exactly once each, in merge order.
// Rekeyed messages keep their position, so the old id is remembered as seen
// under the new one by position, not identity.
type renderer struct {
	mu      sync.Mutex
	sess    *session.Session
	topics  []string
	printed int

	user        *color.Color
	bot         *color.Color
	agent       *color.Color
	placeholder *color.Color
}

func newRenderer(sess *session.Session, topics []string) *renderer {
	return &renderer{
		sess:        sess,
		topics:      topics,
		user:        color.New(color.FgCyan),
		bot:         color.New(color.FgGreen),
		agent:       color.New(color.FgYellow),
		placeholder: color.New(color.FgHiBlack),
	}
}

// flush prints every message that has not been printed yet. The merge log
// only appends or removes the single placeholder, so a positional cursor is
// enough; a consumed placeholder is handled by re-printing from its slot.
func (r *renderer) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.sess.Snapshot()
	if r.printed > len(snap.Messages) {
		// The placeholder was consumed or the transcript was reset.
		r.printed = len(snap.Messages)
		return
	}
	for _, msg := range snap.Messages[r.printed:] {
		r.print(msg)
	}
	r.printed = len(snap.Messages)
}

func (r *renderer) print(msg transcript.Message) {
	switch {
	case msg.Kind == transcript.KindPlaceholder:
		r.placeholder.Printf("  · %s\n", msg.Text)
	case msg.Sender == transcript.SenderUser:
		r.user.Printf("  you: ")
		fmt.Println(msg.Text)
	case msg.Sender == transcript.SenderAgent:
		r.agent.Printf("agent: ")
		fmt.Println(msg.Text)
	default:
		r.bot.Printf("  bot: ")
		fmt.Println(msg.Text)
		if r.sess.ActionsVisible(msg.ID) {
			r.placeholder.Println("       (/agent to talk to a human, /ticket to file a ticket)")
		}
	}
}

// prompt prints the input prompt for the current mode.
func (r *renderer) prompt() {
	switch r.sess.Mode() {
	case session.ModeAwaitingProblem:
		fmt.Print("[describe your problem]> ")
	case session.ModeAgent:
		if r.sess.AwaitingReply() {
			fmt.Print("[agent·waiting]> ")
		} else {
			fmt.Print("[agent]> ")
		}
	case session.ModeTicket:
		fmt.Print("[ticket]> ")
	default:
		fmt.Print("> ")
	}
}

// printTopics lists the configured FAQ topics with their /faq numbers.
func (r *renderer) printTopics() {
	if len(r.topics) == 0 {
		fmt.Println("No FAQ topics configured")
		return
	}
	fmt.Println("FAQ topics:")
	for i, topic := range r.topics {
		fmt.Printf("  %d. %s\n", i+1, topic)
	}
}
