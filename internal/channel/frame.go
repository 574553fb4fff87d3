// ABOUTME: Wire frame parsing for the push channel (ActionCable-style JSON).
// ABOUTME: Control frames are ignored; message.created frames carry a remote message.

package channel

import (
	"encoding/json"
	"fmt"

	"github.com/lumenshop/support-chat/internal/gateway"
)

// Subscription identifies the room the channel subscribes to after connecting.
type Subscription struct {
	AccountID      int64
	InboxID        int64
	ConversationID int64
}

// subscribeIdentifier is the JSON-stringified identifier inside the subscribe
// command. The backend expects it double-encoded.
type subscribeIdentifier struct {
	Channel        string `json:"channel"`
	AccountID      int64  `json:"account_id"`
	InboxID        int64  `json:"inbox_id"`
	ConversationID int64  `json:"conversation_id"`
}

// subscribeCommand builds the frame sent immediately after the socket opens.
func subscribeCommand(sub Subscription) ([]byte, error) {
	identifier, err := json.Marshal(subscribeIdentifier{
		Channel:        "RoomChannel",
		AccountID:      sub.AccountID,
		InboxID:        sub.InboxID,
		ConversationID: sub.ConversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding identifier: %w", err)
	}
	return json.Marshal(map[string]string{
		"command":    "subscribe",
		"identifier": string(identifier),
	})
}

// inboundFrame is the union of control and content frames.
type inboundFrame struct {
	Type    string `json:"type"`
	Message *struct {
		Event string                `json:"event"`
		Data  gateway.RemoteMessage `json:"data"`
	} `json:"message"`
}

// parseFrame decodes an inbound frame. ok is false for control frames
// (ping, welcome, confirm_subscription) and for events other than
// message.created.
func parseFrame(data []byte) (gateway.RemoteMessage, bool, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return gateway.RemoteMessage{}, false, fmt.Errorf("decoding frame: %w", err)
	}

	switch frame.Type {
	case "ping", "welcome", "confirm_subscription":
		return gateway.RemoteMessage{}, false, nil
	}

	if frame.Message == nil || frame.Message.Event != "message.created" {
		return gateway.RemoteMessage{}, false, nil
	}
	return frame.Message.Data, true, nil
}
