// Package channel provides the reconnecting WebSocket transport that pushes
// new conversation messages into the transcript.
//
// # Lifecycle
//
// A Channel is created per conversation and owns at most one open socket.
// On open it sends a subscribe command identifying the room, then reads
// frames until the connection drops. Control frames (ping, welcome,
// confirm_subscription) are ignored; message.created frames are converted to
// transcript messages and handed to the sink.
//
// # Reconnection
//
// A dropped connection is retried with capped exponential backoff:
//
//	1s, 2s, 4s, 8s, 16s (then capped at 30s)
//
// After DefaultMaxAttempts consecutive failures the channel stops retrying
// for the rest of the conversation and invokes the onExhausted callback so
// the supervisor can rely on the polling transport alone. This degradation
// is silent: polling keeps the conversation alive, so no error is surfaced.
package channel
