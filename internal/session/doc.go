// Package session implements the conversation session engine: the mode state
// machine and the transport supervisor, fused into one single-actor type.
//
// # Modes
//
//	Bot ──referToAgent──▶ AwaitingProblem ──first message──▶ Agent
//	Bot ──startTicket──▶ Ticket ──submit (ok or not)──▶ Bot
//	Agent ──askAnotherQuestion──▶ Bot
//
// Exactly one mode is active at a time. The push channel and the polling
// fallback run iff the mode is Agent and a conversation id is set; the
// supervisor half of the Session enforces this by starting both on entry to
// Agent and stopping both on exit or teardown.
//
// # Delivery
//
// Both transports feed one deliver sink, which serializes transcript merges
// behind the session mutex. The channel and the poller deliberately run at
// the same time: the redundancy tolerates a socket that is open but silently
// not delivering, and the duplicate traffic is absorbed by the idempotent
// merge.
//
// # Errors
//
// Transport errors are retried or silently degraded, never shown. Gateway
// and bot-timeout errors become bot-authored transcript messages with the
// action row re-shown so the user can retry. Blank input is rejected locally
// with ErrEmptyMessage before any network call. Teardown resolve failures
// are logged only.
package session
