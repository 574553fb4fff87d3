// Package transcript holds the in-memory conversation transcript and its
// merge semantics. Both delivery transports (WebSocket push and polling)
// feed the same Log, so at-least-once delivery collapses into an
// exactly-once transcript through idempotent merge by message id.
package transcript
