// Package gateway is the boundary to the external ticketing backend and the
// FAQ bot endpoint.
//
// The ticketing Client covers the operations the session engine consumes:
// contact lookup/create, conversation create, message post/list, status
// toggle, and best-effort resolve. The backend itself is an opaque REST
// service; nothing here reimplements its behavior.
//
// BotClient is a separate, unauthenticated endpoint used only while the
// conversation is in bot mode, with its own 10 second timeout contract.
package gateway
