// Package polling provides the fallback delivery transport: a periodic
// full-history fetch for the active conversation. It shares the sender
// classification and merge path with the push channel, so messages observed
// by both transports collapse into single transcript entries.
package polling
