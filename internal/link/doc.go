// Package link implements the two intercom streams. The transmit stream sends
// captured audio to the locked partner. The receive stream owns the partner
// lock and feeds echo suppression before playing each inbound frame.
package link
