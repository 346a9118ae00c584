// Package session holds the state shared between the intercom streams: the
// locked partner, the last packet time, the echo suppression capture gate and
// the externally driven feature switches.
package session
