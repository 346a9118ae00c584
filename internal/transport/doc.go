// Package transport implements the UDP sockets of the intercom link: an
// unbound sender for outbound frames and a receiver bound to the fixed
// communication port whose reads are always bounded by a deadline.
package transport
