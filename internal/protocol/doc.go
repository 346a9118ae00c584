// Package protocol defines the intercom wire format: headerless datagrams of
// 16-bit big-endian mono PCM at 16 kHz. It provides sample encoding and
// decoding and the frame energy measure used by echo suppression.
package protocol
