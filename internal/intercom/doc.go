// Package intercom is the host-facing intercom component. After the audio
// device is attached, periodic ticks start the link streams once the network
// is up, and start the alert tone whenever the alert switch is on.
package intercom
