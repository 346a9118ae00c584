// Package tone generates the call alert: a square-wave beep pattern written
// straight to the local audio output while the alert switch is on.
package tone
