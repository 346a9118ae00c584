// Package device abstracts the duplex PCM audio device. Capture and playback
// use short bounded waits so callers never block indefinitely. A PortAudio
// backend drives real hardware and a null backend runs without any.
package device
