package device

import (
	"sync/atomic"
	"time"
)

// Null is a device with no hardware behind it: capture never yields audio
// and playback discards everything. It keeps the link running headless.
type Null struct {
	closed atomic.Bool
	played atomic.Uint64
}

// NewNull creates a null device
func NewNull() *Null {
	return &Null{}
}

// Capture waits for the timeout and returns no audio
func (n *Null) Capture(buf []byte, timeout time.Duration) (int, error) {
	if n.closed.Load() {
		return 0, ErrClosed
	}
	time.Sleep(timeout)
	return 0, nil
}

// Play discards buf
func (n *Null) Play(buf []byte, timeout time.Duration) (int, error) {
	if n.closed.Load() {
		return 0, ErrClosed
	}
	n.played.Add(uint64(len(buf)))
	return len(buf), nil
}

// BytesPlayed returns the number of bytes discarded so far
func (n *Null) BytesPlayed() uint64 {
	return n.played.Load()
}

// Close marks the device closed
func (n *Null) Close() error {
	n.closed.Store(true)
	return nil
}
