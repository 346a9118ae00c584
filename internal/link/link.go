package link

import (
	"context"
	"net/netip"
	"time"
)

// Capturer reads local audio in the wire byte format
type Capturer interface {
	Capture(buf []byte, timeout time.Duration) (int, error)
}

// Player writes wire-format audio to the local output
type Player interface {
	Play(buf []byte, timeout time.Duration) (int, error)
}

// FrameSender delivers one frame to a remote endpoint
type FrameSender interface {
	Send(dst netip.AddrPort, frame []byte) error
}

// FrameReceiver waits a bounded time for one inbound frame
type FrameReceiver interface {
	Receive(buf []byte, timeout time.Duration) (int, netip.AddrPort, error)
}

// Clock supplies the time used for packet timestamps and liveness
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

// sleep waits for d or until ctx is done. It reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
