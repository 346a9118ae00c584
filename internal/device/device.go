package device

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrClosed is returned by I/O on a closed device
	ErrClosed = errors.New("device: closed")
	// ErrUnknownBackend is returned by Open for an unsupported backend name
	ErrUnknownBackend = errors.New("device: unknown backend")
)

// Device is a duplex PCM device. Buffers hold 16-bit big-endian mono samples
// at 16 kHz, the same layout as the wire format. Capture and Play may be
// called concurrently from different goroutines; each direction is
// serialized by the implementation.
type Device interface {
	// Capture fills buf with captured audio, waiting at most timeout.
	// Returning zero bytes with a nil error means nothing was ready.
	Capture(buf []byte, timeout time.Duration) (int, error)
	// Play queues buf for playback, waiting at most timeout for room.
	Play(buf []byte, timeout time.Duration) (int, error)
	// Close releases the device
	Close() error
}

// Config selects and parameterizes a backend
type Config struct {
	Backend      string
	SampleRate   int
	FrameSamples int
	InputDevice  string
	OutputDevice string
}

// Open creates the device named by cfg.Backend
func Open(cfg Config, logger *slog.Logger) (Device, error) {
	switch cfg.Backend {
	case "portaudio":
		return OpenPortAudio(cfg, logger)
	case "null":
		logger.Info("Using null audio device")
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
