package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/skypro1111/udp-intercom/internal/protocol"
)

// pollInterval is how often buffer availability is re-checked while waiting
const pollInterval = time.Millisecond

// PortAudio is a duplex device backed by two blocking PortAudio streams, one
// per direction, so capture and playback never wait on each other.
type PortAudio struct {
	logger       *slog.Logger
	frameSamples int

	inMu  sync.Mutex
	in    *portaudio.Stream
	inBuf []int16

	outMu   sync.Mutex
	out     *portaudio.Stream
	outBuf  []int16
	pending []int16 // samples waiting for a full output buffer

	closed atomic.Bool
}

// OpenPortAudio initializes PortAudio and starts the input and output streams
func OpenPortAudio(cfg Config, logger *slog.Logger) (*PortAudio, error) {
	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("frame samples must be positive, got %d", cfg.FrameSamples)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	d := &PortAudio{
		logger:       logger,
		frameSamples: cfg.FrameSamples,
		inBuf:        make([]int16, cfg.FrameSamples),
		outBuf:       make([]int16, cfg.FrameSamples),
	}

	inDev, err := findDevice(cfg.InputDevice, true)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	outDev, err := findDevice(cfg.OutputDevice, false)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	inParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDev,
			Channels: protocol.Channels,
			Latency:  inDev.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FrameSamples,
	}
	d.in, err = portaudio.OpenStream(inParams, d.inBuf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open capture stream on %s: %w", inDev.Name, err)
	}

	outParams := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDev,
			Channels: protocol.Channels,
			Latency:  outDev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FrameSamples,
	}
	d.out, err = portaudio.OpenStream(outParams, d.outBuf)
	if err != nil {
		d.in.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open playback stream on %s: %w", outDev.Name, err)
	}

	if err := d.in.Start(); err != nil {
		d.closeStreams()
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	if err := d.out.Start(); err != nil {
		d.closeStreams()
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}

	logger.Info("PortAudio device opened",
		slog.String("input", inDev.Name),
		slog.String("output", outDev.Name),
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("frame_samples", cfg.FrameSamples),
	)

	return d, nil
}

// findDevice returns the named device, or the default one when name is empty
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			dev, err := portaudio.DefaultInputDevice()
			if err != nil {
				return nil, fmt.Errorf("no default input device: %w", err)
			}
			return dev, nil
		}
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default output device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name != name {
			continue
		}
		if input && dev.MaxInputChannels > 0 || !input && dev.MaxOutputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// Capture reads one buffer of input once it is available. Only as many
// samples as fit in buf are returned; buf should hold a full frame.
func (d *PortAudio) Capture(buf []byte, timeout time.Duration) (int, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}

	d.inMu.Lock()
	defer d.inMu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		avail, err := d.in.AvailableToRead()
		if err != nil {
			return 0, fmt.Errorf("failed to query capture stream: %w", err)
		}
		if avail >= d.frameSamples {
			break
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(pollInterval)
	}

	// An overflow still delivers a full buffer; the lost input is gone either way.
	if err := d.in.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, fmt.Errorf("failed to read capture stream: %w", err)
	}

	n := min(len(buf)/protocol.BytesPerSample, d.frameSamples)
	protocol.EncodeSamples(buf[:0], d.inBuf[:n])
	return n * protocol.BytesPerSample, nil
}

// Play writes buf to the output stream in whole buffers. A partial buffer is
// carried over to the next call. Audio that cannot be queued before the
// timeout is dropped.
func (d *PortAudio) Play(buf []byte, timeout time.Duration) (int, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}

	d.outMu.Lock()
	defer d.outMu.Unlock()

	n := protocol.SampleCount(buf)
	for i := 0; i < n; i++ {
		d.pending = append(d.pending, protocol.Sample(buf, i))
	}

	deadline := time.Now().Add(timeout)
	for len(d.pending) >= d.frameSamples {
		avail, err := d.out.AvailableToWrite()
		if err != nil {
			return 0, fmt.Errorf("failed to query playback stream: %w", err)
		}
		if avail < d.frameSamples {
			if !time.Now().Before(deadline) {
				dropped := len(d.pending)
				d.pending = d.pending[:0]
				accepted := max(n-dropped, 0)
				return accepted * protocol.BytesPerSample, nil
			}
			time.Sleep(pollInterval)
			continue
		}

		copy(d.outBuf, d.pending[:d.frameSamples])
		if err := d.out.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return 0, fmt.Errorf("failed to write playback stream: %w", err)
		}
		rest := copy(d.pending, d.pending[d.frameSamples:])
		d.pending = d.pending[:rest]
	}

	return n * protocol.BytesPerSample, nil
}

// Close stops both streams and terminates PortAudio
func (d *PortAudio) Close() error {
	if d.closed.Swap(true) {
		return nil
	}

	d.inMu.Lock()
	defer d.inMu.Unlock()
	d.outMu.Lock()
	defer d.outMu.Unlock()

	return d.closeStreams()
}

func (d *PortAudio) closeStreams() error {
	var errs []error
	for _, s := range []*portaudio.Stream{d.in, d.out} {
		if s == nil {
			continue
		}
		if err := s.Stop(); err != nil && !errors.Is(err, portaudio.StreamIsStopped) {
			errs = append(errs, err)
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		d.logger.Warn("Error closing PortAudio device", slog.String("error", err.Error()))
		return fmt.Errorf("failed to close portaudio device: %w", err)
	}

	d.logger.Info("PortAudio device closed")
	return nil
}
