package link

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/skypro1111/udp-intercom/internal/audio"
	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/session"
)

// TransmitConfig holds the transmit loop timing
type TransmitConfig struct {
	Port           uint16
	FrameBytes     int
	CaptureTimeout time.Duration
	Yield          time.Duration
	IdleSleep      time.Duration
}

// TransmitStream captures local audio and sends it, unchanged, to the
// locked partner while the capture gate is open.
type TransmitStream struct {
	cfg      TransmitConfig
	state    *session.State
	capturer Capturer
	sender   FrameSender
	logger   *slog.Logger

	metrics  *metrics.Metrics
	recorder *audio.Recorder

	buf []byte
}

// NewTransmitStream creates a transmit stream over the given device and socket
func NewTransmitStream(cfg TransmitConfig, state *session.State, capturer Capturer, sender FrameSender, logger *slog.Logger) *TransmitStream {
	return &TransmitStream{
		cfg:      cfg,
		state:    state,
		capturer: capturer,
		sender:   sender,
		logger:   logger,
		buf:      make([]byte, cfg.FrameBytes),
	}
}

// SetMetrics attaches metrics
func (t *TransmitStream) SetMetrics(m *metrics.Metrics) {
	t.metrics = m
}

// SetRecorder taps every sent frame into r
func (t *TransmitStream) SetRecorder(r *audio.Recorder) {
	t.recorder = r
}

// Run loops until ctx is cancelled. It always returns nil so a stopping
// transmit stream never tears down the receive side.
func (t *TransmitStream) Run(ctx context.Context) error {
	t.logger.Info("Transmit stream started",
		slog.Int("port", int(t.cfg.Port)),
		slog.Int("frame_bytes", t.cfg.FrameBytes),
	)

	for ctx.Err() == nil {
		if !t.step() && !sleep(ctx, t.cfg.IdleSleep) {
			break
		}
		if !sleep(ctx, t.cfg.Yield) {
			break
		}
	}

	t.logger.Info("Transmit stream stopped")
	return nil
}

// step runs one iteration and reports whether the stream was active.
// It is idle while capture is gated or no partner is locked.
func (t *TransmitStream) step() bool {
	if !t.state.CaptureEnabled() {
		return false
	}

	partner, ok := t.state.Partner()
	if !ok {
		return false
	}

	n, err := t.capturer.Capture(t.buf, t.cfg.CaptureTimeout)
	if err != nil {
		t.logger.Debug("Capture failed", slog.String("error", err.Error()))
		return true
	}
	if n == 0 {
		return true
	}

	frame := t.buf[:n]
	t.metrics.RecordFrameCaptured()

	err = t.sender.Send(netip.AddrPortFrom(partner, t.cfg.Port), frame)
	t.metrics.RecordFrameSent(err)
	if err != nil {
		t.logger.Debug("Failed to send frame",
			slog.String("partner", partner.String()),
			slog.String("error", err.Error()),
		)
		return true
	}

	t.recorder.WriteFrame(frame)
	return true
}
