package link

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/skypro1111/udp-intercom/internal/audio"
	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/protocol"
	"github.com/skypro1111/udp-intercom/internal/session"
	"github.com/skypro1111/udp-intercom/internal/suppress"
	"github.com/skypro1111/udp-intercom/internal/transport"
)

// ReceiveConfig holds the receive loop timing
type ReceiveConfig struct {
	BufferBytes     int
	ReceiveTimeout  time.Duration
	PlaybackTimeout time.Duration
	PeerTimeout     time.Duration
	Yield           time.Duration
	IdleSleep       time.Duration
}

// ReceiveStream plays inbound frames and owns the peer lock. For every frame
// it locks the sender if the link is unlocked, then feeds the frame energy to
// echo suppression, then plays it. Locks with no traffic for longer than the
// peer timeout are released.
type ReceiveStream struct {
	cfg        ReceiveConfig
	state      *session.State
	suppressor *suppress.Controller
	player     Player
	receiver   FrameReceiver
	logger     *slog.Logger

	clock    Clock
	metrics  *metrics.Metrics
	recorder *audio.Recorder

	buf []byte
}

// NewReceiveStream creates a receive stream over the given device and socket
func NewReceiveStream(cfg ReceiveConfig, state *session.State, suppressor *suppress.Controller, player Player, receiver FrameReceiver, logger *slog.Logger) *ReceiveStream {
	if cfg.BufferBytes <= 0 {
		cfg.BufferBytes = protocol.MaxDatagram
	}

	return &ReceiveStream{
		cfg:        cfg,
		state:      state,
		suppressor: suppressor,
		player:     player,
		receiver:   receiver,
		logger:     logger,
		clock:      SystemClock,
		buf:        make([]byte, cfg.BufferBytes),
	}
}

// SetClock replaces the wall clock
func (r *ReceiveStream) SetClock(c Clock) {
	r.clock = c
}

// SetMetrics attaches metrics
func (r *ReceiveStream) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// SetRecorder taps every played frame into rec
func (r *ReceiveStream) SetRecorder(rec *audio.Recorder) {
	r.recorder = rec
}

// Run loops until ctx is cancelled and always returns nil
func (r *ReceiveStream) Run(ctx context.Context) error {
	r.reset()

	r.logger.Info("Receive stream started",
		slog.Duration("peer_timeout", r.cfg.PeerTimeout),
		slog.Int("threshold", r.suppressor.GetThreshold()),
	)

	for ctx.Err() == nil {
		if !r.step() && !sleep(ctx, r.cfg.IdleSleep) {
			break
		}
		r.expire()
		if !sleep(ctx, r.cfg.Yield) {
			break
		}
	}

	r.logger.Info("Receive stream stopped")
	return nil
}

// reset puts suppression back to unmuted with the capture gate open
func (r *ReceiveStream) reset() {
	r.suppressor.Reset()
	r.state.SetCaptureSuppressed(false)
	r.metrics.SetCaptureSuppressed(false)
}

// step receives and handles at most one frame. It reports false when
// playback is switched off and the loop should idle.
func (r *ReceiveStream) step() bool {
	if !r.state.PlaybackEnabled() {
		return false
	}

	n, src, err := r.receiver.Receive(r.buf, r.cfg.ReceiveTimeout)
	if err != nil {
		if !errors.Is(err, transport.ErrTimeout) {
			r.logger.Debug("Receive failed", slog.String("error", err.Error()))
		}
		return true
	}

	frame := r.buf[:n]
	if err := protocol.ValidateFrame(frame); err != nil {
		r.logger.Debug("Dropping datagram",
			slog.String("source", src.String()),
			slog.String("error", err.Error()),
		)
		return true
	}

	r.handle(frame, src)
	return true
}

func (r *ReceiveStream) handle(frame []byte, src netip.AddrPort) {
	peer, locked := r.state.Observe(src.Addr(), r.clock.Now())
	if locked {
		r.metrics.RecordPeerLocked()
		r.logger.Info("Partner locked",
			slog.String("partner", peer.Addr.String()),
			slog.String("lock_id", peer.ID.String()),
		)
	}

	rms := protocol.RMS(frame)
	r.metrics.RecordFrameReceived(rms)

	decision := r.suppressor.Update(rms)
	r.state.SetCaptureSuppressed(decision.Muted)
	if decision.Changed {
		r.metrics.SetCaptureSuppressed(decision.Muted)
		if decision.Muted {
			r.logger.Info("Capture muted by echo suppression", slog.Int("rms", rms))
		} else {
			r.logger.Info("Capture restored after quiet period")
		}
	}

	_, err := r.player.Play(frame, r.cfg.PlaybackTimeout)
	r.metrics.RecordFramePlayed(err)
	if err != nil {
		r.logger.Debug("Playback failed", slog.String("error", err.Error()))
		return
	}

	r.recorder.WriteFrame(frame)
}

// expire releases a lock that has seen no traffic for longer than the peer
// timeout
func (r *ReceiveStream) expire() {
	peer, expired := r.state.Expire(r.clock.Now(), r.cfg.PeerTimeout)
	if !expired {
		return
	}

	r.metrics.RecordPeerTimeout()
	r.logger.Info("Partner lock expired",
		slog.String("partner", peer.Addr.String()),
		slog.String("lock_id", peer.ID.String()),
		slog.Duration("locked_for", r.clock.Now().Sub(peer.LockedAt)),
	)
}
