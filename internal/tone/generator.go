package tone

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/protocol"
	"github.com/skypro1111/udp-intercom/internal/session"
)

// Player writes wire-format audio to the local output
type Player interface {
	Play(buf []byte, timeout time.Duration) (int, error)
}

// Config describes the alert beep pattern
type Config struct {
	Frequency    int
	Volume       float64 // fraction of full scale
	SampleRate   int
	FrameSamples int
	Beep         time.Duration
	Silence      time.Duration
}

// Generator plays a square-wave beep pattern on the local output while its
// trigger switch is on. At most one worker runs at a time.
type Generator struct {
	cfg     Config
	player  Player
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	trigger   session.BooleanSource
	indicator session.BooleanSink

	running atomic.Bool
	wg      sync.WaitGroup

	frame       []byte // one frame of square wave, built once
	beepSamples int
}

// NewGenerator creates a generator writing to player
func NewGenerator(cfg Config, player Player, logger *slog.Logger) (*Generator, error) {
	if cfg.Frequency <= 0 || cfg.Frequency*2 > cfg.SampleRate {
		return nil, fmt.Errorf("frequency must be between 1 and %d Hz, got %d", cfg.SampleRate/2, cfg.Frequency)
	}

	if cfg.Volume < 0 || cfg.Volume > 1 {
		return nil, fmt.Errorf("volume must be between 0 and 1, got %g", cfg.Volume)
	}

	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("frame samples must be positive, got %d", cfg.FrameSamples)
	}

	if cfg.Beep <= 0 {
		return nil, fmt.Errorf("beep duration must be positive, got %v", cfg.Beep)
	}

	return &Generator{
		cfg:         cfg,
		player:      player,
		logger:      logger,
		frame:       SquareWave(cfg.Frequency, cfg.Volume, cfg.SampleRate, cfg.FrameSamples),
		beepSamples: int(int64(cfg.SampleRate) * int64(cfg.Beep) / int64(time.Second)),
	}, nil
}

// SquareWave returns n samples of a square wave in the wire byte format. The
// level flips every half period, rounded to whole samples.
func SquareWave(frequency int, volume float64, sampleRate, n int) []byte {
	half := max(sampleRate/(2*frequency), 1)
	amplitude := int16(math.Round(volume * math.MaxInt16))

	samples := make([]int16, n)
	for i := range samples {
		if (i/half)%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return protocol.EncodeSamples(nil, samples)
}

// SetMetrics attaches metrics
func (g *Generator) SetMetrics(m *metrics.Metrics) {
	g.metrics = m
}

// Bind sets the switch that keeps the tone playing. When the switch also
// accepts state it is switched off when the worker exits.
func (g *Generator) Bind(trigger session.BooleanSource) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.trigger = trigger
	g.indicator, _ = trigger.(session.BooleanSink)
}

func (g *Generator) triggered() bool {
	g.mu.RLock()
	trigger := g.trigger
	g.mu.RUnlock()
	return trigger != nil && trigger.State()
}

// Running reports whether a worker is active
func (g *Generator) Running() bool {
	return g.running.Load()
}

// Start launches the worker unless one is already running. It returns false
// when a worker is running or ctx is already done.
func (g *Generator) Start(ctx context.Context) bool {
	if !g.running.CompareAndSwap(false, true) {
		return false
	}

	if err := ctx.Err(); err != nil {
		g.running.Store(false)
		g.logger.Error("Failed to start alert tone", slog.String("error", err.Error()))
		return false
	}

	g.metrics.SetToneActive(true)
	g.logger.Info("Alert tone started", slog.Int("frequency", g.cfg.Frequency))

	g.wg.Add(1)
	go g.run(ctx)
	return true
}

// Wait blocks until the worker has exited
func (g *Generator) Wait() {
	g.wg.Wait()
}

func (g *Generator) run(ctx context.Context) {
	defer g.wg.Done()
	defer g.finish()

	for g.active(ctx) {
		if !g.beep(ctx) {
			return
		}
		if !g.pause(ctx) {
			return
		}
	}
}

func (g *Generator) active(ctx context.Context) bool {
	return ctx.Err() == nil && g.triggered()
}

// beep plays one beep in frame-sized chunks, checking the trigger before each
func (g *Generator) beep(ctx context.Context) bool {
	for left := g.beepSamples; left > 0; {
		if !g.active(ctx) {
			return false
		}

		n := min(left, g.cfg.FrameSamples)
		chunk := g.frame[:n*protocol.BytesPerSample]
		if _, err := g.player.Play(chunk, protocol.FrameDuration(len(chunk))+g.cfg.Beep); err != nil {
			g.logger.Debug("Alert tone playback failed", slog.String("error", err.Error()))
		}
		left -= n
	}
	return true
}

func (g *Generator) pause(ctx context.Context) bool {
	if g.cfg.Silence <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(g.cfg.Silence)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// finish switches the indicator off once and frees the slot for a new worker
func (g *Generator) finish() {
	g.mu.RLock()
	indicator := g.indicator
	g.mu.RUnlock()

	if indicator != nil {
		indicator.PublishState(false)
	}

	g.metrics.SetToneActive(false)
	g.running.Store(false)
	g.logger.Info("Alert tone stopped")
}
