package tone

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypro1111/udp-intercom/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		Frequency:    440,
		Volume:       0.05,
		SampleRate:   protocol.SampleRate,
		FrameSamples: protocol.FrameSamples,
		Beep:         50 * time.Millisecond,
		Silence:      50 * time.Millisecond,
	}
}

// alertSwitch is a trigger that also counts how often it was switched off
type alertSwitch struct {
	state atomic.Bool
	offs  atomic.Int32
}

func (a *alertSwitch) State() bool { return a.state.Load() }

func (a *alertSwitch) PublishState(state bool) {
	if !state {
		a.offs.Add(1)
	}
	a.state.Store(state)
}

type funcPlayer struct {
	mu     sync.Mutex
	chunks []int
	onPlay func(chunk int)
}

func (p *funcPlayer) Play(buf []byte, timeout time.Duration) (int, error) {
	p.mu.Lock()
	p.chunks = append(p.chunks, len(buf))
	count := len(p.chunks)
	p.mu.Unlock()

	if p.onPlay != nil {
		p.onPlay(count)
	}
	return len(buf), nil
}

func (p *funcPlayer) played() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.chunks...)
}

func newGenerator(t *testing.T, player Player) *Generator {
	t.Helper()
	g, err := NewGenerator(testConfig(), player, testLogger())
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}
	return g
}

func TestSquareWave(t *testing.T) {
	frame := SquareWave(440, 0.05, protocol.SampleRate, protocol.FrameSamples)

	if len(frame) != protocol.FrameBytes {
		t.Fatalf("Expected %d bytes, got %d", protocol.FrameBytes, len(frame))
	}

	// 16000 / (2 * 440) rounds down to 18 samples per half period
	for i := 0; i < 72; i++ {
		want := int16(1638)
		if (i/18)%2 == 1 {
			want = -1638
		}
		if got := protocol.Sample(frame, i); got != want {
			t.Fatalf("Sample %d: expected %d, got %d", i, want, got)
		}
	}

	if frame[0] != 0x06 || frame[1] != 0x66 {
		t.Errorf("Expected big-endian 0x0666, got %#02x %#02x", frame[0], frame[1])
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero frequency", func(c *Config) { c.Frequency = 0 }},
		{"above nyquist", func(c *Config) { c.Frequency = 9000 }},
		{"negative volume", func(c *Config) { c.Volume = -0.1 }},
		{"volume above full scale", func(c *Config) { c.Volume = 1.5 }},
		{"zero frame", func(c *Config) { c.FrameSamples = 0 }},
		{"zero beep", func(c *Config) { c.Beep = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			if _, err := NewGenerator(cfg, &funcPlayer{}, testLogger()); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestBeepIsChunkedByFrame(t *testing.T) {
	trigger := &alertSwitch{}
	trigger.state.Store(true)

	player := &funcPlayer{}
	player.onPlay = func(count int) {
		if count == 2 {
			trigger.state.Store(false)
		}
	}

	g := newGenerator(t, player)
	g.Bind(trigger)

	if !g.Start(context.Background()) {
		t.Fatal("Expected tone to start")
	}
	g.Wait()

	// 50 ms at 16 kHz is 800 samples: one full frame and a 288 sample tail
	chunks := player.played()
	if len(chunks) != 2 || chunks[0] != 1024 || chunks[1] != 576 {
		t.Errorf("Expected chunks [1024 576], got %v", chunks)
	}
}

func TestBeepAbortsWhenTriggerDrops(t *testing.T) {
	trigger := &alertSwitch{}
	trigger.state.Store(true)

	player := &funcPlayer{}
	player.onPlay = func(int) { trigger.state.Store(false) }

	g := newGenerator(t, player)
	g.Bind(trigger)

	g.Start(context.Background())
	g.Wait()

	if chunks := player.played(); len(chunks) != 1 {
		t.Errorf("Expected beep to stop after 1 chunk, got %v", chunks)
	}
	if g.Running() {
		t.Error("Expected generator to be stopped")
	}
	if trigger.offs.Load() != 1 {
		t.Errorf("Expected indicator switched off once, got %d", trigger.offs.Load())
	}
}

func TestStartIsIdempotent(t *testing.T) {
	trigger := &alertSwitch{}
	trigger.state.Store(true)

	release := make(chan struct{})
	player := &funcPlayer{}
	player.onPlay = func(int) { <-release }

	g := newGenerator(t, player)
	g.Bind(trigger)

	if !g.Start(context.Background()) {
		t.Fatal("Expected first start to succeed")
	}
	if g.Start(context.Background()) {
		t.Error("Expected second start to be refused while running")
	}
	if !g.Running() {
		t.Error("Expected generator to report running")
	}

	trigger.state.Store(false)
	close(release)
	g.Wait()

	if g.Running() {
		t.Error("Expected generator to stop when the trigger drops")
	}
	if trigger.offs.Load() != 1 {
		t.Errorf("Expected indicator switched off once, got %d", trigger.offs.Load())
	}

	trigger.state.Store(true)
	player.onPlay = func(int) { trigger.state.Store(false) }
	if !g.Start(context.Background()) {
		t.Error("Expected restart after the worker exited")
	}
	g.Wait()
}

func TestStartRollsBackOnCancelledContext(t *testing.T) {
	trigger := &alertSwitch{}
	trigger.state.Store(true)

	g := newGenerator(t, &funcPlayer{})
	g.Bind(trigger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if g.Start(ctx) {
		t.Fatal("Expected start to fail with a cancelled context")
	}
	if g.Running() {
		t.Error("Expected running flag to be rolled back")
	}
	if trigger.offs.Load() != 0 {
		t.Errorf("Expected indicator untouched, got %d offs", trigger.offs.Load())
	}
}

func TestCancelStopsTone(t *testing.T) {
	trigger := &alertSwitch{}
	trigger.state.Store(true)

	g := newGenerator(t, &funcPlayer{})
	g.Bind(trigger)

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected tone worker to exit after cancel")
	}

	if trigger.State() {
		t.Error("Expected indicator to be switched off")
	}
	if trigger.offs.Load() != 1 {
		t.Errorf("Expected indicator switched off once, got %d", trigger.offs.Load())
	}
}
