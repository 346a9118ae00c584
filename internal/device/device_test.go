package device

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenNullBackend(t *testing.T) {
	dev, err := Open(Config{Backend: "null", SampleRate: 16000, FrameSamples: 512}, testLogger())
	if err != nil {
		t.Fatalf("Failed to open null device: %v", err)
	}
	defer dev.Close()

	if _, ok := dev.(*Null); !ok {
		t.Errorf("Expected *Null, got %T", dev)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "oss"}, testLogger())
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestNullCaptureHonorsTimeout(t *testing.T) {
	dev := NewNull()

	start := time.Now()
	n, err := dev.Capture(make([]byte, 1024), 10*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes, got %d", n)
	}
	if elapsed < 10*time.Millisecond {
		t.Errorf("Expected capture to wait for its timeout, took %v", elapsed)
	}
}

func TestNullPlayDiscards(t *testing.T) {
	dev := NewNull()

	n, err := dev.Play(make([]byte, 1024), 10*time.Millisecond)
	if err != nil || n != 1024 {
		t.Fatalf("Expected 1024 bytes played, got %d (err=%v)", n, err)
	}
	if dev.BytesPlayed() != 1024 {
		t.Errorf("Expected 1024 bytes counted, got %d", dev.BytesPlayed())
	}

	dev.Close()
	if _, err := dev.Play(make([]byte, 2), time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
	if _, err := dev.Capture(make([]byte, 2), time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}
