package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/skypro1111/udp-intercom/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRecorderWritesValidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rx.wav")

	rec, err := NewRecorder(path, protocol.SampleRate, testLogger())
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}

	samples := make([]int16, protocol.FrameSamples)
	for i := range samples {
		samples[i] = int16(i*64 - 16384)
	}
	frame := protocol.EncodeSamples(nil, samples)

	rec.WriteFrame(frame)
	rec.WriteFrame(frame)

	if rec.Frames() != 2 {
		t.Errorf("Expected 2 frames written, got %d", rec.Frames())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Failed to close recorder: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open recording: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("Expected a valid WAV file")
	}
	if dec.SampleRate != protocol.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", protocol.SampleRate, dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("Expected 1 channel, got %d", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Errorf("Expected 16-bit, got %d", dec.BitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode recording: %v", err)
	}
	if len(pcm.Data) != 2*len(samples) {
		t.Fatalf("Expected %d samples, got %d", 2*len(samples), len(pcm.Data))
	}
	for i, s := range samples {
		if pcm.Data[i] != int(s) || pcm.Data[len(samples)+i] != int(s) {
			t.Fatalf("Sample %d mismatch: expected %d, got %d/%d", i, s, pcm.Data[i], pcm.Data[len(samples)+i])
		}
	}
}

func TestRecorderDoesNotRetainFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.wav")
	rec, err := NewRecorder(path, protocol.SampleRate, testLogger())
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}
	defer rec.Close()

	frame := []byte{0x01, 0x02, 0x03, 0x04}
	rec.WriteFrame(frame)
	frame[0] = 0xFF

	if rec.samples[0] != 0x0102 {
		t.Errorf("Expected recorder copy to keep 0x0102, got %#x", rec.samples[0])
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.WriteFrame([]byte{0, 1})
	if rec.Frames() != 0 {
		t.Error("Expected nil recorder to report 0 frames")
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Expected nil close to succeed, got %v", err)
	}
}

func TestNewRecorderBadPath(t *testing.T) {
	_, err := NewRecorder(filepath.Join(t.TempDir(), "missing", "x.wav"), protocol.SampleRate, testLogger())
	if err == nil {
		t.Error("Expected error for a path in a missing directory")
	}
}
