package audio

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/skypro1111/udp-intercom/internal/protocol"
)

// wavFormatPCM is the WAVE format tag for integer PCM
const wavFormatPCM = 1

// Recorder appends link frames to a mono 16-bit WAV file. It is a
// diagnostics tap: write failures disable the recorder instead of reaching
// the audio path. A nil *Recorder ignores all calls.
type Recorder struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	samples []int16
	failed  bool
	frames  uint64
}

// NewRecorder creates path and prepares it for frames at sampleRate
func NewRecorder(path string, sampleRate int, logger *slog.Logger) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording %s: %w", path, err)
	}

	logger.Info("Recording link audio", slog.String("path", path))

	return &Recorder{
		path:   path,
		logger: logger,
		file:   file,
		enc:    wav.NewEncoder(file, sampleRate, protocol.BitsPerSample, protocol.Channels, wavFormatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: protocol.Channels, SampleRate: sampleRate},
			SourceBitDepth: protocol.BitsPerSample,
		},
	}, nil
}

// WriteFrame appends the samples of one wire-format frame. The frame is
// decoded into recorder-owned memory and not retained.
func (r *Recorder) WriteFrame(frame []byte) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failed || r.enc == nil {
		return
	}

	r.samples = protocol.DecodeSamples(r.samples, frame)
	if cap(r.buf.Data) < len(r.samples) {
		r.buf.Data = make([]int, len(r.samples))
	}
	r.buf.Data = r.buf.Data[:len(r.samples)]
	for i, s := range r.samples {
		r.buf.Data[i] = int(s)
	}

	if err := r.enc.Write(r.buf); err != nil {
		r.failed = true
		r.logger.Error("Recording disabled after write failure",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return
	}
	r.frames++
}

// Frames returns the number of frames written
func (r *Recorder) Frames() uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalizes the WAV header and closes the file
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		return nil
	}

	encErr := r.enc.Close()
	fileErr := r.file.Close()
	r.enc = nil

	if encErr != nil {
		return fmt.Errorf("failed to finalize recording %s: %w", r.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close recording %s: %w", r.path, fileErr)
	}

	r.logger.Info("Recording closed",
		slog.String("path", r.path),
		slog.Uint64("frames", r.frames),
	)
	return nil
}
