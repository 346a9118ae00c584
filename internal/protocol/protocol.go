package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Link constants. Frames carry raw PCM with no header, sequence number or
// acknowledgement.
const (
	DefaultPort = 8000

	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8

	// FrameBytes is the nominal datagram payload size (512 samples)
	FrameBytes   = 1024
	FrameSamples = FrameBytes / BytesPerSample

	// MaxDatagram is the largest UDP payload a receiver accepts
	MaxDatagram = 65507
)

// ByteOrder is the sample byte order on the wire and at the device boundary
var ByteOrder = binary.BigEndian

// SampleCount returns the number of whole samples in a frame. A trailing odd
// byte is not part of any sample.
func SampleCount(frame []byte) int {
	return len(frame) / BytesPerSample
}

// Sample returns the i-th 16-bit sample of a frame
func Sample(frame []byte, i int) int16 {
	return int16(ByteOrder.Uint16(frame[i*BytesPerSample:]))
}

// DecodeSamples decodes a frame into dst and returns the filled slice. dst is
// grown when it is too small.
func DecodeSamples(dst []int16, frame []byte) []int16 {
	n := SampleCount(frame)
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = Sample(frame, i)
	}
	return dst
}

// EncodeSamples encodes samples into dst and returns the filled slice
func EncodeSamples(dst []byte, samples []int16) []byte {
	n := len(samples) * BytesPerSample
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range samples {
		ByteOrder.PutUint16(dst[i*BytesPerSample:], uint16(s))
	}
	return dst
}

// RMS returns the root mean square of the frame's samples on the 16-bit
// scale. Squares are accumulated in 64 bits so a full-scale frame of any
// realistic size cannot overflow. An empty frame has RMS 0.
func RMS(frame []byte) int {
	n := SampleCount(frame)
	if n == 0 {
		return 0
	}

	var sum int64
	for i := 0; i < n; i++ {
		s := int64(Sample(frame, i))
		sum += s * s
	}

	return int(math.Sqrt(float64(sum / int64(n))))
}

// FrameDuration returns the playback time of a frame of the given size in bytes
func FrameDuration(size int) time.Duration {
	return time.Duration(size/BytesPerSample) * time.Second / SampleRate
}

// ValidateFrame checks that a datagram can be treated as a PCM frame
func ValidateFrame(frame []byte) error {
	if len(frame) < BytesPerSample {
		return fmt.Errorf("frame too short: expected at least %d bytes, got %d", BytesPerSample, len(frame))
	}

	if len(frame) > MaxDatagram {
		return fmt.Errorf("frame too long: expected at most %d bytes, got %d", MaxDatagram, len(frame))
	}

	return nil
}
