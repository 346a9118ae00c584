// Package audio records link audio to WAV files for diagnostics. Frames are
// decoded from the big-endian wire format and written as mono 16-bit PCM.
package audio
