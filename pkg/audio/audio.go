// Package audio provides the PCM plumbing shared by recognizer inputs and
// synthesizer outputs: clip and format types, a WAV container codec,
// sample-rate and channel conversion, and energy measurement.
//
// All PCM data is 16-bit signed little-endian. A [Clip] is the unit a
// synthesizer produces and an output sink consumes; recognizers work on raw
// byte chunks in a fixed [Format].
package audio

import (
	"fmt"
	"time"
)

// bytesPerSample is fixed at 2 for 16-bit PCM.
const bytesPerSample = 2

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	// SampleRate in Hz (e.g., 16000 for speech recognition, 48000 for
	// Discord voice).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int
}

// String returns a human-readable description, e.g. "24000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// BytesPerSecond returns the PCM byte rate of the format, or 0 when the
// format is not fully specified.
func (f Format) BytesPerSecond() int {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return f.SampleRate * f.Channels * bytesPerSample
}

// Clip is a finite run of PCM audio in a known format.
type Clip struct {
	Data   []byte
	Format Format
}

// Duration returns the play time of the clip, or 0 when the format is
// incomplete.
func (c Clip) Duration() time.Duration {
	bps := c.Format.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(len(c.Data)) * time.Second / time.Duration(bps)
}

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
// A trailing odd byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
