package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/vhfnav/readback/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestMonoToStereo(t *testing.T) {
	mono := samplesToBytes([]int16{100, 200, 300})
	stereo := audio.MonoToStereo(mono)
	got := bytesToSamples(stereo)
	want := []int16{100, 100, 200, 200, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	mono := audio.StereoToMono(stereo)
	got := bytesToSamples(mono)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	// Two max-positive samples should clamp to 32767 (not overflow).
	stereo := samplesToBytes([]int16{32767, 32767})
	mono := audio.StereoToMono(stereo)
	got := bytesToSamples(mono)
	if len(got) != 1 {
		t.Fatalf("length mismatch: got %d, want 1", len(got))
	}
	if got[0] != 32767 {
		t.Errorf("got %d, want 32767", got[0])
	}
}

func TestResample_SameRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := audio.Resample(pcm, 1, 48000, 48000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResample_MonoUpsample(t *testing.T) {
	// 2 samples at 16kHz -> 6 samples at 48kHz (3x)
	pcm := samplesToBytes([]int16{1000, 2000})
	out := audio.Resample(pcm, 1, 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	last := got[len(got)-1]
	if last < 1800 || last > 2200 {
		t.Errorf("last sample: got %d, want close to 2000", last)
	}
}

func TestResample_MonoDownsample(t *testing.T) {
	// 6 samples at 48kHz -> 2 samples at 16kHz (1/3x)
	pcm := samplesToBytes([]int16{100, 200, 300, 400, 500, 600})
	out := audio.Resample(pcm, 1, 48000, 16000)
	got := bytesToSamples(out)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
}

func TestResample_Stereo(t *testing.T) {
	// 2 stereo frames at 16kHz -> 6 stereo frames (12 samples) at 48kHz
	pcm := samplesToBytes([]int16{100, 200, 300, 400})
	out := audio.Resample(pcm, 2, 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(got))
	}
	// Stereo interleave must survive: first frame unchanged.
	if got[0] != 100 || got[1] != 200 {
		t.Errorf("first frame: got L=%d R=%d, want L=100 R=200", got[0], got[1])
	}
}

func TestConvert_NoOp(t *testing.T) {
	target := audio.Format{SampleRate: 48000, Channels: 2}
	clip := audio.Clip{
		Data:   samplesToBytes([]int16{100, 200}),
		Format: target,
	}
	result := audio.Convert(clip, target)
	if &result.Data[0] != &clip.Data[0] {
		t.Error("matching formats should return the input slice unmodified")
	}
}

func TestConvert_FullChain(t *testing.T) {
	// 24 kHz mono (synthesizer output) -> 48 kHz stereo (Discord voice).
	clip := audio.Clip{
		Data:   samplesToBytes([]int16{1000, 2000, 3000, 4000}),
		Format: audio.Format{SampleRate: 24000, Channels: 1},
	}
	target := audio.Format{SampleRate: 48000, Channels: 2}
	out := audio.Convert(clip, target)
	if out.Format != target {
		t.Fatalf("format: got %v, want %v", out.Format, target)
	}
	// 4 mono frames at 24k -> 8 mono frames at 48k -> 8 stereo frames.
	if wantBytes := 8 * 4; len(out.Data) != wantBytes {
		t.Errorf("data size: got %d bytes, want %d", len(out.Data), wantBytes)
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	// A constant signal's RMS equals its amplitude.
	pcm := samplesToBytes([]int16{1000, 1000, 1000, 1000})
	got := audio.RMS(pcm)
	if got < 999 || got > 1001 {
		t.Errorf("RMS of constant 1000 signal = %v, want 1000", got)
	}
	if silent := audio.RMS(samplesToBytes([]int16{0, 0, 0})); silent != 0 {
		t.Errorf("RMS of silence = %v, want 0", silent)
	}
}

func TestDurationMs(t *testing.T) {
	f := audio.Format{SampleRate: 16000, Channels: 1}
	// 16000 samples/s * 2 B = 32 B/ms; 320 bytes = 10 ms.
	if got := audio.DurationMs(make([]byte, 320), f); got != 10 {
		t.Errorf("got %d ms, want 10", got)
	}
	if got := audio.DurationMs(make([]byte, 320), audio.Format{}); got != 0 {
		t.Errorf("incomplete format: got %d ms, want 0", got)
	}
}

func TestFloat32Mono(t *testing.T) {
	// Stereo frame L=16384, R=-16384 should average to 0.
	pcm := samplesToBytes([]int16{16384, -16384, 8192, 8192})
	out := audio.Float32Mono(pcm, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[0] != 0 {
		t.Errorf("sample 0: got %v, want 0", out[0])
	}
	if out[1] < 0.24 || out[1] > 0.26 {
		t.Errorf("sample 1: got %v, want 0.25", out[1])
	}
}
