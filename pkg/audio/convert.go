package audio

import (
	"encoding/binary"
	"math"
)

// Convert returns clip converted to the target format. When the source
// format already matches the target the clip is returned unchanged (zero
// allocation). Downmixing happens before resampling so stereo data is never
// resampled when the target is mono.
func Convert(clip Clip, target Format) Clip {
	if clip.Format == target || len(clip.Data) == 0 {
		clip.Format = target
		return clip
	}

	pcm := clip.Data
	cur := clip.Format

	if cur.Channels == 2 && target.Channels == 1 {
		pcm = StereoToMono(pcm)
		cur.Channels = 1
	}
	if cur.SampleRate != target.SampleRate {
		pcm = Resample(pcm, cur.Channels, cur.SampleRate, target.SampleRate)
		cur.SampleRate = target.SampleRate
	}
	if cur.Channels == 1 && target.Channels == 2 {
		pcm = MonoToStereo(pcm)
		cur.Channels = 2
	}

	return Clip{Data: pcm, Format: cur}
}

// Resample converts PCM from srcRate to dstRate using linear interpolation,
// preserving the channel interleave. If the rates match or the input is too
// short to interpolate, the input is returned unchanged.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if channels <= 0 || srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	frameBytes := channels * bytesPerSample
	if srcRate == dstRate || len(pcm) < frameBytes {
		return pcm
	}

	srcFrames := len(pcm) / frameBytes
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*frameBytes)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		for ch := range channels {
			o0 := srcIdx*frameBytes + ch*bytesPerSample
			s0 := int16(pcm[o0]) | int16(pcm[o0+1])<<8
			s1 := s0
			if srcIdx+1 < srcFrames {
				o1 := o0 + frameBytes
				s1 = int16(pcm[o1]) | int16(pcm[o1+1])<<8
			}

			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			oo := i*frameBytes + ch*bytesPerSample
			out[oo] = byte(v)
			out[oo+1] = byte(v >> 8)
		}
	}
	return out
}

// MonoToStereo duplicates each mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame to produce mono output, using
// int32 arithmetic to avoid overflow and clamping to the int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2

		if avg > math.MaxInt16 {
			avg = math.MaxInt16
		} else if avg < math.MinInt16 {
			avg = math.MinInt16
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// RMS returns the root-mean-square energy of a PCM buffer, expressed in the
// same units as 16-bit sample values (0 to 32767). Returns 0 for buffers
// shorter than one sample. Recognizers use this to gate silence.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// DurationMs returns the play time of a raw PCM chunk in milliseconds for
// the given format, or 0 when the format is incomplete.
func DurationMs(chunk []byte, f Format) int {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return len(chunk) * 1000 / bps
}

// Float32Mono converts PCM to mono float32 samples normalised to
// [-1.0, 1.0], down-mixing by averaging channels per frame. This is the
// input form whisper.cpp expects.
func Float32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		n := len(pcm) / 2
		samples := make([]float32, n)
		for i := range n {
			s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			samples[i] = float32(s) / 32768.0
		}
		return samples
	}

	perChannel := len(pcm) / (2 * channels)
	mono := make([]float32, perChannel)
	for i := range perChannel {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(s) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
