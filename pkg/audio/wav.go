package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of a canonical 44-byte RIFF/WAV header with a
// single fmt and data chunk, as produced by [EncodeWAV].
const wavHeaderSize = 44

// ErrNotWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE
// container.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE container")

// EncodeWAV wraps a PCM clip in a standard RIFF/WAV container. The returned
// byte slice is suitable for writing to disk or uploading directly.
func EncodeWAV(clip Clip) []byte {
	const bitsPerSample = bytesPerSample * 8
	byteRate := clip.Format.BytesPerSecond()
	blockAlign := clip.Format.Channels * bytesPerSample
	dataSize := len(clip.Data)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(clip.Format.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(clip.Format.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], clip.Data)

	return buf
}

// DecodeWAV parses a RIFF/WAV container and returns the contained PCM clip.
// Only uncompressed 16-bit PCM is supported; other encodings return an error.
// Chunks other than fmt and data are skipped, so containers with LIST or
// cue chunks decode fine.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		format  Format
		pcm     []byte
		sawFmt  bool
		sawData bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return Clip{}, fmt.Errorf("audio: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("audio: fmt chunk too small (%d bytes)", size)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return Clip{}, fmt.Errorf("audio: unsupported WAV encoding %d (want PCM)", audioFormat)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return Clip{}, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bits)
			}
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
			sawData = true
		}

		// Chunks are word-aligned; odd sizes carry one padding byte.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt || !sawData {
		return Clip{}, errors.New("audio: WAV missing fmt or data chunk")
	}
	return Clip{Data: pcm, Format: format}, nil
}
