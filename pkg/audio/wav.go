package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	wavHeaderSize  = 44
	wavFormatPCM   = 1
)

// ErrInvalidWAV is returned by [ParseWAV] for anything that is not a 16-bit
// PCM RIFF/WAVE file.
var ErrInvalidWAV = errors.New("audio: invalid WAV")

// EncodeWAV wraps the clip's PCM in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bytesPerSample
	blockAlign := c.Channels * bytesPerSample
	dataSize := len(c.PCM)

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], c.PCM)

	return buf
}

// ParseWAV walks the RIFF chunks of wav and returns the PCM payload of the
// data chunk. Non-PCM encodings, bit depths other than 16 and sample rates
// outside [MinSampleRate, MaxSampleRate] are rejected.
// A data chunk whose declared size overruns the buffer is truncated to what
// is present, which is how streaming encoders that never patch the header
// behave.
func ParseWAV(wav []byte) (Clip, error) {
	if len(wav) < 12 {
		return Clip{}, fmt.Errorf("%w: %d bytes is too short for a RIFF header", ErrInvalidWAV, len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: missing RIFF/WAVE identifiers", ErrInvalidWAV)
	}

	var (
		clip     Clip
		foundFmt bool
	)
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return Clip{}, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			f := wav[body:]
			if tag := binary.LittleEndian.Uint16(f[0:2]); tag != wavFormatPCM {
				return Clip{}, fmt.Errorf("%w: unsupported encoding tag %d", ErrInvalidWAV, tag)
			}
			if bits := binary.LittleEndian.Uint16(f[14:16]); bits != bitsPerSample {
				return Clip{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			if clip.Channels < 1 {
				return Clip{}, fmt.Errorf("%w: bad format %s", ErrInvalidWAV, clip.Format())
			}
			if !validRate(clip.SampleRate) {
				return Clip{}, fmt.Errorf("%w: sample rate %d outside %d-%d Hz",
					ErrInvalidWAV, clip.SampleRate, MinSampleRate, MaxSampleRate)
			}
			foundFmt = true

		case "data":
			if !foundFmt {
				return Clip{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			end := min(body+size, len(wav))
			pcm := wav[body:end]
			if n := len(pcm) % (clip.Channels * bytesPerSample); n != 0 {
				pcm = pcm[:len(pcm)-n]
			}
			clip.PCM = pcm
			return clip, nil
		}

		// Chunks are word-aligned.
		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return Clip{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
}
