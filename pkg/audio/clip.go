// Package audio holds the PCM clip type shared by the speech providers and
// the evaluation service, plus WAV container handling and format conversion.
//
// All PCM is signed 16-bit little-endian, interleaved when Channels > 1.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form, e.g. "16000Hz mono".
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

// Sample rates outside [MinSampleRate, MaxSampleRate] are rejected by
// [ParseWAV] and [Clip.Convert]. The bounds keep a resample within a 24x
// expansion of its input.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
)

// MaxConvertedBytes caps the PCM a single [Clip.Convert] may produce.
const MaxConvertedBytes = 256 << 20

// STTFormat is what every speech-to-text adapter expects.
var STTFormat = Format{SampleRate: 16000, Channels: 1}

func validRate(rate int) bool {
	return rate >= MinSampleRate && rate <= MaxSampleRate
}

// Clip is a complete, in-memory recording or synthesised utterance.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Format returns the clip's sample rate and channel count.
func (c Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Duration returns the playback length of the clip. A clip with an invalid
// format has zero duration.
func (c Clip) Duration() time.Duration {
	frame := c.Channels * bytesPerSample
	if c.SampleRate <= 0 || frame <= 0 {
		return 0
	}
	frames := len(c.PCM) / frame
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip carries no samples.
func (c Clip) Empty() bool {
	return len(c.PCM) < bytesPerSample
}
