package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned by [Clip.Convert] when no conversion path
// exists, e.g. from or to more than two channels, or from or to a sample rate
// outside [MinSampleRate, MaxSampleRate].
var ErrUnsupportedFormat = errors.New("audio: unsupported format conversion")

// Convert returns the clip resampled and remixed to target. A clip already
// in the target format is returned unchanged. Resampling happens before the
// channel change when downmixing and after it when upmixing, so the
// resampler always works on the smaller buffer.
func (c Clip) Convert(target Format) (Clip, error) {
	if c.Format() == target {
		return c, nil
	}
	if c.Channels < 1 || c.Channels > 2 || target.Channels < 1 || target.Channels > 2 ||
		!validRate(c.SampleRate) || !validRate(target.SampleRate) {
		return Clip{}, fmt.Errorf("%w: %s to %s", ErrUnsupportedFormat, c.Format(), target)
	}
	if n := convertedSize(len(c.PCM), c.Format(), target); n > MaxConvertedBytes {
		return Clip{}, fmt.Errorf("%w: output of %d bytes exceeds %d", ErrUnsupportedFormat, n, MaxConvertedBytes)
	}

	pcm := c.PCM
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	if c.Channels == 2 && target.Channels == 1 {
		pcm = StereoToMono(pcm)
	}
	if c.SampleRate != target.SampleRate {
		if c.Channels == 2 && target.Channels == 2 {
			pcm = ResampleStereo16(pcm, c.SampleRate, target.SampleRate)
		} else {
			pcm = ResampleMono16(pcm, c.SampleRate, target.SampleRate)
		}
	}
	if c.Channels == 1 && target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}

	return Clip{PCM: pcm, SampleRate: target.SampleRate, Channels: target.Channels}, nil
}

// convertedSize estimates the PCM length of a conversion from src to dst.
func convertedSize(n int, src, dst Format) int64 {
	frames := int64(n) / int64(src.Channels*bytesPerSample)
	return frames * int64(dst.SampleRate) / int64(src.SampleRate) * int64(dst.Channels*bytesPerSample)
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)
	for i := range n {
		s := sampleAt(pcm, i)
		putSample(out, 2*i, s)
		putSample(out, 2*i+1, s)
	}
	return out
}

// StereoToMono averages L and R of each frame. The average of two int16
// values always fits in int16.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, 2*i))
		r := int32(sampleAt(pcm, 2*i+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// ResampleMono16 resamples mono PCM from srcRate to dstRate with linear
// interpolation. Equal or non-positive rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 is [ResampleMono16] for interleaved stereo PCM.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, 2, srcRate, dstRate)
}

func resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	srcFrames := len(pcm) / (2 * channels)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*2*channels)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(s0*(1-frac)+s1*frac))
		}
	}
	return out
}
