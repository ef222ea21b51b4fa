// Package pcmconv adapts decoded PCM between a generator's native format
// and the backend's expected format: channel remixing (mono↔stereo) and
// sample-rate conversion via github.com/oov/audio/resampler.
//
// Grounded on the teacher's AudioFormatConversionDevice, which chains the
// same three conversion functions as a streaming pipeline stage; this
// package keeps the conversion-function shape but applies it to whole
// decoded chunks rather than a channel pipeline, since generators decode
// into caller-provided buffers rather than pushing onto a channel.
package pcmconv

import (
	"github.com/oov/audio/resampler"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

const resampleQuality = 10

// ConvertFunc transforms one chunk of interleaved PCM frames.
type ConvertFunc func(src pcm.Frame) pcm.Frame

// Chain builds the ordered sequence of conversions needed to take audio
// in srcFormat to dstFormat: at most a channel remix, then a resample.
// Returns nil if no conversion is needed.
func Chain(srcFormat, dstFormat pcm.Format) []ConvertFunc {
	var fns []ConvertFunc

	channels := srcFormat.Channels
	if srcFormat.Channels == 1 && dstFormat.Channels == 2 {
		fns = append(fns, MonoToStereo())
		channels = 2
	} else if srcFormat.Channels == 2 && dstFormat.Channels == 1 {
		fns = append(fns, StereoToMono())
		channels = 1
	}

	if srcFormat.SampleRate != dstFormat.SampleRate {
		fns = append(fns, NewResampler(channels, srcFormat.SampleRate, dstFormat.SampleRate))
	}

	return fns
}

// Apply runs every stage of chain over src in order.
func Apply(chain []ConvertFunc, src pcm.Frame) pcm.Frame {
	out := src
	for _, fn := range chain {
		out = fn(out)
	}
	return out
}

// MonoToStereo duplicates each mono sample across two channels.
func MonoToStereo() ConvertFunc {
	var buf pcm.Frame
	return func(src pcm.Frame) pcm.Frame {
		if cap(buf) < 2*len(src) {
			buf = make(pcm.Frame, 2*len(src))
		}
		buf = buf[:2*len(src)]
		for i, v := range src {
			buf[2*i] = v
			buf[2*i+1] = v
		}
		return buf
	}
}

// StereoToMono averages each stereo pair into one mono sample.
func StereoToMono() ConvertFunc {
	var buf pcm.Frame
	return func(src pcm.Frame) pcm.Frame {
		if len(src)%2 == 1 {
			src = src[:len(src)-1]
		}
		n := len(src) / 2
		if cap(buf) < n {
			buf = make(pcm.Frame, n)
		}
		buf = buf[:n]
		for i := 0; i < n; i++ {
			buf[i] = (src[2*i] + src[2*i+1]) / 2
		}
		return buf
	}
}

// NewResampler converts sample rate srcRate to dstRate for a stream with
// the given channel count, using oov/audio/resampler per-channel with
// planar intermediate buffers (interleaved in, interleaved out).
func NewResampler(channels, srcRate, dstRate int) ConvertFunc {
	if channels == 1 {
		r := resampler.New(1, srcRate, dstRate, resampleQuality)
		var out pcm.Frame
		return func(src pcm.Frame) pcm.Frame {
			if need := len(src)*dstRate/srcRate + 16; cap(out) < need {
				out = make(pcm.Frame, need)
			}
			out = out[:cap(out)]
			_, written := r.ProcessFloat32(0, src, out)
			return out[:written]
		}
	}

	r := resampler.New(2, srcRate, dstRate, resampleQuality)
	var left, right, leftOut, rightOut, out pcm.Frame
	return func(src pcm.Frame) pcm.Frame {
		if len(src)%2 == 1 {
			src = src[:len(src)-1]
		}
		frames := len(src) / 2
		if cap(left) < frames {
			left = make(pcm.Frame, frames)
			right = make(pcm.Frame, frames)
		}
		left, right = left[:frames], right[:frames]

		for i := 0; i < frames; i++ {
			left[i] = src[2*i]
			right[i] = src[2*i+1]
		}

		outFrames := frames*dstRate/srcRate + 16
		if cap(leftOut) < outFrames {
			leftOut = make(pcm.Frame, outFrames)
			rightOut = make(pcm.Frame, outFrames)
			out = make(pcm.Frame, outFrames*2)
		}
		leftOut, rightOut = leftOut[:cap(leftOut)], rightOut[:cap(rightOut)]

		_, written := r.ProcessFloat32(0, left, leftOut)
		r.ProcessFloat32(1, right, rightOut)

		out = out[:cap(out)]
		for i := 0; i < written; i++ {
			out[2*i] = leftOut[i]
			out[2*i+1] = rightOut[i]
		}
		return out[:2*written]
	}
}
