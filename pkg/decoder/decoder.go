// Package decoder defines the capability-set interface the engine expects
// from a sample decoder (§6 of the specification). Concrete decoders live
// under internal/decoders; this package only names the contract.
package decoder

import (
	"errors"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// ErrNotSeekable is returned by Seek when the underlying stream does not
// support seeking.
var ErrNotSeekable = errors.New("decoder: stream is not seekable")

// Decoder produces interleaved PCM frames from some underlying source
// (typically a file). It reports its format up front and decodes into a
// caller-provided buffer so the hot decode path never allocates.
type Decoder interface {
	// Channels, SampleRate, BitsPerSample and Encoding describe the PCM
	// format frames will be decoded in.
	Channels() int
	SampleRate() int
	BitsPerSample() int
	Encoding() pcm.Encoding

	// CanSeek reports whether Seek is supported.
	CanSeek() bool

	// Duration returns the total duration in seconds, or (0, false) if
	// unknown (e.g. a live or non-seekable stream).
	Duration() (seconds float64, known bool)

	// Decode fills dst with interleaved PCM frames and returns the number
	// of frames (not samples) produced. A return of (0, nil) signals
	// end-of-stream.
	Decode(dst []float32) (frames int, err error)

	// Seek moves the decode position to the given timestamp in seconds.
	// Returns ErrNotSeekable if CanSeek is false.
	Seek(seconds float64) error

	// Close releases any resources held by the decoder.
	Close() error
}
