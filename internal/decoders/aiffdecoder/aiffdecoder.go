// Package aiffdecoder implements decoder.Decoder over
// github.com/go-audio/aiff, grounded on
// ik5-audpbx/formats/aiff/decoder.go's int-buffer-to-float32 conversion.
package aiffdecoder

import (
	"io"
	"os"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// Decoder decodes an AIFF file into interleaved float32 PCM frames.
type Decoder struct {
	file *os.File
	dec  *aiff.Decoder

	channels      int
	sampleRate    int
	bitsPerSample int

	intBuf *goaudio.IntBuffer
}

// Open opens path as an AIFF file and reads its format header.
func Open(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := aiff.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		f.Close()
		return nil, err
	}

	return &Decoder{
		file:          f,
		dec:           dec,
		channels:      int(dec.NumChans),
		sampleRate:    int(dec.SampleRate),
		bitsPerSample: int(dec.BitDepth),
	}, nil
}

func (d *Decoder) Channels() int          { return d.channels }
func (d *Decoder) SampleRate() int        { return d.sampleRate }
func (d *Decoder) BitsPerSample() int     { return d.bitsPerSample }
func (d *Decoder) Encoding() pcm.Encoding { return pcm.EncodingIntegerPCM }
func (d *Decoder) CanSeek() bool          { return false }

func (d *Decoder) Duration() (float64, bool) {
	dur, err := d.dec.Duration()
	if err != nil {
		return 0, false
	}
	return dur.Seconds(), true
}

func (d *Decoder) Decode(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if d.intBuf == nil || cap(d.intBuf.Data) < len(dst) {
		d.intBuf = &goaudio.IntBuffer{
			Data:           make([]int, len(dst)),
			Format:         &goaudio.Format{NumChannels: d.channels, SampleRate: d.sampleRate},
			SourceBitDepth: d.bitsPerSample,
		}
	}
	d.intBuf.Data = d.intBuf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.intBuf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, nil
	}

	maxVal := maxValueFor(d.bitsPerSample)
	for i := 0; i < n; i++ {
		dst[i] = float32(d.intBuf.Data[i]) / maxVal
	}
	return n / d.channels, nil
}

func maxValueFor(bitsPerSample int) float32 {
	switch bitsPerSample {
	case 8:
		return 128.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// Seek is unsupported: AIFF streams are not seekable in this engine (§6).
func (d *Decoder) Seek(float64) error {
	return decoder.ErrNotSeekable
}

func (d *Decoder) Close() error { return d.file.Close() }
