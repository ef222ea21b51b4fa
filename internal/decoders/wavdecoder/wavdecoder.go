// Package wavdecoder implements decoder.Decoder over github.com/go-audio/wav
// (§6). Grounded on the go-audio family usage in ik5-audpbx/formats/aiff.
package wavdecoder

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// Decoder decodes a WAV file into interleaved float32 PCM frames.
type Decoder struct {
	file *os.File
	dec  *wav.Decoder

	channels      int
	sampleRate    int
	bitsPerSample int

	intBuf *goaudio.IntBuffer
}

// Open opens path as a WAV file and reads its format header.
func Open(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wavdecoder: %s is not a valid WAV file", path)
	}
	dec.ReadInfo()

	return &Decoder{
		file:          f,
		dec:           dec,
		channels:      int(dec.NumChans),
		sampleRate:    int(dec.SampleRate),
		bitsPerSample: int(dec.BitDepth),
	}, nil
}

func (d *Decoder) Channels() int        { return d.channels }
func (d *Decoder) SampleRate() int      { return d.sampleRate }
func (d *Decoder) BitsPerSample() int   { return d.bitsPerSample }
func (d *Decoder) Encoding() pcm.Encoding { return pcm.EncodingIntegerPCM }
func (d *Decoder) CanSeek() bool        { return true }

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
			Data: make([]int, len(dst)),
			Format: &goaudio.Format{
				NumChannels: d.channels,
				SampleRate:  d.sampleRate,
			},
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
	frames := n / d.channels
	for i := 0; i < n; i++ {
		dst[i] = float32(d.intBuf.Data[i]) / maxVal
	}
	return frames, nil
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

// Seek reopens the file and decodes-and-discards frames up to the target
// offset. go-audio/wav exposes no direct frame-seek primitive, so this is
// the only reliably portable way to reposition.
func (d *Decoder) Seek(seconds float64) error {
	path := d.file.Name()
	if err := d.file.Close(); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	d.file = f
	d.dec = dec

	targetFrame := int64(seconds * float64(d.sampleRate))
	const chunk = 4096
	scratch := make([]float32, chunk*d.channels)
	remaining := targetFrame
	for remaining > 0 {
		want := chunk
		if int64(want) > remaining {
			want = int(remaining)
		}
		n, err := d.Decode(scratch[:want*d.channels])
		if n == 0 || err != nil {
			break
		}
		remaining -= int64(n)
	}
	return nil
}

func (d *Decoder) Close() error { return d.file.Close() }
