// Package vorbisdecoder implements decoder.Decoder over
// github.com/jfreymuth/oggvorbis, grounded on
// ik5-audpbx/formats/vorbis/decoder.go's frame-buffer shape.
package vorbisdecoder

import (
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// Decoder decodes an Ogg/Vorbis file into interleaved float32 PCM frames.
type Decoder struct {
	file *os.File
	dec  *oggvorbis.Reader

	channels   int
	sampleRate int
}

// Open opens path as an Ogg/Vorbis file and reads its stream header.
func Open(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Decoder{
		file:       f,
		dec:        dec,
		channels:   dec.Channels(),
		sampleRate: dec.SampleRate(),
	}, nil
}

func (d *Decoder) Channels() int          { return d.channels }
func (d *Decoder) SampleRate() int        { return d.sampleRate }
func (d *Decoder) BitsPerSample() int     { return 32 }
func (d *Decoder) Encoding() pcm.Encoding { return pcm.EncodingFloat }
func (d *Decoder) CanSeek() bool          { return true }

func (d *Decoder) Duration() (float64, bool) {
	length := d.dec.Length()
	if length <= 0 {
		return 0, false
	}
	return float64(length) / float64(d.sampleRate), true
}

func (d *Decoder) Decode(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := d.dec.Read(dst)
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, nil
	}
	return n / d.channels, nil
}

func (d *Decoder) Seek(seconds float64) error {
	sample := int64(seconds * float64(d.sampleRate))
	if err := d.dec.SetPosition(sample); err != nil {
		return decoder.ErrNotSeekable
	}
	return nil
}

func (d *Decoder) Close() error { return d.file.Close() }
