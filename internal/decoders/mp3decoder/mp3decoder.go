// Package mp3decoder implements decoder.Decoder over
// github.com/hajimehoshi/go-mp3, grounded on
// ik5-audpbx/formats/mp3/decoder.go's int16-to-float32 conversion.
package mp3decoder

import (
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

const mp3Channels = 2 // go-mp3 always decodes to interleaved stereo.

// Decoder decodes an MP3 file into interleaved float32 PCM frames.
type Decoder struct {
	file *os.File
	dec  *gomp3.Decoder

	sampleRate int
	byteBuf    []byte
}

// Open opens path as an MP3 file and reads its stream header.
func Open(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Decoder{
		file:       f,
		dec:        dec,
		sampleRate: dec.SampleRate(),
	}, nil
}

func (d *Decoder) Channels() int          { return mp3Channels }
func (d *Decoder) SampleRate() int        { return d.sampleRate }
func (d *Decoder) BitsPerSample() int     { return 16 }
func (d *Decoder) Encoding() pcm.Encoding { return pcm.EncodingIntegerPCM }
func (d *Decoder) CanSeek() bool          { return true }

func (d *Decoder) Duration() (float64, bool) {
	length := d.dec.Length()
	if length <= 0 {
		return 0, false
	}
	bytesPerFrame := int64(mp3Channels * 2)
	totalFrames := length / bytesPerFrame
	return float64(totalFrames) / float64(d.sampleRate), true
}

func (d *Decoder) Decode(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	bytesNeeded := len(dst) * 2
	if cap(d.byteBuf) < bytesNeeded {
		d.byteBuf = make([]byte, bytesNeeded)
	}
	d.byteBuf = d.byteBuf[:bytesNeeded]

	n, err := d.dec.Read(d.byteBuf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, nil
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		low := uint16(d.byteBuf[2*i])
		high := uint16(d.byteBuf[2*i+1])
		val := int16(low | (high << 8))
		dst[i] = float32(val) / 32768.0
	}
	return samples / mp3Channels, nil
}

// Seek repositions the decoder to the given timestamp, in PCM byte
// offsets (go-mp3's Decoder implements io.Seeker over the decoded PCM
// stream when its source is seekable).
func (d *Decoder) Seek(seconds float64) error {
	bytesPerFrame := int64(mp3Channels * 2)
	offset := int64(seconds*float64(d.sampleRate)) * bytesPerFrame
	_, err := d.dec.Seek(offset, io.SeekStart)
	if err != nil {
		return decoder.ErrNotSeekable
	}
	return nil
}

func (d *Decoder) Close() error { return d.file.Close() }
