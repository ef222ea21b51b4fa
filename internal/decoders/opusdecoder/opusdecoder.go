// Package opusdecoder implements decoder.Decoder over
// github.com/hraban/opus, grounded on the packet-level
// Encode/DecodeFloat32 usage in
// ijakenorton-Roundtable/internal/encoderdecoder/opusencoderdecoder.go.
//
// There is no Ogg container reader in the dependency set this engine
// carries, so this decoder reads a minimal purpose-built container for
// this engine's own pre-packetized streaming assets: a 10-byte header
// (magic "OPAK", uint32 little-endian sample rate, uint16 little-endian
// channel count) followed by a sequence of [uint16 length][opus packet]
// records. This container is specific to this engine; the decoder is not
// a general-purpose Opus file reader.
package opusdecoder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/hraban/opus"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

var errBadHeader = errors.New("opusdecoder: not a valid OPAK stream")

const (
	magic            = "OPAK"
	maxFrameSamples  = 5760 // 120ms at 48kHz, the largest Opus frame size.
)

// Decoder decodes this engine's OPAK opus-packet container into
// interleaved float32 PCM frames.
type Decoder struct {
	file *os.File
	r    *bufio.Reader
	dec  *opus.Decoder

	channels   int
	sampleRate int

	pcmBuf   []float32
	pending  []float32 // leftover decoded samples not yet consumed by Decode
}

// Open opens path as an OPAK stream and reads its header.
func Open(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)

	header := make([]byte, 10)
	if _, err := io.ReadFull(r, header); err != nil {
		f.Close()
		return nil, err
	}
	if string(header[:4]) != magic {
		f.Close()
		return nil, errBadHeader
	}
	sampleRate := int(binary.LittleEndian.Uint32(header[4:8]))
	channels := int(binary.LittleEndian.Uint16(header[8:10]))

	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Decoder{
		file:       f,
		r:          r,
		dec:        dec,
		channels:   channels,
		sampleRate: sampleRate,
		pcmBuf:     make([]float32, maxFrameSamples*channels),
	}, nil
}

func (d *Decoder) Channels() int          { return d.channels }
func (d *Decoder) SampleRate() int        { return d.sampleRate }
func (d *Decoder) BitsPerSample() int     { return 32 }
func (d *Decoder) Encoding() pcm.Encoding { return pcm.EncodingFloat }
func (d *Decoder) CanSeek() bool          { return false }

// Duration is unknown: OPAK streams carry no frame index (§6 permits
// unknown/∞ duration).
func (d *Decoder) Duration() (float64, bool) { return 0, false }

func (d *Decoder) Decode(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	out := dst[:0]
	for len(out) < len(dst) {
		if len(d.pending) > 0 {
			n := copy(dst[len(out):], d.pending)
			out = dst[:len(out)+n]
			d.pending = d.pending[n:]
			continue
		}

		packet, err := d.readPacket()
		if err != nil {
			if err == io.EOF {
				break
			}
			return len(out) / d.channels, err
		}
		if packet == nil {
			break
		}

		n, err := d.dec.DecodeFloat32(packet, d.pcmBuf)
		if err != nil {
			return len(out) / d.channels, err
		}
		d.pending = d.pcmBuf[:n*d.channels]
	}
	return len(out) / d.channels, nil
}

func (d *Decoder) readPacket() ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint16(lenBuf[:])
	packet := make([]byte, length)
	if _, err := io.ReadFull(d.r, packet); err != nil {
		return nil, err
	}
	return packet, nil
}

func (d *Decoder) Seek(float64) error {
	return decoder.ErrNotSeekable
}

func (d *Decoder) Close() error { return d.file.Close() }
