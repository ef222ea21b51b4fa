package generator

import (
	"github.com/the-byte-bender/Playmaker.Audio/internal/pcmconv"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// Static is a fully-decoded, shareable buffer (§3, §4.7). Several voices
// may attach to the same Static generator at once; it is not Exclusive.
type Static struct {
	base

	be     backend.Backend
	buffer backend.BufferHandle

	convert      []pcmconv.ConvertFunc
	uploadFormat pcm.Format

	durationSeconds float64
	durationKnown   bool
}

// NewStatic constructs a Static generator and decodes dec into a single
// backend buffer on a background goroutine. The returned generator's
// Done() channel closes once decoding and upload finish (successfully or
// not); callers must not attach a voice to it until Ready() is true (§7.2).
//
// dec is closed once decoding completes, whether it succeeds or fails.
func NewStatic(be backend.Backend, dec decoder.Decoder) *Static {
	format := pcm.Format{
		Channels:      dec.Channels(),
		SampleRate:    dec.SampleRate(),
		BitsPerSample: dec.BitsPerSample(),
		Encoding:      dec.Encoding(),
	}
	s := &Static{
		base: newBase(format, false),
		be:   be,
	}
	s.base.disposeFn = s.destroy

	native := be.NativeFormat()
	s.convert = pcmconv.Chain(format, native)
	s.uploadFormat = format
	if len(s.convert) > 0 {
		s.uploadFormat.Channels = native.Channels
		s.uploadFormat.SampleRate = native.SampleRate
	}

	if seconds, known := dec.Duration(); known {
		s.durationSeconds, s.durationKnown = seconds, true
	}

	go s.decodeAll(dec)
	return s
}

func (s *Static) Kind() Kind { return KindStatic }

func (s *Static) Duration() (float64, bool) {
	return s.durationSeconds, s.durationKnown
}

// Buffer returns the backend buffer handle once Ready() is true.
func (s *Static) Buffer() backend.BufferHandle {
	return s.buffer
}

func (s *Static) decodeAll(dec decoder.Decoder) {
	defer dec.Close()

	const chunkFrames = 8192
	channels := s.format.Channels
	var pcmData pcm.Frame

	chunk := make([]float32, chunkFrames*channels)
	for {
		n, err := dec.Decode(chunk)
		if n > 0 {
			data := pcm.Frame(chunk[:n*channels])
			if len(s.convert) > 0 {
				data = pcmconv.Apply(s.convert, data)
			}
			pcmData = append(pcmData, data...)
		}
		if err != nil {
			dec.Close()
			s.markReady(err)
			return
		}
		if n == 0 {
			break
		}
	}
	dec.Close()

	buf, err := s.be.CreateBuffer()
	if err != nil {
		s.markReady(err)
		return
	}
	if err := s.be.UploadPCM(buf, s.uploadFormat, pcmData); err != nil {
		s.be.DestroyBuffer(buf)
		s.markReady(err)
		return
	}

	s.buffer = buf
	s.markReady(nil)
}

func (s *Static) destroy() {
	if s.buffer != 0 {
		s.be.DestroyBuffer(s.buffer)
	}
}
