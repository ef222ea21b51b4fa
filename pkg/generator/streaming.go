package generator

import (
	"errors"
	"sync"

	"github.com/the-byte-bender/Playmaker.Audio/internal/pcmconv"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// ErrClosed is returned by Streaming.Seek once the background producer has
// stopped (after Close).
var ErrClosed = errors.New("generator: streaming generator is closed")

// Submitter defers fn to run later on the audio thread, satisfied by
// (*marshaller.Marshaller).Submit via the engine. Streaming uses it so
// the background pump never calls into the backend directly (§4.9, §5);
// the actual upload runs wherever fn ends up executing.
type Submitter func(label string, fn func() error) error

// DefaultBufferCount and DefaultBufferFrames size the free/filled ring a
// streaming generator pumps into (§4.8, §4.9).
const (
	DefaultBufferCount  = 4
	DefaultBufferFrames = 8192
)

// Streaming decodes incrementally, a few buffers ahead of playback, via a
// background producer goroutine. It is always Exclusive: one voice per
// streaming generator (§3, §4.8).
type Streaming struct {
	base

	be     backend.Backend
	dec    decoder.Decoder
	submit Submitter

	convert      []pcmconv.ConvertFunc
	uploadFormat pcm.Format

	bufferFrames int
	looping      bool

	mu          sync.Mutex
	free        []backend.BufferHandle
	filled      []backend.BufferHandle
	endOfStream bool
	closed      bool

	pauseCh  chan bool
	seekCh   chan float64
	seekErr  chan error
	cancel   chan struct{}
	wake     chan struct{}
	pumpDone chan struct{}

	durationSeconds float64
	durationKnown   bool
}

// NewStreaming constructs a Streaming generator and starts its background
// producer. Looping controls whether the decoder is rewound at end of
// stream instead of signalling exhaustion. submit is used to run every
// backend upload on the audio thread instead of the pump goroutine (§4.9).
func NewStreaming(be backend.Backend, dec decoder.Decoder, looping bool, submit Submitter) *Streaming {
	format := pcm.Format{
		Channels:      dec.Channels(),
		SampleRate:    dec.SampleRate(),
		BitsPerSample: dec.BitsPerSample(),
		Encoding:      dec.Encoding(),
	}
	s := &Streaming{
		base:         newBase(format, true),
		be:           be,
		dec:          dec,
		submit:       submit,
		bufferFrames: DefaultBufferFrames,
		looping:      looping,
		pauseCh:      make(chan bool, 1),
		seekCh:       make(chan float64),
		seekErr:      make(chan error),
		cancel:       make(chan struct{}),
		wake:         make(chan struct{}, 1),
		pumpDone:     make(chan struct{}),
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

	for i := 0; i < DefaultBufferCount; i++ {
		buf, err := be.CreateBuffer()
		if err != nil {
			s.markReady(err)
			close(s.pumpDone)
			return s
		}
		s.free = append(s.free, buf)
	}

	s.markReady(nil)
	go s.pump()
	return s
}

func (s *Streaming) Kind() Kind { return KindStreaming }

func (s *Streaming) Duration() (float64, bool) {
	return s.durationSeconds, s.durationKnown
}

// Looping reports whether the stream rewinds at end of stream rather than
// signalling exhaustion.
func (s *Streaming) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looping
}

// SetLooping changes the looping flag. Takes effect the next time the
// producer reaches end of stream.
func (s *Streaming) SetLooping(looping bool) {
	s.mu.Lock()
	s.looping = looping
	s.mu.Unlock()
}

// EndOfStream reports whether the producer has exhausted a non-looping
// decoder and every filled buffer has since been drained.
func (s *Streaming) EndOfStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endOfStream && len(s.filled) == 0
}

// PopFilled removes and returns one decoded buffer ready for queuing, if
// any is available.
func (s *Streaming) PopFilled() (backend.BufferHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.filled) == 0 {
		return 0, false
	}
	h := s.filled[0]
	s.filled = s.filled[1:]
	return h, true
}

// PushFree returns a backend-unqueued buffer to the producer's free list
// and wakes it to refill.
func (s *Streaming) PushFree(h backend.BufferHandle) {
	s.mu.Lock()
	s.free = append(s.free, h)
	s.mu.Unlock()
	s.nudge()
}

func (s *Streaming) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetPaused gates the background producer: a paused streaming generator
// stops decoding ahead until resumed (§4.9).
func (s *Streaming) SetPaused(paused bool) {
	select {
	case s.pauseCh <- paused:
	default:
	}
	if !paused {
		s.nudge()
	}
}

// Seekable reports whether the underlying decoder supports Seek.
func (s *Streaming) Seekable() bool {
	return s.dec.CanSeek()
}

// Seek pauses the producer, drains filled buffers back to free,
// reseeks the decoder and resumes (§4.9's pause-drain-seek-resume
// sequence). It blocks until the seek has taken effect.
func (s *Streaming) Seek(seconds float64) error {
	if !s.dec.CanSeek() {
		return decoder.ErrNotSeekable
	}
	select {
	case s.seekCh <- seconds:
	case <-s.pumpDone:
		return ErrClosed
	}
	select {
	case err := <-s.seekErr:
		return err
	case <-s.pumpDone:
		return ErrClosed
	}
}

// Close stops the background producer and always returns nil. Safe to
// call multiple times. The decoder and backend buffers are released when
// the last reference is dropped, not by Close.
func (s *Streaming) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.cancel)
	<-s.pumpDone
	return nil
}

func (s *Streaming) destroy() {
	s.Close()
	s.dec.Close()

	s.mu.Lock()
	all := append(s.free, s.filled...)
	s.mu.Unlock()
	for _, b := range all {
		s.be.DestroyBuffer(b)
	}
}

// pump is the background producer: it decodes into free buffers and moves
// them to filled, gated by pause and responsive to seek/cancel requests
// (§4.9). It blocks on a select whenever there is no useful work (paused,
// no free buffers, or end of stream reached) so it never busy-spins.
func (s *Streaming) pump() {
	defer close(s.pumpDone)

	paused := false
	chunk := make([]float32, s.bufferFrames*s.format.Channels)

	for {
		s.mu.Lock()
		hasWork := !paused && len(s.free) > 0 && !s.endOfStream
		s.mu.Unlock()

		if !hasWork {
			select {
			case <-s.cancel:
				return
			case paused = <-s.pauseCh:
				continue
			case seconds := <-s.seekCh:
				s.doSeek(seconds)
				continue
			case <-s.wake:
				continue
			}
		}

		select {
		case <-s.cancel:
			return
		case paused = <-s.pauseCh:
			continue
		case seconds := <-s.seekCh:
			s.doSeek(seconds)
			continue
		default:
		}

		s.mu.Lock()
		buf := s.free[0]
		s.free = s.free[1:]
		s.mu.Unlock()

		n, decErr := s.dec.Decode(chunk)
		switch {
		case decErr != nil:
			s.finishBuffer(buf, true)
		case n == 0 && s.Looping() && s.dec.Seek(0) == nil:
			s.finishBuffer(buf, false)
		case n == 0:
			s.finishBuffer(buf, true)
		default:
			samples := n * s.format.Channels
			data := pcm.Frame(chunk[:samples])
			if len(s.convert) > 0 {
				data = pcmconv.Apply(s.convert, data)
			}
			// data aliases a buffer the conversion chain (or chunk itself)
			// reuses on the next iteration; copy before handing it to a
			// job that runs later, on the audio thread.
			upload := make(pcm.Frame, len(data))
			copy(upload, data)
			s.queueUpload(buf, upload)
		}
	}
}

// queueUpload marshals the backend upload and the free-to-filled move onto
// the audio thread (§4.9 step 2), keeping every backend call off the pump
// goroutine.
func (s *Streaming) queueUpload(buf backend.BufferHandle, data pcm.Frame) {
	s.submit("streaming-upload", func() error {
		if err := s.be.UploadPCM(buf, s.uploadFormat, data); err != nil {
			s.finishBuffer(buf, false)
			return err
		}
		s.mu.Lock()
		s.filled = append(s.filled, buf)
		s.mu.Unlock()
		s.nudge()
		return nil
	})
}

func (s *Streaming) finishBuffer(buf backend.BufferHandle, endOfStream bool) {
	s.mu.Lock()
	s.free = append(s.free, buf)
	if endOfStream {
		s.endOfStream = true
	}
	s.mu.Unlock()
}

func (s *Streaming) doSeek(seconds float64) {
	err := s.dec.Seek(seconds)
	if err == nil {
		s.mu.Lock()
		s.free = append(s.free, s.filled...)
		s.filled = nil
		s.endOfStream = false
		s.mu.Unlock()
	}
	select {
	case s.seekErr <- err:
	case <-s.cancel:
	}
}
