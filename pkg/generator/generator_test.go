package generator

import (
	"sync"
	"testing"
	"time"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// fakeDecoder produces a fixed number of silent frames, then signals
// end-of-stream, optionally failing partway through.
type fakeDecoder struct {
	mu            sync.Mutex
	channels      int
	sampleRate    int
	framesLeft    int
	chunkFrames   int
	failAfter     int // -1 disables
	failed        bool
	decodedCalled int
	seekable      bool
	closed        bool
}

// syncSubmit runs fn immediately, standing in for a marshaller drain in
// tests that have no engine tick loop to do it for them.
func syncSubmit(_ string, fn func() error) error { return fn() }

func newFakeDecoder(channels, sampleRate, totalFrames int) *fakeDecoder {
	return &fakeDecoder{
		channels:    channels,
		sampleRate:  sampleRate,
		framesLeft:  totalFrames,
		chunkFrames: 4096,
		failAfter:   -1,
		seekable:    true,
	}
}

func (d *fakeDecoder) Channels() int          { return d.channels }
func (d *fakeDecoder) SampleRate() int        { return d.sampleRate }
func (d *fakeDecoder) BitsPerSample() int     { return 16 }
func (d *fakeDecoder) Encoding() pcm.Encoding { return pcm.EncodingIntegerPCM }
func (d *fakeDecoder) CanSeek() bool          { return d.seekable }
func (d *fakeDecoder) Duration() (float64, bool) {
	return 0, false
}

func (d *fakeDecoder) Decode(dst []float32) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decodedCalled++
	if d.failAfter >= 0 && d.decodedCalled > d.failAfter {
		d.failed = true
		return 0, errDecodeFailed
	}
	if d.framesLeft <= 0 {
		return 0, nil
	}
	n := len(dst) / d.channels
	if n > d.framesLeft {
		n = d.framesLeft
	}
	if n > d.chunkFrames {
		n = d.chunkFrames
	}
	d.framesLeft -= n
	return n, nil
}

func (d *fakeDecoder) Seek(seconds float64) error {
	if !d.seekable {
		return decoder.ErrNotSeekable
	}
	return nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

type decodeFailedError struct{}

func (decodeFailedError) Error() string { return "fake decoder: forced failure" }

var errDecodeFailed = decodeFailedError{}

func waitReady(t *testing.T, g Generator) {
	t.Helper()
	select {
	case <-g.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("generator never became ready")
	}
}

func TestStaticBecomesReadyAfterDecodingWholeFile(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(2, 44100, 8192)
	s := NewStatic(be, dec)

	waitReady(t, s)
	if !s.Ready() {
		t.Fatalf("expected Static to be ready, InitError=%v", s.InitError())
	}
	if s.Buffer() == 0 {
		t.Fatal("expected a backend buffer to have been created")
	}
	if !dec.closed {
		t.Fatal("expected the decoder to be closed once decoding finished")
	}
}

func TestStaticSurfacesDecodeFailureAsInitError(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(1, 44100, 100000)
	dec.failAfter = 0
	s := NewStatic(be, dec)

	waitReady(t, s)
	if s.Ready() {
		t.Fatal("expected Static to not be marked ready on decode failure")
	}
	if s.InitError() == nil {
		t.Fatal("expected a non-nil InitError")
	}
}

func TestReferenceCountingDisposesOnlyAtZero(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(1, 44100, 256)
	s := NewStatic(be, dec)
	waitReady(t, s)

	s.Retain()
	var disposed bool
	s.OnDispose(func() { disposed = true })

	s.Release()
	if s.Disposed() {
		t.Fatal("expected the generator to survive one of two releases")
	}
	if disposed {
		t.Fatal("OnDispose hook fired before the refcount reached zero")
	}

	s.Release()
	if !s.Disposed() {
		t.Fatal("expected the generator to be disposed once refcount reaches zero")
	}
	if !disposed {
		t.Fatal("expected the OnDispose hook to fire exactly once refcount hit zero")
	}
}

func TestSilentReleaseDoesNotTriggerDispose(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(1, 44100, 256)
	s := NewStatic(be, dec)
	waitReady(t, s)

	var disposed bool
	s.OnDispose(func() { disposed = true })
	s.SilentRelease()

	if disposed {
		t.Fatal("SilentRelease must not invoke dispose hooks")
	}
}

func TestStreamingProducesAFilledBuffer(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(2, 44100, 1_000_000)
	s := NewStreaming(be, dec, false, syncSubmit)

	deadline := time.After(2 * time.Second)
	for {
		if h, ok := s.PopFilled(); ok {
			_ = h
			break
		}
		select {
		case <-deadline:
			t.Fatal("streaming generator never produced a filled buffer")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStreamingEndOfStreamOnceAllBuffersDrained(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(1, 44100, 1)
	dec.chunkFrames = 1
	s := NewStreaming(be, dec, false, syncSubmit)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.EndOfStream() {
			return
		}
		for {
			if _, ok := s.PopFilled(); !ok {
				break
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("streaming generator never reached end-of-stream")
}

func TestStreamingCloseIsIdempotent(t *testing.T) {
	be := backend.NewDummy()
	dec := newFakeDecoder(1, 44100, 256)
	s := NewStreaming(be, dec, false, syncSubmit)

	if err := s.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}
