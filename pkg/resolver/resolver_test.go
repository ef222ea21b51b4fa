package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// fakeFileDecoder satisfies decoder.Decoder against an already-opened
// path, producing a handful of silent frames before ending the stream.
type fakeFileDecoder struct {
	framesLeft int
	failOpen   bool
}

func (d *fakeFileDecoder) Channels() int          { return 1 }
func (d *fakeFileDecoder) SampleRate() int         { return 100 }
func (d *fakeFileDecoder) BitsPerSample() int      { return 16 }
func (d *fakeFileDecoder) Encoding() pcm.Encoding  { return pcm.EncodingIntegerPCM }
func (d *fakeFileDecoder) CanSeek() bool           { return true }
func (d *fakeFileDecoder) Duration() (float64, bool) {
	return float64(d.framesLeft) / 100, true
}
func (d *fakeFileDecoder) Decode(dst []float32) (int, error) {
	if d.framesLeft <= 0 {
		return 0, nil
	}
	n := len(dst)
	if n > d.framesLeft {
		n = d.framesLeft
	}
	d.framesLeft -= n
	return n, nil
}
func (d *fakeFileDecoder) Seek(seconds float64) error { return nil }
func (d *fakeFileDecoder) Close() error               { return nil }

var errFakeOpenFailed = errors.New("fake: could not open path")

// syncSubmit runs fn immediately, standing in for a marshaller drain in
// tests that have no engine tick loop to do it for them.
func syncSubmit(_ string, fn func() error) error { return fn() }

func TestNormalizeWrapsBarePathsWithDefaultScheme(t *testing.T) {
	r := New("file")
	got := r.Normalize("sounds/explosion.wav")
	want := "file:///sounds/explosion.wav"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalizeLeavesExplicitSchemesAlone(t *testing.T) {
	r := New("file")
	got := r.Normalize("http://example.com/a.wav")
	if got != "http://example.com/a.wav" {
		t.Fatalf("Normalize() altered an explicit-scheme URI: %q", got)
	}
}

func TestResolveReturnsNilNilForUnregisteredScheme(t *testing.T) {
	r := New("file")
	g, err := r.Resolve(context.Background(), "http://example.com/a.wav")
	if err != nil {
		t.Fatalf("expected no error for an unregistered scheme, got %v", err)
	}
	if g != nil {
		t.Fatal("expected a nil generator for an unregistered scheme")
	}
}

func TestRegisterLastRegistrationWinsPerScheme(t *testing.T) {
	r := New("file")

	var calledA, calledB int32
	pa := stubProvider{schemes: []string{"file"}, onResolve: func() { atomic.AddInt32(&calledA, 1) }}
	pb := stubProvider{schemes: []string{"file"}, onResolve: func() { atomic.AddInt32(&calledB, 1) }}

	r.Register(pa)
	r.Register(pb)

	_, _ = r.Resolve(context.Background(), "file:///x")

	if calledA != 0 {
		t.Fatal("expected the first registration to be overridden")
	}
	if calledB != 1 {
		t.Fatal("expected the second (last) registration to handle the resolve")
	}
}

type stubProvider struct {
	schemes   []string
	onResolve func()
}

func (s stubProvider) Schemes() []string { return s.schemes }
func (s stubProvider) Resolve(ctx context.Context, uri string) (generator.Generator, error) {
	if s.onResolve != nil {
		s.onResolve()
	}
	return nil, nil
}

func TestFileProviderResolvesAndCachesStaticGenerators(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(path, []byte("not-real-audio"), 0644); err != nil {
		t.Fatal(err)
	}

	var opens int32
	open := func(p string) (decoder.Decoder, error) {
		atomic.AddInt32(&opens, 1)
		return &fakeFileDecoder{framesLeft: 500}, nil
	}

	be := backend.NewDummy()
	fp := NewFileProvider(be, open, []string{dir}, true, syncSubmit)

	g1, err := fp.Resolve(context.Background(), "file:///a.wav")
	if err != nil || g1 == nil {
		t.Fatalf("Resolve() = (%v, %v), want a generator", g1, err)
	}
	g2, err := fp.Resolve(context.Background(), "file:///a.wav")
	if err != nil || g2 == nil {
		t.Fatalf("second Resolve() = (%v, %v), want a generator", g2, err)
	}
	if g1 != g2 {
		t.Fatal("expected the second resolve to return the cached generator")
	}
	if opens != 1 {
		t.Fatalf("decoder opened %d times, want exactly 1 (cached)", opens)
	}
}

func TestFileProviderInvalidatesCacheOnDispose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	open := func(p string) (decoder.Decoder, error) {
		return &fakeFileDecoder{framesLeft: 10}, nil
	}

	be := backend.NewDummy()
	fp := NewFileProvider(be, open, []string{dir}, true, syncSubmit)

	g1, _ := fp.Resolve(context.Background(), "file:///a.wav")
	if g1 == nil {
		t.Fatal("expected a generator on first resolve")
	}
	// The cache holds g1 weakly (its construction reference was already
	// released on store); simulate a voice attaching and detaching to
	// bring the refcount to zero and fire the real dispose.
	g1.Retain()
	g1.Release()

	g2, _ := fp.Resolve(context.Background(), "file:///a.wav")
	if g2 == nil {
		t.Fatal("expected a generator on the post-dispose resolve")
	}
	if g1 == g2 {
		t.Fatal("expected a fresh generator once the cached one was disposed")
	}
}

func TestFileProviderNotFoundYieldsNilNil(t *testing.T) {
	open := func(p string) (decoder.Decoder, error) {
		return nil, errFakeOpenFailed
	}
	be := backend.NewDummy()
	fp := NewFileProvider(be, open, []string{t.TempDir()}, true, syncSubmit)

	g, err := fp.Resolve(context.Background(), "file:///missing.wav")
	if err != nil {
		t.Fatalf("expected resource-not-found to be a nil error, got %v", err)
	}
	if g != nil {
		t.Fatal("expected a nil generator for a missing file")
	}
}

func TestFileProviderStreamingIsNeverCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	open := func(p string) (decoder.Decoder, error) {
		return &fakeFileDecoder{framesLeft: 10}, nil
	}
	be := backend.NewDummy()
	fp := NewFileProvider(be, open, []string{dir}, true, syncSubmit)

	g1, err := fp.Resolve(context.Background(), "stream:///a.wav")
	if err != nil || g1 == nil {
		t.Fatalf("Resolve() = (%v, %v), want a streaming generator", g1, err)
	}
	g2, err := fp.Resolve(context.Background(), "stream:///a.wav")
	if err != nil || g2 == nil {
		t.Fatalf("second Resolve() = (%v, %v), want a streaming generator", g2, err)
	}
	if g1 == g2 {
		t.Fatal("expected every streaming resolve to return a distinct generator")
	}
}

func TestFileProviderConcurrentResolvesInitializeAtMostOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var opens int32
	open := func(p string) (decoder.Decoder, error) {
		atomic.AddInt32(&opens, 1)
		time.Sleep(10 * time.Millisecond)
		return &fakeFileDecoder{framesLeft: 10}, nil
	}
	be := backend.NewDummy()
	fp := NewFileProvider(be, open, []string{dir}, true, syncSubmit)

	const n = 8
	results := make(chan any, n)
	for i := 0; i < n; i++ {
		go func() {
			g, _ := fp.Resolve(context.Background(), "file:///a.wav")
			results <- g
		}()
	}
	var first any
	for i := 0; i < n; i++ {
		g := <-results
		if i == 0 {
			first = g
		} else if g != first {
			t.Fatal("expected every concurrent resolve to observe the same generator")
		}
	}
	if opens != 1 {
		t.Fatalf("decoder opened %d times under concurrent resolve, want exactly 1", opens)
	}
}
