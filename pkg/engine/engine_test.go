package engine

import (
	"context"
	"testing"
	"time"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/emitter"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/voice"
)

// silentDecoder is a minimal decoder.Decoder for engine-level tests; it
// never fails and produces framesLeft frames of silence.
type silentDecoder struct {
	channels, sampleRate, framesLeft int
}

func (d *silentDecoder) Channels() int          { return d.channels }
func (d *silentDecoder) SampleRate() int        { return d.sampleRate }
func (d *silentDecoder) BitsPerSample() int     { return 16 }
func (d *silentDecoder) Encoding() pcm.Encoding { return pcm.EncodingIntegerPCM }
func (d *silentDecoder) CanSeek() bool          { return true }
func (d *silentDecoder) Duration() (float64, bool) {
	return float64(d.framesLeft) / float64(d.sampleRate), true
}
func (d *silentDecoder) Decode(dst []float32) (int, error) {
	if d.framesLeft <= 0 {
		return 0, nil
	}
	n := len(dst) / d.channels
	if n > d.framesLeft {
		n = d.framesLeft
	}
	d.framesLeft -= n
	return n, nil
}
func (d *silentDecoder) Seek(seconds float64) error { return nil }
func (d *silentDecoder) Close() error               { return nil }

var _ decoder.Decoder = (*silentDecoder)(nil)

func newReadyStatic(t *testing.T, be backend.Backend, framesLeft int) *generator.Static {
	t.Helper()
	g := generator.NewStatic(be, &silentDecoder{channels: 1, sampleRate: 100, framesLeft: framesLeft})
	select {
	case <-g.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("static generator never became ready")
	}
	if err := g.InitError(); err != nil {
		t.Fatalf("static generator init failed: %v", err)
	}
	return g
}

// drainUntil drains the marshaller repeatedly until done closes: the
// goroutine submitting the awaited action may not have queued it yet when
// a Drain runs, and Drain only executes actions already queued.
func drainUntil(t *testing.T, eng *Engine, done <-chan struct{}, what string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		eng.Marshaller().Drain()
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal(what + " never completed")
		case <-time.After(time.Millisecond):
		}
	}
}

// submitAwaitSync drains the marshaller itself, since these tests are not
// running a concurrent Tick loop.
func submitAwaitSync(t *testing.T, eng *Engine, label string, fn func() (any, error)) any {
	t.Helper()
	done := make(chan struct{})
	var result any
	var resultErr error
	go func() {
		result, resultErr = eng.SubmitAwait(context.Background(), label, fn)
		close(done)
	}()
	drainUntil(t, eng, done, "SubmitAwait")
	if resultErr != nil {
		t.Fatalf("%s: %v", label, resultErr)
	}
	return result
}

// createVoiceSync calls the engine's own (already marshaller-deferred)
// createVoice from a goroutine and drains until it completes, since
// createVoice must not be invoked from inside another queued action.
func createVoiceSync(t *testing.T, eng *Engine, gen generator.Generator, busPath string, oneShot bool) *voice.Voice {
	t.Helper()
	done := make(chan struct{})
	var v *voice.Voice
	var err error
	go func() {
		v, err = eng.createVoice(context.Background(), gen, busPath, oneShot)
		close(done)
	}()
	drainUntil(t, eng, done, "createVoice")
	if err != nil {
		t.Fatalf("createVoice: %v", err)
	}
	return v
}

func newTestEngine(t *testing.T, poolCapacity int) *Engine {
	t.Helper()
	be := backend.NewDummy()
	eng, err := New(be, Config{PoolCapacity: poolCapacity})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestCreateVoiceRegistersOnMasterByDefault(t *testing.T) {
	eng := newTestEngine(t, 4)
	be := eng.be
	g := newReadyStatic(t, be, 1000)

	v := createVoiceSync(t, eng, g, "", false)

	if v.Bus() != eng.Buses().Master() {
		t.Fatal("expected a bare busPath to attach the voice to Master")
	}
	if _, ok := eng.Voice(v.ID); !ok {
		t.Fatal("expected the voice to be registered in the engine")
	}
}

func TestTickPromotesVirtualVoicesWhenCapacityFrees(t *testing.T) {
	eng := newTestEngine(t, 1)
	be := eng.be

	g1 := newReadyStatic(t, be, 100000)
	g2 := newReadyStatic(t, be, 100000)

	v1 := createVoiceSync(t, eng, g1, "", false)
	v2 := createVoiceSync(t, eng, g2, "", false)

	submitAwaitSync(t, eng, "play-both", func() (any, error) {
		v1.Play()
		v2.Play()
		return nil, nil
	})

	if v1.State() != voice.PlayingPhysical {
		t.Fatalf("v1.State() = %v, want PlayingPhysical", v1.State())
	}
	if v2.State() != voice.PlayingVirtual {
		t.Fatalf("v2.State() = %v, want PlayingVirtual under pool pressure", v2.State())
	}

	submitAwaitSync(t, eng, "stop-1", func() (any, error) {
		v1.Stop()
		return nil, nil
	})

	eng.Tick(0.01)

	if v2.State() != voice.PlayingPhysical {
		t.Fatalf("v2.State() = %v, want PlayingPhysical after the scheduler promotes it", v2.State())
	}
}

func TestReapOneShotsRemovesStoppedOneShotVoices(t *testing.T) {
	eng := newTestEngine(t, 4)
	be := eng.be
	g := newReadyStatic(t, be, 1)

	v := createVoiceSync(t, eng, g, "", true)

	submitAwaitSync(t, eng, "play-and-stop", func() (any, error) {
		v.Play()
		v.Stop()
		return nil, nil
	})

	eng.Tick(0.01)

	if _, ok := eng.Voice(v.ID); ok {
		t.Fatal("expected the stopped one-shot voice to be reaped")
	}
}

func TestPersistentVoicesAreNotReapedWhenStopped(t *testing.T) {
	eng := newTestEngine(t, 4)
	be := eng.be
	g := newReadyStatic(t, be, 1000)

	v := createVoiceSync(t, eng, g, "", false)

	submitAwaitSync(t, eng, "play-and-stop", func() (any, error) {
		v.Play()
		v.Stop()
		return nil, nil
	})

	eng.Tick(0.01)

	if _, ok := eng.Voice(v.ID); !ok {
		t.Fatal("expected a persistent, stopped voice to remain registered")
	}
}

func TestSetBusGainAffectsVoicesOnThatBus(t *testing.T) {
	eng := newTestEngine(t, 4)

	done := make(chan struct{})
	var err error
	go func() { err = eng.SetBusGain(context.Background(), "Mix/Music", 0.5); close(done) }()
	drainUntil(t, eng, done, "SetBusGain")
	if err != nil {
		t.Fatal(err)
	}

	bus := eng.Buses().Resolve("Mix/Music")
	if bus == nil {
		t.Fatal("expected SetBusGain to create the bus path")
	}
	if bus.Local().Gain != 0.5 {
		t.Fatalf("bus local gain = %v, want 0.5", bus.Local().Gain)
	}
}

func TestPlayOneShotEventuallyRegistersAndPlaysAVoice(t *testing.T) {
	be := backend.NewDummy()
	eng, err := New(be, Config{PoolCapacity: 4, DiagnosticBuffer: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	g := newReadyStatic(t, be, 100000)
	stub := stubSingleShotResolver{gen: g}
	eng.resolver.Register(stub)

	eng.PlayOneShot("", "file:///anything")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		eng.Tick(0.01)
		found := false
		for _, v := range eng.voices {
			if v.IsOneShot() && v.State().Playing() {
				found = true
			}
		}
		if found {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("PlayOneShot never resulted in a registered, playing one-shot voice")
}

func TestAttachVoiceToEmitterRoutesThroughBusOverride(t *testing.T) {
	eng := newTestEngine(t, 4)
	g := newReadyStatic(t, eng.be, 1000)

	v := createVoiceSync(t, eng, g, "", false)

	em := emitter.New()
	em.SetBusOverride("Mix/Dialogue")

	done := make(chan struct{})
	var err error
	go func() { err = eng.AttachVoiceToEmitter(context.Background(), v, em); close(done) }()
	drainUntil(t, eng, done, "AttachVoiceToEmitter")
	if err != nil {
		t.Fatal(err)
	}

	if v.Bus() != eng.Buses().Resolve("Mix/Dialogue") {
		t.Fatal("expected AttachVoiceToEmitter to move the voice onto the emitter's override bus")
	}
}

type stubSingleShotResolver struct {
	gen generator.Generator
}

func (s stubSingleShotResolver) Schemes() []string { return []string{"file"} }
func (s stubSingleShotResolver) Resolve(ctx context.Context, uri string) (generator.Generator, error) {
	return s.gen, nil
}
