// Package engine wires every other package into the per-frame tick
// described in §2 and §4: drain marshaller, advance voices, apply
// listener, run the virtualization scheduler, reap finished one-shots,
// drain marshaller again.
package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/bus"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/emitter"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/marshaller"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pool"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/resolver"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/voice"
)

// Config controls engine construction and the optional preemptive
// virtualization scheduler (§4.10, §9).
type Config struct {
	// PoolCapacity is the fixed number of backend sources available to
	// physical voices. Zero uses pool.DefaultCapacity.
	PoolCapacity int

	// PreemptionEnabled opts into demoting lower-priority physical voices
	// to make room for higher-priority virtual ones (§9's resolved open
	// question; disabled reproduces the source's promotion-only
	// behavior).
	PreemptionEnabled bool

	// PreemptionMargin is the minimum effective-priority advantage a
	// virtual voice must hold over the lowest-priority physical voice
	// before preemption will demote it. Only consulted when
	// PreemptionEnabled is true.
	PreemptionMargin int

	// DefaultScheme is the resolver's scheme used for bare-path resource
	// requests (§4.11).
	DefaultScheme string

	// DiagnosticBuffer sizes the Diagnostics() channel. A full channel
	// drops the oldest diagnostic rather than blocking the tick (§9).
	DiagnosticBuffer int

	Logger *slog.Logger
}

// Engine owns every audio-thread-exclusive subsystem and is the sole
// caller of Tick (§5: single-threaded cooperative scheduling model).
type Engine struct {
	cfg    Config
	logger *slog.Logger

	be   backend.Backend
	pool *pool.Pool
	mq   *marshaller.Marshaller

	buses    *bus.Tree
	listener *listener.Listener
	resolver *resolver.Registry

	emitters map[uuid.UUID]*emitter.Emitter
	voices   map[uuid.UUID]*voice.Voice

	diagnostics chan Diagnostic
}

// New constructs an Engine over be, renting its full source pool up
// front (§6: "Source create/destroy in bulk").
func New(be backend.Backend, cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultScheme == "" {
		cfg.DefaultScheme = "file"
	}
	if cfg.DiagnosticBuffer <= 0 {
		cfg.DiagnosticBuffer = 64
	}

	p, err := pool.New(be, cfg.PoolCapacity)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		logger:      cfg.Logger,
		be:          be,
		pool:        p,
		mq:          marshaller.New(cfg.Logger),
		buses:       bus.New(),
		listener:    listener.New(),
		resolver:    resolver.New(cfg.DefaultScheme),
		emitters:    make(map[uuid.UUID]*emitter.Emitter),
		voices:      make(map[uuid.UUID]*voice.Voice),
		diagnostics: make(chan Diagnostic, cfg.DiagnosticBuffer),
	}
	return e, nil
}

// Buses returns the engine's bus tree, for read access and for wrapping
// mutations through Submit/SubmitAwait.
func (e *Engine) Buses() *bus.Tree { return e.buses }

// Listener returns the engine's listener state.
func (e *Engine) Listener() *listener.Listener { return e.listener }

// Resolver returns the engine's resource resolver registry.
func (e *Engine) Resolver() *resolver.Registry { return e.resolver }

// Marshaller returns the audio-thread marshaller, for callers building
// additional deferred operations on top of the engine.
func (e *Engine) Marshaller() *marshaller.Marshaller { return e.mq }

// Submit defers fn to run at the next marshaller drain, fire-and-forget.
func (e *Engine) Submit(label string, fn func() error) error {
	return e.mq.Submit(label, fn)
}

// SubmitAwait defers fn and blocks the caller until it has run.
func (e *Engine) SubmitAwait(ctx context.Context, label string, fn func() (any, error)) (any, error) {
	return e.mq.SubmitAwait(ctx, label, fn)
}

// CreateEmitter deferred-creates a new Emitter and returns it once
// registered (§4.3).
func (e *Engine) CreateEmitter(ctx context.Context) (*emitter.Emitter, error) {
	v, err := e.mq.SubmitAwait(ctx, "create-emitter", func() (any, error) {
		em := emitter.New()
		e.emitters[em.ID] = em
		return em, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*emitter.Emitter), nil
}

// DestroyEmitter deferred-disposes an emitter and drops it from the
// registry.
func (e *Engine) DestroyEmitter(ctx context.Context, em *emitter.Emitter) error {
	_, err := e.mq.SubmitAwait(ctx, "destroy-emitter", func() (any, error) {
		em.Dispose()
		delete(e.emitters, em.ID)
		return nil, nil
	})
	return err
}

// CreateVoice deferred-creates a persistent voice over gen, bound to bus
// (Master if busPath is empty). The caller owns the returned voice's disposal (§3,
// §9). Ownership of gen's construction reference passes to the engine:
// exclusive (streaming) generators are handed off to the voice outright,
// while shared (static) generators are already weakly held by the
// resolver's cache and need no further release here.
func (e *Engine) CreateVoice(ctx context.Context, gen generator.Generator, busPath string) (*voice.Voice, error) {
	return e.createVoice(ctx, gen, busPath, false)
}

// releaseHandoff drops gen's construction reference once a voice has
// Retained its own (voice.New always does), completing the hand-off from
// whichever resolver.Provider vended gen. Only exclusive generators carry
// an unclaimed construction reference at this point: shared static
// generators already relinquished theirs into the provider's cache (§3,
// §4.11).
func (e *Engine) releaseHandoff(gen generator.Generator) {
	if gen.Exclusive() {
		gen.Release()
	}
}

func (e *Engine) createVoice(ctx context.Context, gen generator.Generator, busPath string, oneShot bool) (*voice.Voice, error) {
	v, err := e.mq.SubmitAwait(ctx, "create-voice", func() (any, error) {
		b := e.buses.Master()
		if busPath != "" {
			b = e.buses.ResolveOrCreate(busPath)
		}
		vo := voice.New(e.be, e.pool, gen, b, oneShot)
		e.releaseHandoff(gen)
		e.voices[vo.ID] = vo
		return vo, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*voice.Voice), nil
}

// PlayOneShot resolves uri to a generator and plays it as an
// engine-owned one-shot. Resolution and decode are async work that must
// not block the audio thread (§5), so they run on a helper goroutine;
// only the final voice creation and Play are marshalled onto the audio
// thread. Resolution and decode failures are surfaced via Diagnostics
// instead of being silently swallowed (§9). As with CreateVoice, the
// resolved generator's construction reference passes to the engine.
func (e *Engine) PlayOneShot(busPath, uri string) {
	go func() {
		gen, ok := e.resolveForOneShot(uri)
		if !ok {
			return
		}
		e.Submit("play-one-shot", func() error {
			b := e.buses.Master()
			if busPath != "" {
				b = e.buses.ResolveOrCreate(busPath)
			}
			vo := voice.New(e.be, e.pool, gen, b, true)
			e.releaseHandoff(gen)
			e.voices[vo.ID] = vo
			vo.Play()
			return nil
		})
	}()
}

// PlayOneShotThroughEmitter resolves uri and plays it as an engine-owned
// one-shot attached to em (§4.3's "play one-shot through this emitter"):
// the voice inherits em's pose and, when set, its bus override instead of
// Master. Resolution and decode run off the audio thread exactly as in
// PlayOneShot, including the construction-reference hand-off.
func (e *Engine) PlayOneShotThroughEmitter(em *emitter.Emitter, uri string) {
	go func() {
		gen, ok := e.resolveForOneShot(uri)
		if !ok {
			return
		}
		e.Submit("play-one-shot-through-emitter", func() error {
			vo := voice.New(e.be, e.pool, gen, e.busForEmitter(em), true)
			e.releaseHandoff(gen)
			e.voices[vo.ID] = vo
			vo.AttachToEmitter(em)
			vo.Play()
			return nil
		})
	}()
}

// resolveForOneShot runs the resolve-then-wait-for-ready steps shared by
// PlayOneShot and PlayOneShotThroughEmitter, reporting any failure via
// Diagnostics and returning ok=false.
func (e *Engine) resolveForOneShot(uri string) (generator.Generator, bool) {
	gen, err := e.resolver.Resolve(context.Background(), uri)
	if err != nil {
		e.emitDiagnostic(Diagnostic{Kind: DiagResolveFailure, URI: uri, Err: err})
		return nil, false
	}
	if gen == nil {
		e.emitDiagnostic(Diagnostic{Kind: DiagResourceNotFound, URI: uri})
		return nil, false
	}
	if !gen.Ready() {
		<-gen.Done()
	}
	if err := gen.InitError(); err != nil {
		e.emitDiagnostic(Diagnostic{Kind: DiagDecodeFailure, URI: uri, Err: err})
		return nil, false
	}
	return gen, true
}

// AttachVoiceToEmitter attaches v to em (§4.3's "attach voice" operation),
// routing v through em's bus override when one is set rather than leaving
// it on whatever bus it was created on.
func (e *Engine) AttachVoiceToEmitter(ctx context.Context, v *voice.Voice, em *emitter.Emitter) error {
	_, err := e.mq.SubmitAwait(ctx, "attach-voice-to-emitter", func() (any, error) {
		v.AttachToEmitter(em)
		if em != nil && em.BusOverride != "" {
			v.SetBus(e.buses.ResolveOrCreate(em.BusOverride))
		}
		return nil, nil
	})
	return err
}

// busForEmitter resolves em's bus override, falling back to Master when em
// is nil or carries no override.
func (e *Engine) busForEmitter(em *emitter.Emitter) *bus.Bus {
	if em != nil && em.BusOverride != "" {
		return e.buses.ResolveOrCreate(em.BusOverride)
	}
	return e.buses.Master()
}

// Voice looks up a voice by ID.
func (e *Engine) Voice(id uuid.UUID) (*voice.Voice, bool) {
	v, ok := e.voices[id]
	return v, ok
}

// Close tears down the engine's source pool. The caller must ensure no
// further Tick calls occur afterward.
func (e *Engine) Close() error {
	close(e.diagnostics)
	return e.pool.Close()
}
