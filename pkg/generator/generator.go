// Package generator implements static and streaming PCM producers (§3,
// §4.7, §4.8, §4.9). A Generator is reference-counted (shared by every
// voice attached to it and, transiently, by the provider that constructed
// it); the last Release destroys its backend buffers.
//
// Dispatch between the two concrete variants is a small discriminator
// (Kind), not inheritance: callers that need variant-specific behavior
// (the voice's hydrate/pump paths) switch on Kind and assert to the
// concrete type.
package generator

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// Kind discriminates the two Generator variants.
type Kind int

const (
	KindStatic Kind = iota
	KindStreaming
)

// Generator is the common capability set every variant provides.
type Generator interface {
	ID() uuid.UUID
	Kind() Kind
	Format() pcm.Format
	// Duration returns the total duration in seconds, or (0, false) if
	// unknown/infinite.
	Duration() (seconds float64, known bool)
	// Exclusive reports whether this generator is restricted to a single
	// voice (true means it may not be shared). Streaming generators are
	// always exclusive; static buffers are not (§3).
	Exclusive() bool

	// Retain increments the reference count. Called once per attached
	// voice.
	Retain()
	// Release decrements the reference count; at zero, the generator is
	// destroyed.
	Release()
	// SilentRelease decrements the reference count without ever
	// triggering destruction, even if it reaches zero. Used by providers
	// that are handing ownership to a caller who will retain separately.
	SilentRelease()
	RefCount() int32

	// Ready reports whether asynchronous initialization has completed
	// successfully. Voices built on a generator that is not Ready (or
	// whose init failed) must not be created (§7.2).
	Ready() bool
	// InitError returns the error from asynchronous initialization, if
	// any. Only meaningful once Ready() is true or Done() has fired.
	InitError() error
	// Done returns a channel closed once asynchronous initialization has
	// finished (successfully or not).
	Done() <-chan struct{}

	Disposed() bool

	// OnDispose registers fn to run when this generator is destroyed (ref
	// count reaches zero via Release). Used by the resolver's file
	// provider to invalidate its cache entry directly rather than scanning
	// for it (§4.11, §9).
	OnDispose(fn func())
}

// base is embedded by both concrete generator types to share identity,
// format, reference counting and async-init bookkeeping.
type base struct {
	id        uuid.UUID
	format    pcm.Format
	exclusive bool

	refCount int32
	disposed atomic.Bool

	ready      atomic.Bool
	initErr    error
	done       chan struct{}
	disposeFn  func()
	disposeMu  sync.Mutex
	onDispose  []func()
}

func newBase(format pcm.Format, exclusive bool) base {
	return base{
		id:        uuid.New(),
		format:    format,
		exclusive: exclusive,
		refCount:  1,
		done:      make(chan struct{}),
	}
}

func (b *base) ID() uuid.UUID       { return b.id }
func (b *base) Format() pcm.Format  { return b.format }
func (b *base) Exclusive() bool     { return b.exclusive }
func (b *base) RefCount() int32     { return atomic.LoadInt32(&b.refCount) }
func (b *base) Ready() bool         { return b.ready.Load() }
func (b *base) InitError() error    { return b.initErr }
func (b *base) Done() <-chan struct{} { return b.done }
func (b *base) Disposed() bool      { return b.disposed.Load() }

func (b *base) markReady(err error) {
	b.initErr = err
	if err == nil {
		b.ready.Store(true)
	}
	close(b.done)
}

func (b *base) Retain() {
	atomic.AddInt32(&b.refCount, 1)
}

func (b *base) SilentRelease() {
	atomic.AddInt32(&b.refCount, -1)
}

func (b *base) Release() {
	if atomic.AddInt32(&b.refCount, -1) == 0 {
		if b.disposed.CompareAndSwap(false, true) {
			if b.disposeFn != nil {
				b.disposeFn()
			}
			b.disposeMu.Lock()
			hooks := b.onDispose
			b.disposeMu.Unlock()
			for _, fn := range hooks {
				fn()
			}
		}
	}
}

// OnDispose registers fn to run once, when the generator is destroyed.
func (b *base) OnDispose(fn func()) {
	b.disposeMu.Lock()
	b.onDispose = append(b.onDispose, fn)
	b.disposeMu.Unlock()
}
