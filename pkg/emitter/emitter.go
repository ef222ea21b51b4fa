// Package emitter implements the transform-anchor entity described in §3
// and §4.3: a world pose that attached voices inherit each tick, with a
// version counter bumped only on an actual change so dependent voices are
// not reprocessed spuriously.
package emitter

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
)

// Emitter is audio-thread-exclusive state, mutated only from within the
// engine's marshaller drain.
type Emitter struct {
	ID uuid.UUID

	Position listener.Vector3
	Velocity listener.Vector3

	// BusOverride, when non-empty, overrides the bus a voice attached to this
	// emitter would otherwise use.
	BusOverride  string
	PriorityBias int

	version uint64

	disposed bool
}

// New creates an Emitter at the origin with no bus override.
func New() *Emitter {
	return &Emitter{ID: uuid.New()}
}

// Version returns the emitter's current version counter.
func (e *Emitter) Version() uint64 {
	return atomic.LoadUint64(&e.version)
}

func (e *Emitter) bump() {
	atomic.AddUint64(&e.version, 1)
}

// Disposed reports whether Dispose has been called.
func (e *Emitter) Disposed() bool {
	return e.disposed
}

// SetTransform sets position and velocity, bumping the version only if
// either actually changed (§4.3).
func (e *Emitter) SetTransform(position, velocity listener.Vector3) {
	if position == e.Position && velocity == e.Velocity {
		return
	}
	e.Position = position
	e.Velocity = velocity
	e.bump()
}

// SetBusOverride sets (or clears, with "") the emitter's bus override,
// bumping the version only on an actual change.
func (e *Emitter) SetBusOverride(busPath string) {
	if busPath == e.BusOverride {
		return
	}
	e.BusOverride = busPath
	e.bump()
}

// SetPriorityBias sets the emitter's priority bias, bumping the version
// only on an actual change.
func (e *Emitter) SetPriorityBias(bias int) {
	if bias == e.PriorityBias {
		return
	}
	e.PriorityBias = bias
	e.bump()
}

// Dispose marks the emitter destroyed. Voices keep a non-owning reference
// and must treat a disposed emitter's pose as the zero pose (§4.7).
func (e *Emitter) Dispose() {
	e.disposed = true
}
