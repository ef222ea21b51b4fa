// Package voice implements the state machine representing a playable
// instance of a generator (§3, §4.4–§4.7): virtualization against a
// bounded source pool, hierarchical gain/pitch/priority inheritance, and
// the dirty-flag bitset that limits backend writes to what actually
// changed.
//
// Every exported mutator here is meant to be invoked only from within the
// engine's marshaller drain; a Voice is audio-thread-exclusive state.
package voice

import (
	"github.com/google/uuid"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/bus"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/emitter"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pool"
)

// State is one node of the voice state machine (§4.5). Disposed is
// terminal.
type State int

const (
	Stopped State = iota
	PlayingPhysical
	PausedPhysical
	PlayingVirtual
	PausedVirtual
	Disposed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case PlayingPhysical:
		return "PlayingPhysical"
	case PausedPhysical:
		return "PausedPhysical"
	case PlayingVirtual:
		return "PlayingVirtual"
	case PausedVirtual:
		return "PausedVirtual"
	case Disposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Physical reports whether this state holds a backend source.
func (s State) Physical() bool {
	return s == PlayingPhysical || s == PausedPhysical
}

// Playing reports whether this state is one of the two "playing"
// categories, physical or virtual.
func (s State) Playing() bool {
	return s == PlayingPhysical || s == PlayingVirtual
}

// MixMode determines how a voice's position/velocity are spatialized
// (§3, §4.7).
type MixMode int

const (
	Direct MixMode = iota
	Relative
	Spatialized
)

// DirtyFlags is the small fixed per-voice bitset (§9 "dirty-flag bitset").
type DirtyFlags uint8

const (
	DirtyGain DirtyFlags = 1 << iota
	DirtyPitch
	DirtyTransform
	DirtyLooping
	DirtyMixMode
	DirtyAttenuation
	DirtyPriority

	dirtyAll = DirtyGain | DirtyPitch | DirtyTransform | DirtyLooping |
		DirtyMixMode | DirtyAttenuation | DirtyPriority
)

// hysteresisEpsilon bounds how close a newly-computed scalar must be to
// the last-applied value before a redundant backend write is skipped
// (§4.7).
const hysteresisEpsilon = 0.001

// Local holds the caller-settable parameters of a voice (§3).
type Local struct {
	Gain     float64
	Pitch    float64
	Position listener.Vector3
	Velocity listener.Vector3
	Looping  bool

	RolloffFactor     float64
	ReferenceDistance float64
	MaxDistance       float64

	Priority int
	MixMode  MixMode
}

// DefaultLocal returns the parameter defaults a freshly-created voice
// starts with.
func DefaultLocal() Local {
	return Local{
		Gain:              1,
		Pitch:             1,
		RolloffFactor:     1,
		ReferenceDistance: 1,
		MaxDistance:       0,
		MixMode:           Spatialized,
	}
}

// applied mirrors the subset of Local last actually committed to the
// backend, for hysteresis comparisons.
type applied struct {
	gain, pitch   float64
	worldPosition listener.Vector3
	worldVelocity listener.Vector3
}

// Voice is a playable instance of a Generator (§3).
type Voice struct {
	ID uuid.UUID

	be   backend.Backend
	pool *pool.Pool

	generator generator.Generator
	bus       *bus.Bus
	emitter   *emitter.Emitter

	Local Local

	isOneShot bool

	state  State
	source backend.SourceHandle

	logicalPlaybackTime float64

	lastBusVersion     uint64
	lastEmitterVersion uint64

	dirty   DirtyFlags
	applied applied

	effectivePriority int

	// streamQueued tracks how many streaming buffers are currently queued
	// on the backend source, maintaining the §3 streaming-conservation
	// invariant jointly with the generator's own free/filled sets.
	streamQueued int
}

// New constructs a Stopped voice bound to gen and b. The engine always
// passes a bus (Master when no path is given); a nil b leaves gain, pitch
// and priority unscaled by any bus. The generator's
// reference count is incremented once, for this voice's attachment (§3).
func New(be backend.Backend, p *pool.Pool, gen generator.Generator, b *bus.Bus, oneShot bool) *Voice {
	gen.Retain()
	v := &Voice{
		ID:        uuid.New(),
		be:        be,
		pool:      p,
		generator: gen,
		bus:       b,
		Local:     DefaultLocal(),
		isOneShot: oneShot,
		state:     Stopped,
		dirty:     dirtyAll,
	}
	if b != nil {
		v.lastBusVersion = b.Version()
	}
	v.recomputePriority()
	return v
}

// State returns the voice's current state.
func (v *Voice) State() State { return v.state }

// IsOneShot reports whether the engine owns this voice's disposal.
func (v *Voice) IsOneShot() bool { return v.isOneShot }

// Generator returns the generator this voice plays.
func (v *Voice) Generator() generator.Generator { return v.generator }

// Bus returns the voice's bus.
func (v *Voice) Bus() *bus.Bus { return v.bus }

// Emitter returns the voice's attached emitter, or nil.
func (v *Voice) Emitter() *emitter.Emitter { return v.emitter }

// LogicalPlaybackTime returns the canonical playhead in seconds (§3).
func (v *Voice) LogicalPlaybackTime() float64 { return v.logicalPlaybackTime }

// EffectivePriority returns the last-computed effective priority (§3,
// §4.7): local priority plus emitter bias plus bus effective bias.
func (v *Voice) EffectivePriority() int { return v.effectivePriority }

// SourceHandle returns the backend source handle and whether one is held.
// A handle is present iff State().Physical() (§3 invariant).
func (v *Voice) SourceHandle() (backend.SourceHandle, bool) {
	return v.source, v.state.Physical()
}

func (v *Voice) disposedGuard() bool { return v.state == Disposed }

func (v *Voice) markDirty(flags DirtyFlags) { v.dirty |= flags }

// SetGain sets the voice's local gain and marks it dirty.
func (v *Voice) SetGain(gain float64) {
	if v.disposedGuard() {
		return
	}
	v.Local.Gain = gain
	v.markDirty(DirtyGain)
}

// SetPitch sets the voice's local pitch and marks it dirty.
func (v *Voice) SetPitch(pitch float64) {
	if v.disposedGuard() {
		return
	}
	v.Local.Pitch = pitch
	v.markDirty(DirtyPitch)
}

// SetLooping sets the looping flag and marks it dirty.
func (v *Voice) SetLooping(looping bool) {
	if v.disposedGuard() {
		return
	}
	v.Local.Looping = looping
	v.markDirty(DirtyLooping)
	if s, ok := v.generator.(*generator.Streaming); ok {
		s.SetLooping(looping)
	}
}

// SetPosition sets the voice-local position offset and marks transform
// dirty.
func (v *Voice) SetPosition(p listener.Vector3) {
	if v.disposedGuard() {
		return
	}
	v.Local.Position = p
	v.markDirty(DirtyTransform)
}

// SetVelocity sets the voice-local velocity and marks transform dirty.
func (v *Voice) SetVelocity(vel listener.Vector3) {
	if v.disposedGuard() {
		return
	}
	v.Local.Velocity = vel
	v.markDirty(DirtyTransform)
}

// SetTransform sets both position and velocity in one call.
func (v *Voice) SetTransform(p, vel listener.Vector3) {
	if v.disposedGuard() {
		return
	}
	v.Local.Position = p
	v.Local.Velocity = vel
	v.markDirty(DirtyTransform)
}

// SetPriority sets the voice's local priority and recomputes effective
// priority.
func (v *Voice) SetPriority(priority int) {
	if v.disposedGuard() {
		return
	}
	v.Local.Priority = priority
	v.markDirty(DirtyPriority)
	v.recomputePriority()
}

// SetRolloffFactor sets the rolloff factor and marks attenuation dirty.
func (v *Voice) SetRolloffFactor(rolloff float64) {
	if v.disposedGuard() {
		return
	}
	v.Local.RolloffFactor = rolloff
	v.markDirty(DirtyAttenuation)
}

// SetReferenceDistance sets the reference distance and marks attenuation
// dirty.
func (v *Voice) SetReferenceDistance(distance float64) {
	if v.disposedGuard() {
		return
	}
	v.Local.ReferenceDistance = distance
	v.markDirty(DirtyAttenuation)
}

// SetMaxDistance sets the max distance and marks attenuation dirty.
func (v *Voice) SetMaxDistance(distance float64) {
	if v.disposedGuard() {
		return
	}
	v.Local.MaxDistance = distance
	v.markDirty(DirtyAttenuation)
}

// SetMixMode sets the mix mode and marks it dirty.
func (v *Voice) SetMixMode(mode MixMode) {
	if v.disposedGuard() {
		return
	}
	v.Local.MixMode = mode
	v.markDirty(DirtyMixMode)
}

// AttachToEmitter rebinds the voice to e (nil to detach), marking
// transform and priority dirty (§4.4).
func (v *Voice) AttachToEmitter(e *emitter.Emitter) {
	if v.disposedGuard() {
		return
	}
	v.emitter = e
	if e != nil {
		v.lastEmitterVersion = e.Version()
	} else {
		v.lastEmitterVersion = 0
	}
	v.markDirty(DirtyTransform | DirtyPriority)
	v.recomputePriority()
}

// SetBus rebinds the voice to a different bus — used by the engine to
// route a voice through an attached emitter's bus override (§4.3) — and
// resyncs the last-seen bus version so the next Update doesn't observe a
// spurious version jump.
func (v *Voice) SetBus(b *bus.Bus) {
	if v.disposedGuard() {
		return
	}
	v.bus = b
	if b != nil {
		v.lastBusVersion = b.Version()
	} else {
		v.lastBusVersion = 0
	}
	v.markDirty(DirtyGain | DirtyPitch | DirtyPriority)
	v.recomputePriority()
}

func (v *Voice) recomputePriority() {
	bias := 0
	if v.emitter != nil && !v.emitter.Disposed() {
		bias += v.emitter.PriorityBias
	}
	if v.bus != nil {
		bias += v.bus.Effective().PriorityBias
	}
	v.effectivePriority = v.Local.Priority + bias
}
