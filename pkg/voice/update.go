package voice

import (
	"math"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
)

// Update advances the voice by dt seconds (§4.6). Called once per tick,
// for every voice, after the marshaller's first drain.
func (v *Voice) Update(dt float64) {
	if v.state == Stopped || v.state == Disposed {
		return
	}

	if v.state == PlayingVirtual {
		v.logicalPlaybackTime += dt * v.effectivePitch()
		v.applyNaturalCompletionVirtual()
		return
	}

	if v.state.Physical() {
		if _, ok := v.generator.(*generator.Streaming); ok {
			v.pumpStreaming()
		} else if v.state == PlayingPhysical {
			if v.staticNaturallyCompleted() {
				v.Stop()
				return
			}
		}
	}

	v.checkDependencies()

	if v.dirty != 0 {
		v.applyDirty(false)
		v.dirty = 0
	}
}

func (v *Voice) effectivePitch() float64 {
	if v.bus == nil {
		return v.Local.Pitch
	}
	return v.Local.Pitch * v.bus.Effective().Pitch
}

func (v *Voice) effectiveGain() float64 {
	if v.bus == nil {
		return v.Local.Gain
	}
	return v.Local.Gain * v.bus.Effective().Gain
}

// applyNaturalCompletionVirtual implements §4.5's "Natural completion from
// Playing-Virtual".
func (v *Voice) applyNaturalCompletionVirtual() {
	duration, known := v.generator.Duration()
	if !known || duration <= 0 {
		return
	}
	if v.logicalPlaybackTime < duration {
		return
	}
	if v.Local.Looping {
		v.logicalPlaybackTime = math.Mod(v.logicalPlaybackTime, duration)
		return
	}
	v.Stop()
}

// staticNaturallyCompleted implements §4.6 step 4 for a static,
// Playing-Physical voice.
func (v *Voice) staticNaturallyCompleted() bool {
	state, err := v.be.SourceState(v.source)
	if err != nil {
		return false
	}
	return state == backend.SourceStopped && !v.Local.Looping
}

// checkDependencies implements §4.6 step 5: bus/emitter version
// comparison.
func (v *Voice) checkDependencies() {
	if v.bus != nil {
		if ver := v.bus.Version(); ver != v.lastBusVersion {
			v.markDirty(DirtyGain | DirtyPitch | DirtyPriority)
			v.lastBusVersion = ver
			v.recomputePriority()
		}
	}
	if v.emitter != nil {
		if ver := v.emitter.Version(); ver != v.lastEmitterVersion {
			v.markDirty(DirtyTransform | DirtyPriority)
			v.lastEmitterVersion = ver
			v.recomputePriority()
		}
	}
}

// hydrate attaches a freshly-rented source to the voice (§4.7).
func (v *Voice) hydrate() {
	v.dirty = dirtyAll
	v.applyDirty(true)

	switch g := v.generator.(type) {
	case *generator.Static:
		v.be.AttachBuffer(v.source, g.Buffer())
	case *generator.Streaming:
		var toQueue []backend.BufferHandle
		for {
			b, ok := g.PopFilled()
			if !ok {
				break
			}
			toQueue = append(toQueue, b)
		}
		if len(toQueue) > 0 {
			v.be.QueueBuffers(v.source, toQueue)
			v.streamQueued += len(toQueue)
		}
	}

	if v.logicalPlaybackTime > 0 {
		v.be.SeekSeconds(v.source, v.logicalPlaybackTime)
	}
	if v.state == PlayingPhysical || v.state == PlayingVirtual {
		v.be.Play(v.source)
	}
}

// applyDirty writes changed parameters to the backend (§4.7). force
// bypasses the hysteresis check on scalar fields and is set during
// hydration.
func (v *Voice) applyDirty(force bool) {
	physical := v.state.Physical()

	if force || v.dirty&DirtyGain != 0 {
		gain := v.effectiveGain()
		if force || !closeEnough(gain, v.applied.gain) {
			if physical {
				v.be.SetFloat(v.source, backend.ParamGain, gain)
			}
			v.applied.gain = gain
		}
	}

	if force || v.dirty&DirtyPitch != 0 {
		pitch := v.effectivePitch()
		if force || !closeEnough(pitch, v.applied.pitch) {
			if physical {
				v.be.SetFloat(v.source, backend.ParamPitch, pitch)
			}
			v.applied.pitch = pitch
		}
	}

	if force || v.dirty&DirtyTransform != 0 {
		worldPos, worldVel := v.worldTransform()
		if force || worldPos != v.applied.worldPosition || worldVel != v.applied.worldVelocity {
			if physical {
				v.be.SetVector3(v.source, backend.ParamPosition, worldPos)
				v.be.SetVector3(v.source, backend.ParamVelocity, worldVel)
			}
			v.applied.worldPosition = worldPos
			v.applied.worldVelocity = worldVel
		}
	}

	if (force || v.dirty&DirtyLooping != 0) && physical {
		v.be.SetBool(v.source, backend.ParamLooping, v.Local.Looping)
	}

	if (force || v.dirty&DirtyMixMode != 0) && physical {
		v.applyMixMode()
	}

	if (force || v.dirty&DirtyAttenuation != 0) && physical {
		v.be.SetFloat(v.source, backend.ParamRolloffFactor, v.Local.RolloffFactor)
		v.be.SetFloat(v.source, backend.ParamReferenceDistance, v.Local.ReferenceDistance)
		if v.Local.MaxDistance > 0 {
			v.be.SetFloat(v.source, backend.ParamMaxDistance, v.Local.MaxDistance)
		}
	}

	if force || v.dirty&DirtyPriority != 0 {
		v.recomputePriority()
	}
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= hysteresisEpsilon
}

// worldTransform implements §4.7's transform composition: emitter pose
// plus voice-local offset, with an unattached (or disposed) emitter
// treated as the zero pose.
func (v *Voice) worldTransform() (position, velocity listener.Vector3) {
	if v.emitter != nil && !v.emitter.Disposed() {
		return addVec3(v.emitter.Position, v.Local.Position), addVec3(v.emitter.Velocity, v.Local.Velocity)
	}
	return v.Local.Position, v.Local.Velocity
}

func addVec3(a, b listener.Vector3) listener.Vector3 {
	return listener.Vector3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func (v *Voice) applyMixMode() {
	switch v.Local.MixMode {
	case Direct:
		v.be.SetSpatializationEnabled(v.source, false)
		v.be.SetDirectChannelsEnabled(v.source, true)
	case Relative:
		v.be.SetSpatializationEnabled(v.source, true)
		v.be.SetRelativeToListener(v.source, true)
		v.be.SetDirectChannelsEnabled(v.source, false)
	case Spatialized:
		v.be.SetSpatializationEnabled(v.source, true)
		v.be.SetRelativeToListener(v.source, false)
		v.be.SetDirectChannelsEnabled(v.source, false)
	}
}

// pumpStreaming implements §4.8 for a Playing-Physical streaming voice.
func (v *Voice) pumpStreaming() {
	g, ok := v.generator.(*generator.Streaming)
	if !ok {
		return
	}

	processed, err := v.be.UnqueueProcessedBuffers(v.source)
	if err == nil {
		for _, b := range processed {
			g.PushFree(b)
			v.streamQueued--
		}
	}

	var toQueue []backend.BufferHandle
	for {
		b, ok := g.PopFilled()
		if !ok {
			break
		}
		toQueue = append(toQueue, b)
	}
	if len(toQueue) > 0 {
		if err := v.be.QueueBuffers(v.source, toQueue); err == nil {
			v.streamQueued += len(toQueue)
		} else {
			for _, b := range toQueue {
				g.PushFree(b)
			}
		}
	}

	if v.state != PlayingPhysical {
		return
	}
	state, err := v.be.SourceState(v.source)
	if err != nil || state == backend.SourcePlaying {
		return
	}

	queued, _ := v.be.QueuedBufferCount(v.source)
	switch {
	case queued > 0:
		v.be.Play(v.source)
	case g.EndOfStream():
		if !v.Local.Looping {
			v.Stop()
			return
		}
		v.logicalPlaybackTime = 0
		if g.Seekable() {
			g.Seek(0)
		}
	}
}
