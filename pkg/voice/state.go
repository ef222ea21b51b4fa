package voice

import "github.com/the-byte-bender/Playmaker.Audio/pkg/generator"

// Play drives the state machine's play transition (§4.5). Idempotent: a
// no-op when already in a playing state.
func (v *Voice) Play() {
	switch v.state {
	case PlayingPhysical, PlayingVirtual:
		return
	case Disposed:
		return
	case Stopped:
		if h, err := v.pool.Rent(); err == nil {
			v.source = h
			v.state = PlayingPhysical
			v.hydrate()
		} else {
			v.state = PlayingVirtual
		}
	case PausedPhysical:
		if err := v.be.Play(v.source); err != nil {
			v.degradeToVirtual()
			v.state = PlayingVirtual
		} else {
			v.state = PlayingPhysical
		}
	case PausedVirtual:
		v.state = PlayingVirtual
	}
}

// Pause drives the state machine's pause transition (§4.5). Idempotent.
func (v *Voice) Pause() {
	switch v.state {
	case PausedPhysical, PausedVirtual, Stopped, Disposed:
		return
	case PlayingPhysical:
		if err := v.be.Pause(v.source); err != nil {
			v.degradeToVirtual()
			v.state = PausedVirtual
		} else {
			v.state = PausedPhysical
		}
	case PlayingVirtual:
		v.state = PausedVirtual
	}
}

// Stop drives the state machine's stop transition (§4.5), releasing any
// held source and resetting the playhead. Idempotent.
func (v *Voice) Stop() {
	if v.state == Stopped || v.state == Disposed {
		return
	}
	v.disconnect()
	v.logicalPlaybackTime = 0
	v.seekGeneratorToZero()
	v.state = Stopped
}

// Rewind resets the logical playback time to zero without changing state
// (§4.5).
func (v *Voice) Rewind() {
	if v.state == Disposed {
		return
	}
	v.logicalPlaybackTime = 0
	if v.state.Physical() {
		v.be.Rewind(v.source)
	}
	v.seekGeneratorToZero()
}

func (v *Voice) seekGeneratorToZero() {
	s, ok := v.generator.(*generator.Streaming)
	if ok && s.Seekable() {
		s.Seek(0)
	}
}

// Dispose transitions the voice to the terminal Disposed state, releasing
// its source (if held) and detaching its generator. Idempotent.
func (v *Voice) Dispose() {
	if v.state == Disposed {
		return
	}
	v.disconnect()
	v.state = Disposed
	if v.generator != nil {
		v.generator.Release()
		v.generator = nil
	}
}

// degradeToVirtual drops a now-invalid source handle without a further
// backend call, used when a backend operation reports the handle is no
// longer valid.
func (v *Voice) degradeToVirtual() {
	if v.source != 0 {
		v.pool.Return(v.source)
	}
	v.source = 0
	v.dirty |= dirtyAll &^ DirtyPriority
}

// disconnect is the common "stop and release" path used by Stop, Dispose
// and scheduler-driven demotion (§4.7 "Disconnection").
func (v *Voice) disconnect() {
	if !v.state.Physical() {
		return
	}
	v.be.Stop(v.source)
	v.disconnectGenerator()
	v.pool.Return(v.source)
	v.source = 0
}

// disconnectGenerator detaches the backend's attached buffer (static) or
// drains any queued buffers back to the generator's free set (streaming),
// matching §4.7's disconnection step. Dispatch is an explicit match on
// generator variant, not inheritance (§9).
func (v *Voice) disconnectGenerator() {
	switch g := v.generator.(type) {
	case *generator.Static:
		v.be.DetachBuffer(v.source)
	case *generator.Streaming:
		queued, err := v.be.UnqueueProcessedBuffers(v.source)
		if err == nil {
			for _, b := range queued {
				g.PushFree(b)
			}
		}
		v.streamQueued = 0
	}
}

// Promote attempts to move a virtual voice to physical by renting a
// source (§4.10). Returns true on success. Invoked by the engine's
// virtualization scheduler, on the audio thread; not part of the
// marshaller-deferred public contract (§4.4).
func (v *Voice) Promote() bool {
	if v.state != PlayingVirtual && v.state != PausedVirtual {
		return false
	}
	h, err := v.pool.Rent()
	if err != nil {
		return false
	}
	v.source = h
	wasPlaying := v.state == PlayingVirtual
	if wasPlaying {
		v.state = PlayingPhysical
	} else {
		v.state = PausedPhysical
	}
	v.hydrate()
	if !wasPlaying {
		v.be.Pause(v.source)
	}
	return true
}

// Demote captures the backend playhead into logical playback time,
// releases the source, and mirrors the voice's state category back to
// virtual (§4.5 "Demotion Physical→Virtual"). Invoked by the engine's
// preemptive virtualization scheduler, on the audio thread.
func (v *Voice) Demote() {
	if !v.state.Physical() {
		return
	}
	if seconds, err := v.be.PlayheadSeconds(v.source); err == nil {
		v.logicalPlaybackTime = seconds
	}
	wasPlaying := v.state == PlayingPhysical
	v.be.Stop(v.source)
	v.disconnectGenerator()
	v.pool.Return(v.source)
	v.source = 0
	if wasPlaying {
		v.state = PlayingVirtual
	} else {
		v.state = PausedVirtual
	}
}
