package engine

import "github.com/the-byte-bender/Playmaker.Audio/pkg/voice"

// Tick advances the engine by dt seconds (§2, §4.6, §4.10). It must be
// called only from the designated audio thread; it never blocks.
func (e *Engine) Tick(dt float64) {
	e.mq.Drain()

	for _, v := range e.voices {
		v.Update(dt)
	}

	e.applyListener()

	e.runVirtualizationScheduler()

	e.reapOneShots()

	e.mq.Drain()
}

func (e *Engine) applyListener() {
	l := e.listener
	e.be.SetListenerPosition(l.Position)
	e.be.SetListenerVelocity(l.Velocity)
	e.be.SetListenerOrientation(l.Orientation)
}

// reapOneShots disposes every engine-owned one-shot voice that has
// reached Stopped, dropping it from the registry (§4.10, §8 "one-shot
// reaping").
func (e *Engine) reapOneShots() {
	for id, v := range e.voices {
		if v.IsOneShot() && v.State() == voice.Stopped {
			v.Dispose()
			delete(e.voices, id)
		}
	}
}
