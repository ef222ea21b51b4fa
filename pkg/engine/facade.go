package engine

import (
	"context"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
)

// The methods here wrap §4.2's bus operations in the marshaller's
// request/reply form, matching §5: "no public operation may touch
// audio-thread-owned state synchronously from off-thread callers."
// Callers already running on the audio thread (e.g. inside another
// marshalled action) should call the Bus tree directly via Buses()
// instead, to avoid deadlocking on their own drain.

// SetBusGain defers a bus gain change onto the audio thread and waits
// for it to take effect.
func (e *Engine) SetBusGain(ctx context.Context, path string, gain float64) error {
	_, err := e.mq.SubmitAwait(ctx, "set-bus-gain", func() (any, error) {
		e.buses.ResolveOrCreate(path).SetGain(gain)
		return nil, nil
	})
	return err
}

// SetBusPitch defers a bus pitch change onto the audio thread.
func (e *Engine) SetBusPitch(ctx context.Context, path string, pitch float64) error {
	_, err := e.mq.SubmitAwait(ctx, "set-bus-pitch", func() (any, error) {
		e.buses.ResolveOrCreate(path).SetPitch(pitch)
		return nil, nil
	})
	return err
}

// SetBusMuted defers a bus mute change onto the audio thread.
func (e *Engine) SetBusMuted(ctx context.Context, path string, muted bool) error {
	_, err := e.mq.SubmitAwait(ctx, "set-bus-muted", func() (any, error) {
		e.buses.ResolveOrCreate(path).SetMuted(muted)
		return nil, nil
	})
	return err
}

// SetBusPriorityBias defers a bus priority-bias change onto the audio
// thread.
func (e *Engine) SetBusPriorityBias(ctx context.Context, path string, bias int) error {
	_, err := e.mq.SubmitAwait(ctx, "set-bus-priority-bias", func() (any, error) {
		e.buses.ResolveOrCreate(path).SetPriorityBias(bias)
		return nil, nil
	})
	return err
}

// DeleteBus defers removal of the bus at path.
func (e *Engine) DeleteBus(ctx context.Context, path string) (bool, error) {
	v, err := e.mq.SubmitAwait(ctx, "delete-bus", func() (any, error) {
		return e.buses.Delete(path), nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// SetListenerTransform defers a listener pose update onto the audio
// thread.
func (e *Engine) SetListenerTransform(ctx context.Context, position, velocity listener.Vector3) error {
	_, err := e.mq.SubmitAwait(ctx, "set-listener-transform", func() (any, error) {
		e.listener.SetTransform(position, velocity)
		return nil, nil
	})
	return err
}
