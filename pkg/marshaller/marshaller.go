// Package marshaller implements the single-producer-from-many,
// single-consumer-on-audio-thread queue of deferred actions described in
// §4.1 of the specification. Any goroutine may submit an action; only the
// goroutine that calls Drain ever executes one, and actions never run
// concurrently with each other or with other audio-thread work.
package marshaller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueClosed is returned by Submit/SubmitAwait once the marshaller has
// been closed.
var ErrQueueClosed = errors.New("marshaller: queue is closed")

// action is a queued unit of work. completion is nil for fire-and-forget
// submissions.
type action struct {
	run        func() (any, error)
	completion chan result
	label      string
}

type result struct {
	value any
	err   error
}

// Marshaller is the audio-thread deferred-action queue.
type Marshaller struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []action
	closed bool
}

// New creates a Marshaller. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Marshaller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Marshaller{logger: logger}
}

// Submit enqueues a fire-and-forget action. Any error it returns is logged
// and otherwise swallowed; it never interrupts the draining tick (§7).
func (m *Marshaller) Submit(label string, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrQueueClosed
	}
	m.queue = append(m.queue, action{
		label: label,
		run: func() (any, error) {
			return nil, fn()
		},
	})
	return nil
}

// SubmitAwait enqueues a completion-signaling action and blocks the caller
// (via ctx) until it has been fully processed by the next Drain. The
// action's result or error is delivered to the waiter only (§7).
func (m *Marshaller) SubmitAwait(ctx context.Context, label string, fn func() (any, error)) (any, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrQueueClosed
	}
	completion := make(chan result, 1)
	m.queue = append(m.queue, action{
		label:      label,
		run:        fn,
		completion: completion,
	})
	m.mu.Unlock()

	select {
	case r := <-completion:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drain runs every action currently queued, in FIFO enqueue order, and
// returns once they have all executed. Actions submitted reentrantly from
// within a running action are queued but are not visible to this Drain
// call — they wait for the next one, satisfying the two-drains-per-tick
// ordering rule in §5.
func (m *Marshaller) Drain() {
	m.mu.Lock()
	pending := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, a := range pending {
		value, err := a.run()
		if a.completion != nil {
			a.completion <- result{value: value, err: err}
			continue
		}
		if err != nil {
			m.logger.Error("marshaller action failed", "label", a.label, "err", err)
		}
	}
}

// Close marks the queue closed; further Submit/SubmitAwait calls fail with
// ErrQueueClosed. Actions already queued are not discarded — call Drain
// one last time if they must still run.
func (m *Marshaller) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
