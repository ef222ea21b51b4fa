// Package pool implements the fixed-capacity free-list of backend source
// handles described in §3 and §4.10. The pool only ever admits new
// physical voices when capacity allows; it never preempts (unless the
// engine's optional preemptive scheduler explicitly returns a handle first).
package pool

import (
	"errors"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
)

// ErrExhausted is returned by Rent when no source handles are free.
var ErrExhausted = errors.New("pool: no free source handles")

// DefaultCapacity is the pool capacity used when none is configured (§4.10).
const DefaultCapacity = 256

// Pool is a bounded-resource scheduler's free list of backend source
// handles. It is audio-thread-exclusive.
type Pool struct {
	backend  backend.Backend
	capacity int
	free     []backend.SourceHandle
	rented   map[backend.SourceHandle]struct{}
}

// New creates a Pool of the given capacity (DefaultCapacity when capacity
// is zero or negative), creating that many backend sources up front in
// bulk (§6: "Source create/destroy in bulk").
func New(be backend.Backend, capacity int) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	handles, err := be.CreateSources(capacity)
	if err != nil {
		return nil, err
	}
	return &Pool{
		backend:  be,
		capacity: capacity,
		free:     handles,
		rented:   make(map[backend.SourceHandle]struct{}, capacity),
	}, nil
}

// Capacity returns the pool's fixed capacity.
func (p *Pool) Capacity() int {
	return p.capacity
}

// InUse returns the number of currently-rented source handles.
func (p *Pool) InUse() int {
	return len(p.rented)
}

// Rent takes one free source handle, or returns ErrExhausted if the pool is
// fully rented.
func (p *Pool) Rent() (backend.SourceHandle, error) {
	if len(p.free) == 0 {
		var zero backend.SourceHandle
		return zero, ErrExhausted
	}
	n := len(p.free)
	h := p.free[n-1]
	p.free = p.free[:n-1]
	p.rented[h] = struct{}{}
	return h, nil
}

// Return gives a rented source handle back to the free list. Returning an
// unrented handle is a no-op.
func (p *Pool) Return(h backend.SourceHandle) {
	if _, ok := p.rented[h]; !ok {
		return
	}
	delete(p.rented, h)
	p.free = append(p.free, h)
}

// Close destroys every backend source the pool owns, rented or not.
func (p *Pool) Close() error {
	all := make([]backend.SourceHandle, 0, p.capacity)
	all = append(all, p.free...)
	for h := range p.rented {
		all = append(all, h)
	}
	return p.backend.DestroySources(all)
}
