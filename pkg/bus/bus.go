// Package bus implements the hierarchical mix-bus tree described in §3 and
// §4.2 of the specification: local and effective gain/pitch/priority-bias/
// mute, version counters, and slash-delimited path resolution.
//
// A Tree is audio-thread-exclusive — every mutating method must only ever
// be called from the goroutine draining the engine's marshaller. Reads may
// race per §4.4's "last committed value" rule.
package bus

import (
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// MasterName is the name of the tree's permanent root bus.
const MasterName = "Master"

// Local holds the directly-set, pre-inheritance values of a Bus.
type Local struct {
	Gain         float64
	Pitch        float64
	PriorityBias int
	Muted        bool
}

// Effective holds a Bus's values after composing with every ancestor.
type Effective struct {
	Gain         float64
	Pitch        float64
	PriorityBias int
	Muted        bool
}

// Bus is one node of the mix tree.
type Bus struct {
	ID     uuid.UUID
	Name   string
	parent *Bus

	tree *Tree

	local     Local
	effective Effective
	version   uint64

	children []*Bus
}

// Version returns the bus's current version counter. It is bumped whenever
// this bus's local values change, or an ancestor's change forces a
// recompute (§3).
func (b *Bus) Version() uint64 {
	return atomic.LoadUint64(&b.version)
}

func (b *Bus) bumpVersion() {
	atomic.AddUint64(&b.version, 1)
}

// Effective returns the bus's current effective values.
func (b *Bus) Effective() Effective {
	return b.effective
}

// Local returns the bus's current local values.
func (b *Bus) Local() Local {
	return b.local
}

// Parent returns the bus's parent, or nil for the root.
func (b *Bus) Parent() *Bus {
	return b.parent
}

// Path returns the slash-delimited path from the root to this bus,
// excluding the root's own name (so Master itself has path "").
func (b *Bus) Path() string {
	if b.parent == nil {
		return ""
	}
	parentPath := b.parent.Path()
	if parentPath == "" {
		return b.Name
	}
	return parentPath + "/" + b.Name
}

// recompute applies the bus math from §3: effective = local composed with
// the parent's effective, then is propagated depth-first to every child
// (parents before children), bumping versions as it goes.
func (b *Bus) recompute() {
	var parentEff Effective
	if b.parent != nil {
		parentEff = b.parent.effective
	} else {
		parentEff = Effective{Gain: 1, Pitch: 1, PriorityBias: 0, Muted: false}
	}

	muted := b.local.Muted || parentEff.Muted
	gain := b.local.Gain * parentEff.Gain
	if muted {
		gain = 0
	}

	b.effective = Effective{
		Gain:         gain,
		Pitch:        b.local.Pitch * parentEff.Pitch,
		PriorityBias: b.local.PriorityBias + parentEff.PriorityBias,
		Muted:        muted,
	}
	b.bumpVersion()

	for _, child := range b.children {
		child.recompute()
	}
}

// Tree is the whole mix-bus hierarchy, anchored at a permanent Master root.
type Tree struct {
	master *Bus
}

// New creates a Tree with its Master root already present, per §3 ("the
// root bus... always exists for the engine's lifetime").
func New() *Tree {
	t := &Tree{}
	master := &Bus{
		ID:   uuid.New(),
		Name: MasterName,
		tree: t,
		local: Local{
			Gain:  1,
			Pitch: 1,
		},
	}
	master.recompute()
	t.master = master
	return t
}

// Master returns the tree's permanent root bus.
func (t *Tree) Master() *Bus {
	return t.master
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			// Double slashes are ignored (§4.2).
			continue
		}
		segments = append(segments, s)
	}
	return segments
}

func (b *Bus) childNamed(name string) *Bus {
	for _, c := range b.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Resolve looks up a bus by slash-delimited path without creating anything.
// An empty path (after leading-slash stripping) resolves to Master. Returns
// nil if any segment is missing.
func (t *Tree) Resolve(path string) *Bus {
	segments := splitPath(path)
	cur := t.master
	for _, seg := range segments {
		cur = cur.childNamed(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ResolveOrCreate resolves path, creating any missing segments along the
// way as fresh children with default local values (§4.2).
func (t *Tree) ResolveOrCreate(path string) *Bus {
	segments := splitPath(path)
	cur := t.master
	for _, seg := range segments {
		next := cur.childNamed(seg)
		if next == nil {
			next = &Bus{
				ID:     uuid.New(),
				Name:   seg,
				parent: cur,
				tree:   t,
				local: Local{
					Gain:  1,
					Pitch: 1,
				},
			}
			next.recompute()
			cur.children = append(cur.children, next)
		}
		cur = next
	}
	return cur
}

// Delete removes the child bus named by path (sibling-unique lookup per
// §3). Returns false if no such bus exists. The root itself can never be
// deleted.
func (t *Tree) Delete(path string) bool {
	segments := splitPath(path)
	if len(segments) == 0 {
		return false
	}
	parentSegments := segments[:len(segments)-1]
	name := segments[len(segments)-1]

	parent := t.master
	for _, seg := range parentSegments {
		parent = parent.childNamed(seg)
		if parent == nil {
			return false
		}
	}

	for i, c := range parent.children {
		if c.Name == name {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return true
		}
	}
	return false
}

// SetGain sets the bus's local gain (clamped to >= 0) and recomputes the
// bus and every descendant.
func (b *Bus) SetGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	b.local.Gain = gain
	b.recompute()
}

// SetPitch sets the bus's local pitch (clamped to > 0, floored at a small
// epsilon rather than 0 since pitch is a multiplicative ratio) and
// recomputes the bus and every descendant.
func (b *Bus) SetPitch(pitch float64) {
	const minPitch = 1e-6
	if pitch < minPitch {
		pitch = minPitch
	}
	b.local.Pitch = pitch
	b.recompute()
}

// SetPriorityBias sets the bus's local priority bias and recomputes the bus
// and every descendant.
func (b *Bus) SetPriorityBias(bias int) {
	b.local.PriorityBias = bias
	b.recompute()
}

// SetMuted sets the bus's local mute flag and recomputes the bus and every
// descendant.
func (b *Bus) SetMuted(muted bool) {
	b.local.Muted = muted
	b.recompute()
}
