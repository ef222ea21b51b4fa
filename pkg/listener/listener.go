// Package listener holds the world-space listener transform applied once
// per tick (§3).
package listener

// Vector3 is a plain 3-component vector (position or velocity).
type Vector3 struct {
	X, Y, Z float64
}

// Orientation is a forward/up pair, matching the backend adapter's
// listener-orientation parameter (§6).
type Orientation struct {
	Forward Vector3
	Up      Vector3
}

// Listener is audio-thread-exclusive state; it is applied to the backend
// once per tick by the engine.
type Listener struct {
	Position    Vector3
	Velocity    Vector3
	Orientation Orientation
}

// New returns a Listener at the origin, facing -Z with +Y up, matching a
// conventional right-handed audio listener default.
func New() *Listener {
	return &Listener{
		Orientation: Orientation{
			Forward: Vector3{X: 0, Y: 0, Z: -1},
			Up:      Vector3{X: 0, Y: 1, Z: 0},
		},
	}
}

// SetTransform updates position and velocity.
func (l *Listener) SetTransform(position, velocity Vector3) {
	l.Position = position
	l.Velocity = velocity
}

// SetOrientation updates forward/up.
func (l *Listener) SetOrientation(orientation Orientation) {
	l.Orientation = orientation
}
