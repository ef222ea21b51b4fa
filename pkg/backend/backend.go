// Package backend defines the capability surface the engine expects from a
// low-level spatialized audio driver (§6: "Backend adapter (consumed)"),
// generalized from an OpenAL-family API. A Dummy implementation is provided
// for tests and headless operation, grounded on the teacher's
// AudioIODeviceAPI/dummyapi pattern.
package backend

import (
	"errors"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// SourceHandle and BufferHandle are opaque backend-owned identifiers.
type SourceHandle int

type BufferHandle int

// SourceState mirrors the OpenAL-family source-state enum (§6).
type SourceState int

const (
	SourceInitial SourceState = iota
	SourcePlaying
	SourcePaused
	SourceStopped
)

var ErrNoDefaultDevice = errors.New("backend: no default device available")
var ErrNoDeviceWithID = errors.New("backend: no device with specified id")

// DeviceDescriptor identifies an enumerable playback device.
type DeviceDescriptor struct {
	ID   int
	Name string
}

// Backend is the minimum capability set §6 requires of the low-level audio
// driver. Implementations are expected to be safe to call only from the
// audio thread, matching every other piece of engine-owned state.
type Backend interface {
	// Device lifecycle.
	OpenDevice(deviceID int) error
	CloseDevice() error
	ResetDevice() error
	EnumerateDevices() []DeviceDescriptor

	// Sources.
	CreateSources(n int) ([]SourceHandle, error)
	DestroySources(handles []SourceHandle) error
	Play(h SourceHandle) error
	Pause(h SourceHandle) error
	Stop(h SourceHandle) error
	Rewind(h SourceHandle) error
	SourceState(h SourceHandle) (SourceState, error)
	PlayheadSeconds(h SourceHandle) (float64, error)
	SeekSeconds(h SourceHandle, seconds float64) error

	// Scalar/vector parameters.
	SetFloat(h SourceHandle, param ParamFloat, value float64) error
	SetInt(h SourceHandle, param ParamInt, value int) error
	SetBool(h SourceHandle, param ParamBool, value bool) error
	SetVector3(h SourceHandle, param ParamVector3, value listener.Vector3) error
	GetFloat(h SourceHandle, param ParamFloat) (float64, error)

	// NativeFormat returns the channel count and sample rate UploadPCM
	// expects its data in. Generators convert decoded PCM to this shape
	// before uploading when it differs from the source material's own
	// format (§6).
	NativeFormat() pcm.Format

	// Buffers.
	CreateBuffer() (BufferHandle, error)
	DestroyBuffer(b BufferHandle) error
	UploadPCM(b BufferHandle, format pcm.Format, data []float32) error
	AttachBuffer(h SourceHandle, b BufferHandle) error
	DetachBuffer(h SourceHandle) error
	QueueBuffers(h SourceHandle, buffers []BufferHandle) error
	UnqueueProcessedBuffers(h SourceHandle) ([]BufferHandle, error)
	QueuedBufferCount(h SourceHandle) (int, error)

	// Listener.
	SetListenerPosition(v listener.Vector3) error
	SetListenerVelocity(v listener.Vector3) error
	SetListenerOrientation(o listener.Orientation) error

	// Optional extensions, probed at runtime (§6). Implementations that
	// don't support an extension should return ok=false rather than an
	// error.
	SupportsExtension(name string) bool
	SetSpatializationEnabled(h SourceHandle, enabled bool) (ok bool, err error)
	SetDirectChannelsEnabled(h SourceHandle, enabled bool) (ok bool, err error)
	SetRelativeToListener(h SourceHandle, relative bool) (ok bool, err error)
}

// ParamFloat, ParamInt, ParamBool, ParamVector3 are parameter keys grouped
// by wire type, matching §6's "set-parameter (scalar float / int / bool /
// 3-vector)".
type ParamFloat int

const (
	ParamGain ParamFloat = iota
	ParamPitch
	ParamRolloffFactor
	ParamReferenceDistance
	ParamMaxDistance
)

// ParamInt has no members yet; it exists so SetInt's signature can carry an
// int-typed parameter once the backend needs one (e.g. HRTF quality tiers).
type ParamInt int

type ParamBool int

const (
	ParamLooping ParamBool = iota
)

type ParamVector3 int

const (
	ParamPosition ParamVector3 = iota
	ParamVelocity
)
