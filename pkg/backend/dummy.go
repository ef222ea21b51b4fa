package backend

import (
	"sync"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/listener"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/pcm"
)

// Dummy is a Backend that does no real audio I/O: sources and buffers are
// tracked in memory only, played sources report Playing forever (until
// explicitly Stop/Paused) and never advance a playhead. It exists for tests
// and headless operation, mirroring the teacher's DummyAudioIODeviceAPI.
type Dummy struct {
	mu sync.Mutex

	nextSource SourceHandle
	nextBuffer BufferHandle

	states        map[SourceHandle]SourceState
	attached      map[SourceHandle]BufferHandle
	queued        map[SourceHandle][]BufferHandle
	playheads     map[SourceHandle]float64
	floatParams   map[SourceHandle]map[ParamFloat]float64
	buffers       map[BufferHandle]pcm.Format
	listenerPos   listener.Vector3
	listenerVel   listener.Vector3
	listenerOrien listener.Orientation

	// ExtensionSupport lets tests toggle which optional extensions this
	// dummy claims to support. Defaults to none.
	ExtensionSupport map[string]bool

	// OutputFormat is the format NativeFormat reports. Zero value defaults
	// to stereo 48kHz float.
	OutputFormat pcm.Format
}

// NewDummy creates a ready-to-use Dummy backend.
func NewDummy() *Dummy {
	return &Dummy{
		states:      make(map[SourceHandle]SourceState),
		attached:    make(map[SourceHandle]BufferHandle),
		queued:      make(map[SourceHandle][]BufferHandle),
		playheads:   make(map[SourceHandle]float64),
		floatParams: make(map[SourceHandle]map[ParamFloat]float64),
		buffers:     make(map[BufferHandle]pcm.Format),
	}
}

func (d *Dummy) OpenDevice(int) error  { return nil }
func (d *Dummy) CloseDevice() error    { return nil }
func (d *Dummy) ResetDevice() error    { return nil }
func (d *Dummy) EnumerateDevices() []DeviceDescriptor {
	return []DeviceDescriptor{{ID: 0, Name: "DummyDevice"}}
}

func (d *Dummy) CreateSources(n int) ([]SourceHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SourceHandle, n)
	for i := range out {
		d.nextSource++
		h := d.nextSource
		d.states[h] = SourceInitial
		out[i] = h
	}
	return out, nil
}

func (d *Dummy) DestroySources(handles []SourceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range handles {
		delete(d.states, h)
		delete(d.attached, h)
		delete(d.queued, h)
		delete(d.playheads, h)
		delete(d.floatParams, h)
	}
	return nil
}

func (d *Dummy) Play(h SourceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[h] = SourcePlaying
	return nil
}

func (d *Dummy) Pause(h SourceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[h] = SourcePaused
	return nil
}

func (d *Dummy) Stop(h SourceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[h] = SourceStopped
	d.playheads[h] = 0
	return nil
}

func (d *Dummy) Rewind(h SourceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playheads[h] = 0
	return nil
}

func (d *Dummy) SourceState(h SourceHandle) (SourceState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[h], nil
}

func (d *Dummy) PlayheadSeconds(h SourceHandle) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playheads[h], nil
}

func (d *Dummy) SeekSeconds(h SourceHandle, seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playheads[h] = seconds
	return nil
}

func (d *Dummy) SetFloat(h SourceHandle, param ParamFloat, value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.floatParams[h]
	if !ok {
		m = make(map[ParamFloat]float64)
		d.floatParams[h] = m
	}
	m[param] = value
	return nil
}

func (d *Dummy) SetInt(SourceHandle, ParamInt, int) error { return nil }

func (d *Dummy) SetBool(SourceHandle, ParamBool, bool) error { return nil }

func (d *Dummy) SetVector3(SourceHandle, ParamVector3, listener.Vector3) error { return nil }

func (d *Dummy) GetFloat(h SourceHandle, param ParamFloat) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.floatParams[h][param], nil
}

// NativeFormat returns d.OutputFormat, or stereo 48kHz float if unset.
func (d *Dummy) NativeFormat() pcm.Format {
	if d.OutputFormat.Channels == 0 || d.OutputFormat.SampleRate == 0 {
		return pcm.Format{Channels: 2, SampleRate: 48000, BitsPerSample: 32, Encoding: pcm.EncodingFloat}
	}
	return d.OutputFormat
}

func (d *Dummy) CreateBuffer() (BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextBuffer++
	return d.nextBuffer, nil
}

func (d *Dummy) DestroyBuffer(b BufferHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, b)
	return nil
}

func (d *Dummy) UploadPCM(b BufferHandle, format pcm.Format, _ []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffers[b] = format
	return nil
}

func (d *Dummy) AttachBuffer(h SourceHandle, b BufferHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached[h] = b
	return nil
}

func (d *Dummy) DetachBuffer(h SourceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.attached, h)
	return nil
}

func (d *Dummy) QueueBuffers(h SourceHandle, buffers []BufferHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued[h] = append(d.queued[h], buffers...)
	return nil
}

// UnqueueProcessedBuffers reports every currently-queued buffer as
// processed and removes it from the queue. The Dummy has no real playback
// clock, so it treats "queued" as immediately "processed" — good enough to
// exercise the streaming pump's unqueue/requeue bookkeeping in tests.
func (d *Dummy) UnqueueProcessedBuffers(h SourceHandle) ([]BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	processed := d.queued[h]
	d.queued[h] = nil
	return processed, nil
}

func (d *Dummy) QueuedBufferCount(h SourceHandle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queued[h]), nil
}

func (d *Dummy) SetListenerPosition(v listener.Vector3) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listenerPos = v
	return nil
}

func (d *Dummy) SetListenerVelocity(v listener.Vector3) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listenerVel = v
	return nil
}

func (d *Dummy) SetListenerOrientation(o listener.Orientation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listenerOrien = o
	return nil
}

func (d *Dummy) SupportsExtension(name string) bool {
	return d.ExtensionSupport[name]
}

func (d *Dummy) SetSpatializationEnabled(SourceHandle, bool) (bool, error) {
	return d.SupportsExtension("spatialization"), nil
}

func (d *Dummy) SetDirectChannelsEnabled(SourceHandle, bool) (bool, error) {
	return d.SupportsExtension("direct-channels"), nil
}

func (d *Dummy) SetRelativeToListener(SourceHandle, bool) (bool, error) {
	return d.SupportsExtension("relative-to-listener"), nil
}
