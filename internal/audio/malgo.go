package audio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/notewell/miccap/internal/config"
)

// levelWindow is the number of recent samples retained for amplitude
// analysis, roughly 128ms at 16kHz mono.
const levelWindow = 2048

// MalgoBackend implements Backend on top of miniaudio.
type MalgoBackend struct {
	ctx *malgo.AllocatedContext
}

// NewMalgoBackend initializes the miniaudio context.
func NewMalgoBackend() (*MalgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, NewCaptureError(classifyMalgoError(err), fmt.Errorf("failed to initialize audio context: %w", err))
	}
	return &MalgoBackend{ctx: ctx}, nil
}

func (b *MalgoBackend) Type() BackendType {
	return BackendTypeMalgo
}

// ListSources enumerates capture device names.
func (b *MalgoBackend) ListSources() ([]string, error) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Acquire opens the configured capture device and starts the stream.
// The returned device accumulates nothing until StartBuffering.
func (b *MalgoBackend) Acquire(cfg config.AudioConfig) (Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if cfg.Source != "" {
		id, err := b.findDeviceID(cfg.Source)
		if err != nil {
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	d := &malgoDevice{
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: d.onData,
		Stop: d.onStop,
	}

	device, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, NewCaptureError(classifyMalgoError(err), fmt.Errorf("failed to open capture device: %w", err))
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, NewCaptureError(classifyMalgoError(err), fmt.Errorf("failed to start capture device: %w", err))
	}

	slog.Info("Capture device acquired", "source", cfg.Source, "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	return d, nil
}

// Close frees the miniaudio context. Acquired devices must be released
// before closing the backend.
func (b *MalgoBackend) Close() error {
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

func (b *MalgoBackend) findDeviceID(name string) (malgo.DeviceID, error) {
	var zero malgo.DeviceID

	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return zero, NewCaptureError(KindUnknown, fmt.Errorf("failed to enumerate capture devices: %w", err))
	}

	for _, info := range infos {
		if strings.EqualFold(strings.TrimSpace(info.Name()), strings.TrimSpace(name)) {
			return info.ID, nil
		}
	}

	return zero, NewCaptureError(KindDeviceUnavailable, fmt.Errorf("capture device not found: %s", name))
}

// malgoDevice is the exclusive capture handle produced by Acquire.
type malgoDevice struct {
	device     *malgo.Device
	sampleRate int
	channels   int

	mu           sync.Mutex
	buffering    bool
	buf          []byte
	level        []float64
	onDisconnect func(error)
	released     bool
}

// onData runs on the miniaudio capture thread.
func (d *malgoDevice) onData(_, inputSamples []byte, frameCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buffering {
		d.buf = append(d.buf, inputSamples...)
	}

	// Always refresh the level window so the monitor sees live signal
	// even between segments.
	for i := 0; i+1 < len(inputSamples); i += 2 {
		s := int16(inputSamples[i]) | int16(inputSamples[i+1])<<8
		d.level = append(d.level, float64(s)/32768.0)
	}
	if len(d.level) > levelWindow {
		d.level = d.level[len(d.level)-levelWindow:]
	}
}

// onStop fires when miniaudio stops the device, including on unplug.
func (d *malgoDevice) onStop() {
	d.mu.Lock()
	released := d.released
	handler := d.onDisconnect
	d.mu.Unlock()

	if released || handler == nil {
		return
	}
	handler(NewCaptureError(KindDeviceDisconnected, fmt.Errorf("capture device stopped unexpectedly")))
}

func (d *malgoDevice) StartBuffering() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return NewCaptureError(KindDeviceDisconnected, fmt.Errorf("device already released"))
	}
	d.buffering = true
	return nil
}

func (d *malgoDevice) StopBuffering() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buffering = false
	return nil
}

// Flush swaps out the accumulated buffer under the data callback's
// lock. Bytes arriving during the swap land in the next segment; the
// handoff itself loses nothing.
func (d *malgoDevice) Flush() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.buf
	d.buf = make([]byte, 0, cap(out))
	return out
}

func (d *malgoDevice) SampleAmplitude() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]float64, len(d.level))
	copy(out, d.level)
	return out
}

func (d *malgoDevice) OnDisconnect(handler func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisconnect = handler
}

func (d *malgoDevice) SampleRate() int {
	return d.sampleRate
}

func (d *malgoDevice) Channels() int {
	return d.channels
}

// Release stops and uninitializes the capture device. Only the first
// call has any effect.
func (d *malgoDevice) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil
	}
	d.released = true
	d.buffering = false
	device := d.device
	d.mu.Unlock()

	if device != nil {
		device.Uninit()
	}

	slog.Debug("Capture device released")
	return nil
}

// classifyMalgoError maps miniaudio failures onto the capture error
// taxonomy. miniaudio reports errors as strings, so this is a
// best-effort match; anything unrecognized is KindUnknown.
func classifyMalgoError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission"):
		return KindPermissionDenied
	case strings.Contains(msg, "no device"), strings.Contains(msg, "device not found"),
		strings.Contains(msg, "no backend"), strings.Contains(msg, "busy"),
		strings.Contains(msg, "device unavailable"):
		return KindDeviceUnavailable
	default:
		return KindUnknown
	}
}
