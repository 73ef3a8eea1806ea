package session

import (
	"sync"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/config"
)

// fakeDevice implements audio.Device for tests: bytes are fed in
// explicitly and release calls are counted.
type fakeDevice struct {
	mu           sync.Mutex
	buffering    bool
	buf          []byte
	level        []float64
	releases     int
	onDisconnect func(error)
	sampleRate   int
	channels     int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{sampleRate: 16000, channels: 1}
}

// feed simulates the capture callback delivering PCM bytes.
func (d *fakeDevice) feed(pcm []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buffering {
		d.buf = append(d.buf, pcm...)
	}
}

func (d *fakeDevice) setLevelWindow(samples []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.level = samples
}

// disconnect simulates the device vanishing mid-session.
func (d *fakeDevice) disconnect(err error) {
	d.mu.Lock()
	handler := d.onDisconnect
	d.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (d *fakeDevice) releaseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

func (d *fakeDevice) StartBuffering() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffering = true
	return nil
}

func (d *fakeDevice) StopBuffering() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffering = false
	return nil
}

func (d *fakeDevice) Flush() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.buf
	d.buf = nil
	return out
}

func (d *fakeDevice) SampleAmplitude() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]float64, len(d.level))
	copy(out, d.level)
	return out
}

func (d *fakeDevice) OnDisconnect(handler func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisconnect = handler
}

func (d *fakeDevice) SampleRate() int { return d.sampleRate }
func (d *fakeDevice) Channels() int   { return d.channels }

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	d.buffering = false
	return nil
}

// fakeBackend hands out fakeDevices or a canned acquisition error.
type fakeBackend struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	devices    []*fakeDevice
}

func (b *fakeBackend) Acquire(cfg config.AudioConfig) (audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.acquired++
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}

	dev := newFakeDevice()
	if cfg.SampleRate > 0 {
		dev.sampleRate = cfg.SampleRate
	}
	if cfg.Channels > 0 {
		dev.channels = cfg.Channels
	}
	b.devices = append(b.devices, dev)
	return dev, nil
}

func (b *fakeBackend) ListSources() ([]string, error) {
	return []string{"fake microphone"}, nil
}

func (b *fakeBackend) Type() audio.BackendType {
	return audio.BackendType("fake")
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) lastDevice() *fakeDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.devices) == 0 {
		return nil
	}
	return b.devices[len(b.devices)-1]
}
