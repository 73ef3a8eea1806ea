package session

import (
	"math"
	"sync/atomic"

	"github.com/notewell/miccap/internal/audio"
)

// LevelMonitor computes a normalized input level from the device's
// recent sample window. It is driven by the controller's sampling
// loop and is the only writer of the level value.
type LevelMonitor struct {
	dev   audio.Device
	level atomic.Uint64 // float64 bits
}

func NewLevelMonitor(dev audio.Device) *LevelMonitor {
	return &LevelMonitor{dev: dev}
}

// Sample reads the current amplitude window and publishes its RMS,
// clamped to [0, 1].
func (m *LevelMonitor) Sample() float64 {
	samples := m.dev.SampleAmplitude()
	if len(samples) == 0 {
		m.store(0)
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms > 1 {
		rms = 1
	}

	m.store(rms)
	return rms
}

// Level returns the last published value without touching the device.
func (m *LevelMonitor) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Reset clears the published level, used when the session leaves the
// recording state.
func (m *LevelMonitor) Reset() {
	m.store(0)
}

func (m *LevelMonitor) store(v float64) {
	m.level.Store(math.Float64bits(v))
}
