package session

import (
	"math"
	"testing"
)

func TestLevelMonitor_SampleComputesRMS(t *testing.T) {
	dev := newFakeDevice()
	dev.setLevelWindow([]float64{0.6, 0.8})
	m := NewLevelMonitor(dev)

	got := m.Sample()
	want := math.Sqrt((0.6*0.6 + 0.8*0.8) / 2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Sample() = %v, want %v", got, want)
	}
	if m.Level() != got {
		t.Errorf("Level() = %v, want last sampled %v", m.Level(), got)
	}
}

func TestLevelMonitor_EmptyWindowIsSilence(t *testing.T) {
	dev := newFakeDevice()
	m := NewLevelMonitor(dev)

	if got := m.Sample(); got != 0 {
		t.Errorf("Sample() on empty window = %v, want 0", got)
	}
}

func TestLevelMonitor_ClampsToOne(t *testing.T) {
	dev := newFakeDevice()
	dev.setLevelWindow([]float64{2.5, 3.0})
	m := NewLevelMonitor(dev)

	if got := m.Sample(); got != 1 {
		t.Errorf("Sample() = %v, want clamp to 1", got)
	}
}

func TestLevelMonitor_Reset(t *testing.T) {
	dev := newFakeDevice()
	dev.setLevelWindow([]float64{0.5})
	m := NewLevelMonitor(dev)

	m.Sample()
	m.Reset()
	if got := m.Level(); got != 0 {
		t.Errorf("Level() after reset = %v, want 0", got)
	}
}

func TestLevelMonitor_LevelDoesNotTouchDevice(t *testing.T) {
	dev := newFakeDevice()
	dev.setLevelWindow([]float64{0.5})
	m := NewLevelMonitor(dev)

	m.Sample()
	dev.setLevelWindow([]float64{0.9})

	want := 0.5
	if got := m.Level(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Level() = %v, want previously sampled %v", got, want)
	}
}
