package audio

import (
	"strings"

	"github.com/notewell/miccap/internal/config"
)

// BackendType identifies a capture backend implementation.
type BackendType string

const (
	BackendTypeMalgo BackendType = "malgo"
	BackendTypeAuto  BackendType = "auto"
)

// Device is an exclusively owned capture handle. It is created by
// Backend.Acquire and must be released exactly once; Release is safe
// to call more than once but only the first call tears anything down.
type Device interface {
	// StartBuffering begins accumulating encoded capture bytes.
	StartBuffering() error
	// StopBuffering suspends accumulation without discarding buffered
	// bytes or releasing the device.
	StopBuffering() error
	// Flush atomically drains the accumulated bytes and re-arms
	// buffering for the next segment.
	Flush() []byte
	// SampleAmplitude returns the most recent window of normalized
	// samples in [-1, 1] for level analysis.
	SampleAmplitude() []float64
	// OnDisconnect registers a handler invoked once if the underlying
	// device stops outside of an explicit Release.
	OnDisconnect(func(error))
	// SampleRate reports the capture sample rate in Hz.
	SampleRate() int
	// Channels reports the capture channel count.
	Channels() int
	// Release tears down the capture graph. Idempotent.
	Release() error
}

// Backend acquires capture devices and enumerates sources.
type Backend interface {
	// Acquire opens exclusive access to the configured capture source.
	// Failures are reported as *CaptureError.
	Acquire(cfg config.AudioConfig) (Device, error)

	// ListSources lists the names of available capture devices.
	ListSources() ([]string, error)

	// Type reports the backend type.
	Type() BackendType

	// Close releases backend-wide resources. Devices must be released
	// before the backend is closed.
	Close() error
}

// NewBackend selects a backend based on configuration. Only the malgo
// backend is available; "auto" resolves to it.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "", "auto", "malgo":
		return NewMalgoBackend()
	default:
		// Validation rejects anything else before we get here.
		return NewMalgoBackend()
	}
}
