// Package session implements the recording session state machine: the
// controller that owns the capture device, the chunk recorder that
// rotates the running byte stream into finite segments, and the level
// monitor that tracks input amplitude for UI feedback.
package session

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a recording session.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StatePaused    State = "PAUSED"
	StateStopped   State = "STOPPED"
	StateFailed    State = "FAILED"
)

// StateError reports an operation attempted in a state that does not
// permit it. The session is left unchanged.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Op, e.State)
}

// Snapshot is a point-in-time view of the session for observers.
type Snapshot struct {
	SessionID      string    `json:"session_id,omitempty"`
	State          State     `json:"state"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Level          float64   `json:"level"`
	LastError      string    `json:"last_error,omitempty"`
	ChunksEmitted  int       `json:"chunks_emitted"`
}
