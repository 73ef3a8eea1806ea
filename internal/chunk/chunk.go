// Package chunk defines the finite audio segments emitted by the
// capture pipeline and their on-disk encoding.
package chunk

import (
	"time"

	"github.com/google/uuid"
)

// AudioChunk is an immutable segment of captured audio. Sequence
// numbers start at 0 and increase strictly within one session; they
// reset when a new session starts, which lets consumers detect and
// discard late deliveries from a previous session.
type AudioChunk struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Sequence  int           `json:"sequence"`
	Payload   []byte        `json:"-"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`

	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Format     string `json:"format"` // "wav"
}

// New builds a chunk from an encoded payload.
func New(sessionID string, sequence int, payload []byte, duration time.Duration, startedAt time.Time, sampleRate, channels int) AudioChunk {
	return AudioChunk{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Sequence:   sequence,
		Payload:    payload,
		Duration:   duration,
		StartedAt:  startedAt,
		SampleRate: sampleRate,
		Channels:   channels,
		Format:     "wav",
	}
}

// Size returns the payload size in bytes.
func (c AudioChunk) Size() int {
	return len(c.Payload)
}
