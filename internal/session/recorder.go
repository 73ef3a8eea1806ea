package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/chunk"
)

// ErrRecorderFinished is returned by Rotate after the final flush has
// run, so a rotation racing a stop is cancelled cleanly rather than
// producing a duplicate or partial chunk.
var ErrRecorderFinished = errors.New("chunk recorder already finished")

// ChunkRecorder buffers the device's byte stream and rotates it into
// sequence-numbered chunks. Segment durations exclude paused spans, so
// the sum of emitted durations tracks the session's recording time.
type ChunkRecorder struct {
	mu        sync.Mutex
	dev       audio.Device
	sessionID string

	seq            int
	finished       bool
	segmentStart   time.Time
	segmentElapsed time.Duration
	runningSince   time.Time
}

// NewChunkRecorder wraps an acquired device. Begin must be called
// before the first rotation.
func NewChunkRecorder(dev audio.Device, sessionID string) *ChunkRecorder {
	return &ChunkRecorder{dev: dev, sessionID: sessionID}
}

// Begin starts buffering the first segment.
func (r *ChunkRecorder) Begin(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return ErrRecorderFinished
	}
	if err := r.dev.StartBuffering(); err != nil {
		return fmt.Errorf("failed to start buffering: %w", err)
	}

	r.segmentStart = now
	r.segmentElapsed = 0
	r.runningSince = now
	return nil
}

// Rotate atomically flushes the current segment into a chunk and
// re-arms buffering for the next one. The device buffer swap is the
// only handoff point; bytes arriving mid-swap land in the new segment,
// with at most a few callback periods of device-level gap.
func (r *ChunkRecorder) Rotate(now time.Time) (*chunk.AudioChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil, ErrRecorderFinished
	}
	return r.cut(now)
}

// Suspend pauses buffering without flushing. The in-progress segment
// is retained and its duration accounting frozen.
func (r *ChunkRecorder) Suspend(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return ErrRecorderFinished
	}
	if err := r.dev.StopBuffering(); err != nil {
		return fmt.Errorf("failed to suspend buffering: %w", err)
	}

	if !r.runningSince.IsZero() {
		r.segmentElapsed += now.Sub(r.runningSince)
		r.runningSince = time.Time{}
	}
	return nil
}

// Resume continues buffering into the suspended segment.
func (r *ChunkRecorder) Resume(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return ErrRecorderFinished
	}
	if err := r.dev.StartBuffering(); err != nil {
		return fmt.Errorf("failed to resume buffering: %w", err)
	}

	r.runningSince = now
	return nil
}

// FinalFlush emits the in-progress segment, even when it is shorter
// than a rotation interval or empty, and marks the recorder finished.
// Subsequent rotations return ErrRecorderFinished.
func (r *ChunkRecorder) FinalFlush(now time.Time) (*chunk.AudioChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil, ErrRecorderFinished
	}
	r.finished = true

	ch, err := r.cut(now)
	r.dev.StopBuffering()
	return ch, err
}

// Abort discards the in-progress segment without emitting it. Used on
// mid-session device failure, where the tail bytes are untrusted.
func (r *ChunkRecorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = true
	r.dev.StopBuffering()
	r.dev.Flush()
}

// Sequence reports the next sequence number to be assigned.
func (r *ChunkRecorder) Sequence() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// cut flushes the device buffer into a chunk and resets segment
// accounting. Callers hold r.mu.
func (r *ChunkRecorder) cut(now time.Time) (*chunk.AudioChunk, error) {
	pcm := r.dev.Flush()

	duration := r.segmentElapsed
	if !r.runningSince.IsZero() {
		duration += now.Sub(r.runningSince)
	}

	payload, err := chunk.EncodeWAV(pcm, r.dev.SampleRate(), r.dev.Channels())
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk %d: %w", r.seq, err)
	}

	ch := chunk.New(r.sessionID, r.seq, payload, duration, r.segmentStart, r.dev.SampleRate(), r.dev.Channels())
	r.seq++

	r.segmentStart = now
	r.segmentElapsed = 0
	if !r.runningSince.IsZero() || !r.finished {
		r.runningSince = now
	}

	return &ch, nil
}
