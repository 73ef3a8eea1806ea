package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/chunk"
	"github.com/notewell/miccap/internal/config"
)

// Options tune the controller's periodic activities. Zero values take
// the defaults below; tests shrink the intervals.
type Options struct {
	ChunkDuration time.Duration // rotation cadence, default 20s
	LevelInterval time.Duration // level sampling cadence, default 50ms
	TickInterval  time.Duration // duration tick, default 1s
}

func (o Options) withDefaults() Options {
	if o.ChunkDuration <= 0 {
		o.ChunkDuration = 20 * time.Second
	}
	if o.LevelInterval <= 0 {
		o.LevelInterval = 50 * time.Millisecond
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	return o
}

// ChunkHandler receives finished chunks in strictly increasing
// sequence order. It runs on the controller's dispatcher goroutine and
// must not call back into the controller.
type ChunkHandler func(chunk.AudioChunk)

// Controller owns the session lifecycle: it acquires and releases the
// capture device, runs the duration tick, the rotation timer and the
// level sampling loop, and emits chunks to the registered handler.
//
// One mutex serializes every state transition and timer callback.
// Timer goroutines are keyed to an epoch; any transition out of
// Recording bumps the epoch and closes their quit channel, and each
// callback re-checks epoch and state under the mutex before acting, so
// a released device is never touched by a stale timer.
type Controller struct {
	opts     Options
	backend  audio.Backend
	audioCfg config.AudioConfig
	onChunk  ChunkHandler

	mu            sync.Mutex
	state         State
	sessionID     string
	startedAt     time.Time
	elapsed       int
	lastErr       error
	chunksEmitted int

	device   audio.Device
	recorder *ChunkRecorder
	monitor  *LevelMonitor

	epoch uint64
	quit  chan struct{}

	queue      *deliveryQueue
	dispatched sync.WaitGroup
}

// NewController builds an idle controller and starts its chunk
// dispatcher. Close releases the dispatcher.
func NewController(backend audio.Backend, audioCfg config.AudioConfig, opts Options, onChunk ChunkHandler) *Controller {
	c := &Controller{
		opts:     opts.withDefaults(),
		backend:  backend,
		audioCfg: audioCfg,
		onChunk:  onChunk,
		state:    StateIdle,
		queue:    newDeliveryQueue(),
	}

	c.dispatched.Add(1)
	go c.dispatch()
	return c
}

// Start acquires the capture device and begins a fresh session. Valid
// from Idle, Stopped or Failed; counters and sequence numbers reset.
// Acquisition failures latch the Failed state and are returned as
// *audio.CaptureError with no other side effects.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle, StateStopped, StateFailed:
	default:
		return &StateError{Op: "start", State: c.state}
	}

	dev, err := c.backend.Acquire(c.audioCfg)
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		slog.Error("Capture acquisition failed", "kind", audio.KindOf(err), "error", err)
		return err
	}

	now := time.Now()
	c.device = dev
	c.sessionID = uuid.NewString()
	c.startedAt = now
	c.elapsed = 0
	c.chunksEmitted = 0
	c.lastErr = nil
	c.recorder = NewChunkRecorder(dev, c.sessionID)
	c.monitor = NewLevelMonitor(dev)

	if err := c.recorder.Begin(now); err != nil {
		dev.Release()
		c.device = nil
		c.state = StateFailed
		c.lastErr = err
		return err
	}

	dev.OnDisconnect(c.fail)

	c.state = StateRecording
	c.startTimersLocked()

	slog.Info("Recording session started", "session_id", c.sessionID, "chunk_duration", c.opts.ChunkDuration)
	return nil
}

// Pause suspends the timers and buffering without releasing the
// device. Remaining timer intervals are not preserved; Resume re-arms
// them fresh.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return &StateError{Op: "pause", State: c.state}
	}

	c.stopTimersLocked()
	if err := c.recorder.Suspend(time.Now()); err != nil {
		slog.Warn("Failed to suspend recorder", "error", err)
	}
	c.monitor.Reset()
	c.state = StatePaused

	slog.Info("Recording session paused", "session_id", c.sessionID, "elapsed", c.elapsed)
	return nil
}

// Resume restarts buffering, the duration tick, the rotation timer and
// the level loop.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return &StateError{Op: "resume", State: c.state}
	}

	if err := c.recorder.Resume(time.Now()); err != nil {
		slog.Warn("Failed to resume recorder", "error", err)
	}
	c.state = StateRecording
	c.startTimersLocked()

	slog.Info("Recording session resumed", "session_id", c.sessionID)
	return nil
}

// Stop flushes the in-progress chunk (even if the rotation interval
// was not reached), stops all timers and releases the device. The
// final chunk is handed to the consumer before Stop returns.
func (c *Controller) Stop() error {
	c.mu.Lock()

	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return &StateError{Op: "stop", State: c.state}
	}

	c.stopTimersLocked()

	final, err := c.recorder.FinalFlush(time.Now())
	if err != nil {
		slog.Error("Final chunk flush failed", "session_id", c.sessionID, "error", err)
	} else if final != nil {
		c.chunksEmitted++
		c.queue.push(*final)
	}

	c.releaseDeviceLocked()
	c.monitor.Reset()
	c.state = StateStopped

	sessionID := c.sessionID
	elapsed := c.elapsed
	c.mu.Unlock()

	// Deliver everything already queued before the caller observes the
	// stopped state.
	c.queue.drain()

	slog.Info("Recording session stopped", "session_id", sessionID, "elapsed", elapsed)
	return nil
}

// Snapshot returns the observable session fields for UI binding.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:      c.sessionID,
		State:          c.state,
		StartedAt:      c.startedAt,
		ElapsedSeconds: c.elapsed,
		ChunksEmitted:  c.chunksEmitted,
	}
	if c.monitor != nil && c.state == StateRecording {
		snap.Level = c.monitor.Level()
	}
	if c.lastErr != nil {
		snap.LastError = string(audio.KindOf(c.lastErr))
	}
	return snap
}

// Close stops any active session and shuts down the dispatcher. The
// controller cannot be reused afterwards.
func (c *Controller) Close() error {
	if err := c.Stop(); err != nil {
		var stateErr *StateError
		if !errors.As(err, &stateErr) {
			return err
		}
	}

	c.queue.close()
	c.dispatched.Wait()
	return nil
}

// fail handles mid-session device loss: identical cleanup to Stop,
// but the tail segment is discarded and the Failed state latched.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording && c.state != StatePaused {
		return
	}

	c.stopTimersLocked()
	c.recorder.Abort()
	c.releaseDeviceLocked()
	c.monitor.Reset()
	c.state = StateFailed
	c.lastErr = err

	slog.Error("Recording session failed", "session_id", c.sessionID, "kind", audio.KindOf(err), "error", err)
}

func (c *Controller) releaseDeviceLocked() {
	if c.device == nil {
		return
	}
	if err := c.device.Release(); err != nil {
		slog.Warn("Device release reported error", "error", err)
	}
	c.device = nil
}

// startTimersLocked arms the three periodic activities for the current
// epoch. Callers hold c.mu.
func (c *Controller) startTimersLocked() {
	c.epoch++
	c.quit = make(chan struct{})

	go c.runTicker(c.epoch, c.quit, c.opts.TickInterval, c.onDurationTick)
	go c.runTicker(c.epoch, c.quit, c.opts.ChunkDuration, c.onRotation)
	go c.runTicker(c.epoch, c.quit, c.opts.LevelInterval, c.onLevelSample)
}

// stopTimersLocked invalidates all armed timers. Callers hold c.mu.
func (c *Controller) stopTimersLocked() {
	c.epoch++
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
}

// runTicker drives one periodic activity until its epoch is
// invalidated. The callback re-checks state under the mutex.
func (c *Controller) runTicker(epoch uint64, quit chan struct{}, interval time.Duration, fn func(uint64) bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if !fn(epoch) {
				return
			}
		}
	}
}

func (c *Controller) onDurationTick(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.state != StateRecording {
		return false
	}
	c.elapsed++
	return true
}

func (c *Controller) onRotation(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.state != StateRecording {
		return false
	}

	ch, err := c.recorder.Rotate(time.Now())
	if err != nil {
		slog.Error("Chunk rotation failed", "session_id", c.sessionID, "error", err)
		return true
	}

	c.chunksEmitted++
	c.queue.push(*ch)
	slog.Debug("Chunk rotated", "session_id", c.sessionID, "sequence", ch.Sequence, "bytes", ch.Size())
	return true
}

func (c *Controller) onLevelSample(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.state != StateRecording {
		return false
	}
	c.monitor.Sample()
	return true
}

// dispatch delivers queued chunks to the handler one at a time,
// preserving sequence order without blocking rotation.
func (c *Controller) dispatch() {
	defer c.dispatched.Done()

	for {
		ch, ok := c.queue.pop()
		if !ok {
			return
		}
		if c.onChunk != nil {
			c.onChunk(ch)
		}
		c.queue.markDone()
	}
}
