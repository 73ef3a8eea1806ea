// Package service wires the session controller to persistent storage
// and downstream consumers. It owns the chunk sink that writes WAV
// files and the per-session manifest, and it translates controller
// activity into metrics.
package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/chunk"
	"github.com/notewell/miccap/internal/config"
	"github.com/notewell/miccap/internal/metrics"
	"github.com/notewell/miccap/internal/session"
)

// ChunkConsumer receives finished chunks after they are persisted. The
// threshold is the configured transcript word minimum, passed through
// untouched for the downstream pipeline to apply.
type ChunkConsumer func(ch chunk.AudioChunk, minWordsThreshold int)

// Service is the capture service facade: one controller, one backend,
// one output directory.
type Service struct {
	cfg      *config.Config
	backend  audio.Backend
	metrics  *metrics.Metrics
	consumer ChunkConsumer

	controller *session.Controller

	mu             sync.Mutex
	manifest       *sessionManifest
	failedRecorded bool
}

// sessionManifest mirrors the session.yaml file written next to the
// chunk files. It is rewritten in full after every chunk.
type sessionManifest struct {
	SessionID         string          `yaml:"session_id"`
	StartedAt         time.Time       `yaml:"started_at"`
	SampleRate        int             `yaml:"sample_rate"`
	Channels          int             `yaml:"channels"`
	Format            string          `yaml:"format"`
	MinWordsThreshold int             `yaml:"min_words_threshold"`
	Chunks            []manifestEntry `yaml:"chunks"`
}

type manifestEntry struct {
	Sequence        int       `yaml:"sequence"`
	File            string    `yaml:"file"`
	DurationSeconds float64   `yaml:"duration_seconds"`
	SizeBytes       int       `yaml:"size_bytes"`
	StartedAt       time.Time `yaml:"started_at"`
}

// New builds a service around the given backend. The metrics and
// consumer arguments may be nil.
func New(cfg *config.Config, backend audio.Backend, m *metrics.Metrics, consumer ChunkConsumer) *Service {
	s := &Service{
		cfg:      cfg,
		backend:  backend,
		metrics:  m,
		consumer: consumer,
	}

	opts := session.Options{
		ChunkDuration: cfg.Capture.ChunkDuration,
		LevelInterval: cfg.Capture.LevelInterval,
	}
	s.controller = session.NewController(backend, cfg.Audio, opts, s.handleChunk)
	return s
}

// Start begins a new recording session and prepares its output
// directory.
func (s *Service) Start() error {
	if err := s.controller.Start(); err != nil {
		if s.metrics != nil {
			s.metrics.RecordSessionFailed(string(audio.KindOf(err)))
		}
		s.mu.Lock()
		s.failedRecorded = true
		s.mu.Unlock()
		return err
	}

	snap := s.controller.Snapshot()

	s.mu.Lock()
	s.manifest = &sessionManifest{
		SessionID:         snap.SessionID,
		StartedAt:         snap.StartedAt,
		SampleRate:        s.cfg.Audio.SampleRate,
		Channels:          s.cfg.Audio.Channels,
		Format:            s.cfg.Capture.Format,
		MinWordsThreshold: s.cfg.Transcript.MinWordsThreshold,
	}
	s.failedRecorded = false
	s.mu.Unlock()

	if err := os.MkdirAll(s.sessionDir(snap.SessionID), 0755); err != nil {
		slog.Warn("Failed to create session directory", "session_id", snap.SessionID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSessionStarted()
	}
	return nil
}

// Stop ends the session. The final chunk is persisted before Stop
// returns.
func (s *Service) Stop() error {
	if err := s.controller.Stop(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordSessionStopped()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest != nil {
		if err := s.writeManifestLocked(); err != nil {
			slog.Warn("Failed to write session manifest", "error", err)
		}
	}
	return nil
}

// Pause suspends the session without releasing the device.
func (s *Service) Pause() error {
	return s.controller.Pause()
}

// Resume continues a paused session.
func (s *Service) Resume() error {
	return s.controller.Resume()
}

// Status reports the current session snapshot and keeps the gauges in
// step with it.
func (s *Service) Status() session.Snapshot {
	snap := s.controller.Snapshot()

	if s.metrics != nil {
		s.metrics.SetInputLevel(snap.Level)
		if snap.State == session.StateFailed {
			s.mu.Lock()
			if !s.failedRecorded {
				s.failedRecorded = true
				s.metrics.RecordSessionFailed(snap.LastError)
			}
			s.mu.Unlock()
		}
	}
	return snap
}

// Sources lists the capture devices the backend can see.
func (s *Service) Sources() ([]string, error) {
	return s.backend.ListSources()
}

// Close stops any active session and releases the controller.
func (s *Service) Close() error {
	return s.controller.Close()
}

// handleChunk persists one chunk and forwards it. It runs on the
// controller's dispatcher goroutine, strictly in sequence order.
func (s *Service) handleChunk(ch chunk.AudioChunk) {
	dir := s.sessionDir(ch.SessionID)
	filename := fmt.Sprintf("chunk_%04d.wav", ch.Sequence)
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create session directory", "session_id", ch.SessionID, "error", err)
		return
	}
	if err := os.WriteFile(path, ch.Payload, 0644); err != nil {
		slog.Error("Failed to write chunk file", "path", path, "error", err)
		return
	}

	s.mu.Lock()
	if s.manifest != nil && s.manifest.SessionID == ch.SessionID {
		s.manifest.Chunks = append(s.manifest.Chunks, manifestEntry{
			Sequence:        ch.Sequence,
			File:            filename,
			DurationSeconds: ch.Duration.Seconds(),
			SizeBytes:       ch.Size(),
			StartedAt:       ch.StartedAt,
		})
		if err := s.writeManifestLocked(); err != nil {
			slog.Warn("Failed to write session manifest", "session_id", ch.SessionID, "error", err)
		}
	}
	threshold := s.cfg.Transcript.MinWordsThreshold
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordChunkEmitted(ch.Duration.Seconds(), ch.Size())
	}

	slog.Debug("Chunk persisted", "session_id", ch.SessionID, "sequence", ch.Sequence, "path", path)

	if s.consumer != nil {
		s.consumer(ch, threshold)
	}
}

func (s *Service) sessionDir(sessionID string) string {
	return filepath.Join(s.cfg.Capture.OutputDir, sessionID)
}

// writeManifestLocked rewrites session.yaml for the current manifest.
// Callers hold s.mu.
func (s *Service) writeManifestLocked() error {
	data, err := yaml.Marshal(s.manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal session manifest: %w", err)
	}

	path := filepath.Join(s.sessionDir(s.manifest.SessionID), "session.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session manifest: %w", err)
	}
	return nil
}
