package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/chunk"
	"github.com/notewell/miccap/internal/service"
	"github.com/notewell/miccap/internal/session"
)

var recordDuration int

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the capture device until interrupted",
	Long: `Record audio from the configured capture device. The running stream is
rotated into WAV chunks at the configured chunk duration; each chunk is
written to the output directory as soon as it is cut.

Recording stops on Ctrl+C or after --duration seconds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Capture.OutputDir = output
		}

		backend, err := audio.NewBackend(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize audio backend: %w", err)
		}
		defer backend.Close()

		onChunk := func(ch chunk.AudioChunk, _ int) {
			fmt.Printf("\rchunk %d written (%.1fs, %d bytes)\n", ch.Sequence, ch.Duration.Seconds(), ch.Size())
		}

		svc := service.New(cfg, backend, nil, onChunk)
		defer svc.Close()

		if err := svc.Start(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		status := svc.Status()
		slog.Info("Recording started",
			"session_id", status.SessionID,
			"output_dir", cfg.Capture.OutputDir,
			"chunk_duration", cfg.Capture.ChunkDuration)
		fmt.Println("Recording... Press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		var timeout <-chan time.Time
		if recordDuration > 0 {
			timeout = time.After(time.Duration(recordDuration) * time.Second)
		}

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

	loop:
		for {
			select {
			case <-sigChan:
				fmt.Println()
				break loop
			case <-timeout:
				fmt.Println()
				slog.Info("Requested duration reached")
				break loop
			case <-ticker.C:
				snap := svc.Status()
				if snap.State == session.StateFailed {
					return fmt.Errorf("recording failed: %s", snap.LastError)
				}
				fmt.Printf("\r%s  %4ds  level %.2f  chunks %d ",
					snap.State, snap.ElapsedSeconds, snap.Level, snap.ChunksEmitted)
			}
		}

		slog.Info("Stopping recording...")
		if err := svc.Stop(); err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		final := svc.Status()
		fmt.Printf("Session %s: %d chunks, %ds recorded\n",
			final.SessionID, final.ChunksEmitted, final.ElapsedSeconds)
		return nil
	},
}

func init() {
	recordCmd.Flags().IntVarP(&recordDuration, "duration", "d", 0, "stop after this many seconds (0 = until interrupted)")
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
}
