package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/metrics"
	"github.com/notewell/miccap/internal/server"
	"github.com/notewell/miccap/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control server",
	Long: `Run the capture control server. Recording is driven over HTTP:
POST /start, /stop, /pause and /resume control the session, GET /status
returns the current snapshot, GET /sources lists capture devices and
GET /metrics exposes Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Server.Port = port
		}

		backend, err := audio.NewBackend(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize audio backend: %w", err)
		}
		defer backend.Close()

		svc := service.New(cfg, backend, metrics.New(), nil)
		defer svc.Close()

		srv := server.New(cfg, svc)

		slog.Info("Capture control server starting", "port", cfg.Server.Port, "output_dir", cfg.Capture.OutputDir)
		if err := srv.ListenAndServe(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the control server (overrides config)")
}
