package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/notewell/miccap/internal/audio"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available capture devices",
	Long:  `List the capture devices the audio backend can see, in the names the capture.source setting accepts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := audio.NewBackend(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize audio backend: %w", err)
		}
		defer backend.Close()

		sources, err := backend.ListSources()
		if err != nil {
			return fmt.Errorf("failed to list capture devices: %w", err)
		}

		fmt.Printf("🎤 Capture Sources (%s, %s backend)\n\n", runtime.GOOS, backend.Type())
		if len(sources) == 0 {
			fmt.Println("  no capture devices found")
			return nil
		}
		for i, source := range sources {
			fmt.Printf("  %d. %s\n", i+1, source)
		}
		fmt.Printf("\nSet audio.source in the config to pick one; empty uses the system default.\n")
		return nil
	},
}
