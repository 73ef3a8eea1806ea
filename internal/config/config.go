package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the miccap service.
type Config struct {
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Capture    CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

type AudioConfig struct {
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
	Backend    string `mapstructure:"backend" yaml:"backend"` // "malgo", "auto"
	Source     string `mapstructure:"source" yaml:"source"`   // device name, empty = system default
}

type CaptureConfig struct {
	// ChunkDuration controls how often the running recording is rotated
	// into a finished chunk.
	ChunkDuration time.Duration `mapstructure:"chunk_duration" yaml:"chunk_duration"`
	// LevelInterval is the cadence of the input-level sampling loop.
	LevelInterval time.Duration `mapstructure:"level_interval" yaml:"level_interval"`
	OutputDir     string        `mapstructure:"output_directory" yaml:"output_directory"`
	Format        string        `mapstructure:"format" yaml:"format"` // "wav"
}

// TranscriptConfig is passed through to the transcript consumer; the
// capture core recognizes but does not act on these settings.
type TranscriptConfig struct {
	MinWordsThreshold int `mapstructure:"min_words_threshold" yaml:"min_words_threshold"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate: 16000,
		Channels:   1,
		Backend:    "auto",
	},
	Capture: CaptureConfig{
		ChunkDuration: 20 * time.Second,
		LevelInterval: 50 * time.Millisecond,
		OutputDir:     filepath.Join(os.Getenv("HOME"), "Audio", "Miccap"),
		Format:        "wav",
	},
	Server: ServerConfig{
		Port: "8090",
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// Load reads configuration from the given file, falling back to
// defaults for unset fields. An empty path loads pure defaults.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("MICCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Capture.OutputDir = expandPath(cfg.Capture.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.sample_rate", defaultConfig.Audio.SampleRate)
	v.SetDefault("audio.channels", defaultConfig.Audio.Channels)
	v.SetDefault("audio.backend", defaultConfig.Audio.Backend)
	v.SetDefault("capture.chunk_duration", defaultConfig.Capture.ChunkDuration)
	v.SetDefault("capture.level_interval", defaultConfig.Capture.LevelInterval)
	v.SetDefault("capture.output_directory", defaultConfig.Capture.OutputDir)
	v.SetDefault("capture.format", defaultConfig.Capture.Format)
	v.SetDefault("server.port", defaultConfig.Server.Port)
}

// Validate checks the configuration for values the capture pipeline
// cannot operate with.
func (c *Config) Validate() error {
	switch c.Audio.SampleRate {
	case 8000, 16000, 22050, 44100, 48000:
	default:
		return fmt.Errorf("audio.sample_rate must be one of 8000, 16000, 22050, 44100, 48000, got: %d", c.Audio.SampleRate)
	}

	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", c.Audio.Channels)
	}

	switch strings.ToLower(c.Audio.Backend) {
	case "", "auto", "malgo":
	default:
		return fmt.Errorf("audio.backend must be 'malgo' or 'auto', got: %s", c.Audio.Backend)
	}

	if c.Capture.ChunkDuration <= 0 {
		return fmt.Errorf("capture.chunk_duration must be > 0, got: %s", c.Capture.ChunkDuration)
	}

	if c.Capture.LevelInterval <= 0 {
		return fmt.Errorf("capture.level_interval must be > 0, got: %s", c.Capture.LevelInterval)
	}

	if c.Capture.Format != "wav" {
		return fmt.Errorf("capture.format must be 'wav', got: %s", c.Capture.Format)
	}

	if c.Capture.OutputDir == "" {
		return fmt.Errorf("capture.output_directory is required")
	}

	if c.Transcript.MinWordsThreshold < 0 {
		return fmt.Errorf("transcript.min_words_threshold must be >= 0, got: %d", c.Transcript.MinWordsThreshold)
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
