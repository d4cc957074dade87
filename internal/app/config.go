package app

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend         string `yaml:"backend"` // auto | ffmpeg | portaudio
	Device          string `yaml:"device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkIntervalMs int    `yaml:"chunk_interval_ms"`
	TickIntervalMs  int    `yaml:"tick_interval_ms"`
	OutputDir       string `yaml:"output_dir"`
	StateDir        string `yaml:"state_dir"`
	LogFile         string `yaml:"log_file"`
}

func DefaultConfig() Config {
	return Config{
		Backend:         "auto",
		SampleRate:      48000,
		Channels:        1,
		ChunkIntervalMs: 1000,
		TickIntervalMs:  500,
		StateDir:        DefaultStateDir(),
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	switch cfg.Backend {
	case "", "auto", "ffmpeg", "portaudio":
	default:
		cfg.Backend = "auto"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels < 1 {
		cfg.Channels = 1
	}
	if cfg.Channels > 2 {
		cfg.Channels = 2
	}
	if cfg.ChunkIntervalMs < 100 {
		cfg.ChunkIntervalMs = 1000
	}
	if cfg.TickIntervalMs < 50 {
		cfg.TickIntervalMs = 500
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir()
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "fai-recorder", "config.yml")
}

// DefaultStateDir returns where the continuity hint and log file live.
// Prefers XDG state dir (Linux/macOS); falls back to ~/.local/state.
func DefaultStateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "fai-recorder")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "state", "fai-recorder")
	}
	return filepath.Join(os.TempDir(), "fai-recorder")
}
