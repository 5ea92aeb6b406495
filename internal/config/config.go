package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete player configuration
type Config struct {
	Input   string        `yaml:"input"`
	Audio   AudioConfig   `yaml:"audio"`
	Video   VideoConfig   `yaml:"video"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Capture CaptureConfig `yaml:"capture"`
}

// AudioConfig describes the output format and the pull sink
type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Channels   int           `yaml:"channels"`
	Sink       string        `yaml:"sink"`
	BufferSize time.Duration `yaml:"buffer_size"`
	// MaxQueued caps how far demuxing runs ahead of playback, in bytes. Zero disables the cap.
	MaxQueued uint64 `yaml:"max_queued"`
}

// VideoConfig selects hardware decoding and the presentation queue depth
type VideoConfig struct {
	HardwareDevice string `yaml:"hardware_device"`
	FrameQueueSize int    `yaml:"frame_queue_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// CaptureConfig enables dumping the played audio to a zstd-compressed file
type CaptureConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
			Sink:       "oto",
			BufferSize: 100 * time.Millisecond,
			MaxQueued:  2 << 20,
		},
		Video: VideoConfig{
			FrameQueueSize: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address: "127.0.0.1:9464",
		},
	}
}

// Load reads the file at path on top of Default and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Video.Validate(); err != nil {
		return fmt.Errorf("video config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	if a.Sink == "" {
		return fmt.Errorf("sink cannot be empty")
	}

	if a.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %s", a.BufferSize)
	}

	if a.MaxQueued != 0 && a.MaxQueued < a.BufferBytes() {
		return fmt.Errorf("max_queued must hold at least one buffer (%d bytes), got %d", a.BufferBytes(), a.MaxQueued)
	}

	return nil
}

func (v *VideoConfig) Validate() error {
	if v.FrameQueueSize < 1 {
		return fmt.Errorf("frame_queue_size must be at least 1, got %d", v.FrameQueueSize)
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}

	return nil
}

// BytesPerSecond is the playback byte rate for packed float32 samples
func (a *AudioConfig) BytesPerSecond() int {
	return a.SampleRate * a.Channels * 4
}

// BufferBytes is how many bytes the sink pulls per buffer
func (a *AudioConfig) BufferBytes() uint64 {
	return uint64(float64(a.BytesPerSecond()) * a.BufferSize.Seconds())
}
