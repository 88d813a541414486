// Package config loads the c64u configuration from YAML with sensible
// defaults. The numeric liveness/retry constants live here rather than in
// code: they are empirically tuned per device and deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Device holds device-client and guarded-operation tuning.
type Device struct {
	// BaseURL of the C64 Ultimate REST API.
	BaseURL string `yaml:"base_url"`

	// RetryAttempts bounds retries for each individual device call
	// (pause/resume/reset/reboot/one chunk transfer).
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelay is the fixed inter-attempt delay.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ChunkSize is the transfer unit for bulk RAM operations.
	ChunkSize int `yaml:"chunk_size"`

	// RAMSize is the full address space covered by bulk operations.
	RAMSize int `yaml:"ram_size"`

	// JiffyWait is the window between the two liveness reads.
	JiffyWait time.Duration `yaml:"jiffy_wait"`

	// RasterPolls and RasterPollInterval control the raster-change probe
	// that distinguishes irq-stalled from wedged.
	RasterPolls        int           `yaml:"raster_polls"`
	RasterPollInterval time.Duration `yaml:"raster_poll_interval"`

	// RequestTimeout applies to each HTTP request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Compare holds trace-comparison tuning.
type Compare struct {
	// NoisePrefixes lists URL prefixes of polling GET endpoints that are
	// expected to repeat nondeterministically. The predicate is the
	// contract; this default list mirrors the device's known pollers.
	NoisePrefixes []string `yaml:"noise_prefixes"`

	// GoldenDir / GoldenOutputDir override golden-trace resolution.
	GoldenDir       string `yaml:"golden_dir"`
	GoldenOutputDir string `yaml:"golden_output_dir"`
}

// Bridge holds debug-bridge settings.
type Bridge struct {
	Listen string `yaml:"listen"`
}

// Config is the root configuration.
type Config struct {
	Device  Device  `yaml:"device"`
	Compare Compare `yaml:"compare"`
	Bridge  Bridge  `yaml:"bridge"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: Device{
			BaseURL:            "http://c64u",
			RetryAttempts:      3,
			RetryDelay:         500 * time.Millisecond,
			ChunkSize:          4096,
			RAMSize:            65536,
			JiffyWait:          250 * time.Millisecond,
			RasterPolls:        5,
			RasterPollInterval: 50 * time.Millisecond,
			RequestTimeout:     10 * time.Second,
		},
		Compare: Compare{
			NoisePrefixes: []string{
				"/v1/info",
				"/v1/version",
				"/v1/drives",
				"/v1/configs",
				"/v1/machine:readmem",
			},
		},
		Bridge: Bridge{
			Listen: "127.0.0.1:4664",
		},
	}
}

// Load reads path and overlays it on the defaults. A missing path returns
// the defaults unchanged; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	d := c.Device
	if d.ChunkSize <= 0 {
		return fmt.Errorf("device.chunk_size must be positive, got %d", d.ChunkSize)
	}
	if d.RAMSize <= 0 || d.RAMSize%d.ChunkSize != 0 {
		return fmt.Errorf("device.ram_size (%d) must be a positive multiple of chunk_size (%d)", d.RAMSize, d.ChunkSize)
	}
	if d.RetryAttempts < 1 {
		return fmt.Errorf("device.retry_attempts must be at least 1, got %d", d.RetryAttempts)
	}
	if d.RasterPolls < 1 {
		return fmt.Errorf("device.raster_polls must be at least 1, got %d", d.RasterPolls)
	}
	return nil
}
