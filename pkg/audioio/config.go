// Package audioio provides the platform audio output boundary.
//
// The engine hands finished interleaved PCM blocks to a Sink. Backends:
//   - oto  - Cross-platform device output for interactive use
//   - wav  - Offline capture to a WAV file for render verification
//   - mock - CI/testing without hardware
//
// The backend is selected explicitly via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio output backend type.
type Backend string

const (
	// BackendOto plays through the system audio device via oto.
	BackendOto Backend = "oto"
	// BackendWav captures rendered blocks into a WAV file.
	BackendWav Backend = "wav"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds the output format, fixed for the whole session.
type Config struct {
	// Backend specifies which output backend to use.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the output sample rate in Hz.
	// Default: 48000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of interleaved output channels.
	// Default: 2 (stereo)
	Channels int `yaml:"channels" json:"channels"`

	// FrameCount is the number of frames per DSP block.
	// Default: 256 (~5.3ms at 48kHz)
	FrameCount int `yaml:"frame_count" json:"frame_count"`

	// Path is the output file for the wav backend, ignored otherwise.
	Path string `yaml:"path" json:"path"`
}

// DefaultConfig returns a Config with the engine's stock session format.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendMock,
		SampleRate: 48000,
		Channels:   2,
		FrameCount: 256,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FrameCount <= 0 {
		return fmt.Errorf("frame_count must be positive, got %d", c.FrameCount)
	}
	if c.Backend == BackendWav && c.Path == "" {
		return fmt.Errorf("wav backend requires a path")
	}
	return nil
}

// BlockSamples returns the number of interleaved samples per block.
func (c *Config) BlockSamples() int {
	return c.FrameCount * c.Channels
}

// BlockDuration returns the wall-clock duration of one block.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(float64(c.FrameCount) / float64(c.SampleRate) * float64(time.Second))
}
