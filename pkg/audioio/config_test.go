package audioio

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"negative channels", func(c *Config) { c.Channels = -1 }, true},
		{"zero frames", func(c *Config) { c.FrameCount = 0 }, true},
		{"wav without path", func(c *Config) { c.Backend = BackendWav }, true},
		{"wav with path", func(c *Config) { c.Backend = BackendWav; c.Path = "out.wav" }, false},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.wantErr && err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
	}
}

func TestBlockSamples(t *testing.T) {
	cfg := Config{SampleRate: 48000, Channels: 2, FrameCount: 256}
	if got := cfg.BlockSamples(); got != 512 {
		t.Errorf("BlockSamples: got %d, want 512", got)
	}
}

func TestBlockDuration(t *testing.T) {
	cfg := Config{SampleRate: 48000, Channels: 2, FrameCount: 480}
	if got, want := cfg.BlockDuration(), 10*time.Millisecond; got != want {
		t.Errorf("BlockDuration: got %v, want %v", got, want)
	}
}

func TestNewSinkUnsupportedBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = Backend("pulse")
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("expected error for unsupported backend, got nil")
	}
}

func TestNewSinkMock(t *testing.T) {
	cfg := DefaultConfig()
	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if got := sink.Name(); got != "mock" {
		t.Errorf("Name: got %q, want %q", got, "mock")
	}
}
