package audioio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavSink captures rendered blocks into a 16-bit PCM WAV file. Used for
// offline render verification; the int buffer is pre-allocated once so
// WriteBlock performs no per-block allocation.
type WavSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	ib      *audio.IntBuffer
	running bool
	closed  bool

	blocksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// NewWavSink creates a WAV capture sink writing to cfg.Path.
func NewWavSink(cfg Config, logger *slog.Logger) (*WavSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return &WavSink{
		cfg:    cfg,
		logger: logger,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: cfg.Channels,
				SampleRate:  cfg.SampleRate,
			},
			Data:           make([]int, cfg.BlockSamples()),
			SourceBitDepth: 16,
		},
	}, nil
}

// Start creates the output file and WAV encoder.
func (s *WavSink) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	f, err := os.Create(s.cfg.Path)
	if err != nil {
		return err
	}
	s.file = f
	s.enc = wav.NewEncoder(f, s.cfg.SampleRate, 16, s.cfg.Channels, 1)
	s.running = true

	s.logger.Info("wav capture sink started", "path", s.cfg.Path)
	return nil
}

// WriteBlock appends one block to the WAV file.
func (s *WavSink) WriteBlock(block []int16) error {
	if len(block) != s.cfg.BlockSamples() {
		return ErrBlockSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if !s.running {
		return ErrNotStarted
	}

	for i, v := range block {
		s.ib.Data[i] = int(v)
	}
	if err := s.enc.Write(s.ib); err != nil {
		return err
	}

	s.blocksWritten.Add(1)
	s.samplesWritten.Add(int64(len(block)))
	return nil
}

// Stop finalizes the WAV header and closes the file.
func (s *WavSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if err := s.enc.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Config returns the session output format.
func (s *WavSink) Config() Config { return s.cfg }

// Name returns "wav".
func (s *WavSink) Name() string { return "wav" }

// Close finalizes the capture.
func (s *WavSink) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Stats returns sink statistics.
func (s *WavSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		BlocksWritten:  s.blocksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        "wav",
	}
}
