package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// maxPendingBlocks bounds the sample FIFO between the render thread and the
// device callback. Writes beyond it overwrite the oldest audio rather than
// blocking the render thread.
const maxPendingBlocks = 64

// OtoSink plays blocks through the system audio device via oto. The render
// thread pushes blocks into a fixed-capacity FIFO; the device pulls from it
// through the io.Reader callback on its own thread.
type OtoSink struct {
	cfg    Config
	logger *slog.Logger

	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	pending []int16
	pos     int
	running bool
	closed  bool

	blocksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

// NewOtoSink opens an oto context for the session format.
func NewOtoSink(cfg Config, logger *slog.Logger) (*OtoSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoSink{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		pending: make([]int16, 0, maxPendingBlocks*cfg.BlockSamples()),
	}, nil
}

// Start begins device playback.
func (s *OtoSink) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	s.player = s.ctx.NewPlayer(s)
	s.player.Play()
	s.running = true

	s.logger.Info("oto audio sink started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)
	return nil
}

// WriteBlock queues one block for the device. Never blocks: when the FIFO
// is full the oldest audio is discarded.
func (s *OtoSink) WriteBlock(block []int16) error {
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

	s.compactLocked()
	if len(s.pending)+len(block) > cap(s.pending) {
		// Device is behind; drop the oldest block worth of samples.
		drop := len(block)
		copy(s.pending, s.pending[drop:])
		s.pending = s.pending[:len(s.pending)-drop]
	}
	s.pending = append(s.pending, block...)

	s.blocksWritten.Add(1)
	s.samplesWritten.Add(int64(len(block)))
	return nil
}

// Read implements io.Reader for the oto player. Runs on the device thread;
// an empty FIFO produces silence and counts an underrun.
func (s *OtoSink) Read(p []byte) (int, error) {
	n := len(p) - len(p)%2

	s.mu.Lock()
	defer s.mu.Unlock()

	starved := false
	for i := 0; i < n; i += 2 {
		var v int16
		if s.pos < len(s.pending) {
			v = s.pending[s.pos]
			s.pos++
		} else {
			starved = true
		}
		p[i] = byte(v)
		p[i+1] = byte(v >> 8)
	}
	s.compactLocked()
	if starved {
		s.underruns.Add(1)
	}
	return n, nil
}

// compactLocked drops consumed samples from the front of the FIFO.
func (s *OtoSink) compactLocked() {
	if s.pos == 0 {
		return
	}
	if s.pos >= len(s.pending) {
		s.pending = s.pending[:0]
	} else {
		remaining := len(s.pending) - s.pos
		copy(s.pending, s.pending[s.pos:])
		s.pending = s.pending[:remaining]
	}
	s.pos = 0
}

// Stop halts playback.
func (s *OtoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	s.running = false
	return nil
}

// Config returns the session output format.
func (s *OtoSink) Config() Config { return s.cfg }

// Name returns "oto".
func (s *OtoSink) Name() string { return "oto" }

// Close releases the device.
func (s *OtoSink) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Stats returns sink statistics.
func (s *OtoSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		BlocksWritten:  s.blocksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Underruns:      s.underruns.Load(),
		Running:        running,
		Backend:        "oto",
	}
}
