package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MockSink is a mock audio sink for testing. It discards audio by default
// and can optionally retain every written block for inspection.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	capture bool
	blocks  [][]int16

	blocksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithCapture makes the mock retain a copy of every written block.
func WithCapture() MockSinkOption {
	return func(m *MockSink) {
		m.capture = true
	}
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSink{
		cfg:    cfg,
		logger: logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start opens the mock sink.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true

	m.logger.Debug("mock audio sink started",
		"sample_rate", m.cfg.SampleRate,
		"channels", m.cfg.Channels,
	)

	return nil
}

// WriteBlock records the block.
func (m *MockSink) WriteBlock(block []int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if !m.running {
		return ErrNotStarted
	}

	m.blocksWritten.Add(1)
	m.samplesWritten.Add(int64(len(block)))

	if m.capture {
		cp := make([]int16, len(block))
		copy(cp, block)
		m.blocks = append(m.blocks, cp)
	}

	return nil
}

// Blocks returns the captured blocks (only populated with WithCapture).
func (m *MockSink) Blocks() [][]int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks
}

// Stop halts the mock sink.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.logger.Debug("mock audio sink stopped")

	return nil
}

// Config returns the session output format.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Close releases the mock sink.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.closed = true
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SinkStats{
		BlocksWritten:  m.blocksWritten.Load(),
		SamplesWritten: m.samplesWritten.Load(),
		Running:        running,
		Backend:        "mock",
	}
}
