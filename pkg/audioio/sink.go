package audioio

import (
	"context"
	"io"
)

// Sink consumes finished interleaved PCM blocks from the render thread.
// The block length is fixed for the session (Config.BlockSamples).
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// WriteBlock hands one finished block to the device. The sink copies
	// the samples before returning; the caller reuses the slice.
	WriteBlock(block []int16) error

	// Stop halts output. It is safe to call Stop multiple times.
	Stop() error

	// Config returns the session output format.
	Config() Config

	// Name returns the backend name (e.g. "oto", "wav", "mock").
	Name() string

	// Close releases all resources. After Close, the sink cannot be
	// restarted.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// BlocksWritten is the total number of blocks written.
	BlocksWritten int64 `json:"blocks_written"`

	// SamplesWritten is the total number of samples written.
	SamplesWritten int64 `json:"samples_written"`

	// Underruns is the number of device starvations (audio gaps).
	Underruns int64 `json:"underruns"`

	// Running indicates if the sink is currently open.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
