package emitter

import (
	"sync"
	"sync/atomic"

	"github.com/ljramones/dynamis-audio/pkg/acoustics"
)

// Params is the per-emitter mix parameter set read by the render thread.
// It is a plain value: publishing copies it wholesale, so a snapshot is
// always internally consistent.
type Params struct {
	MasterGain      float64
	PitchMultiplier float64
	ReverbWetGain   float64
	Looping         bool
	Occlusion       [acoustics.BandCount]float64
}

// DefaultParams returns unity parameters: full gain, unity pitch, no reverb
// send, no occlusion.
func DefaultParams() Params {
	return Params{
		MasterGain:      1.0,
		PitchMultiplier: 1.0,
		ReverbWetGain:   0.0,
	}
}

// dirtyBit marks an in-flight buffer the reader has not yet taken.
const dirtyBit = 1 << 2

// ParamsChannel hands parameter snapshots from control threads to the render
// thread. Publishers mutate a writer-owned staging copy which is handed over
// wholesale; the reader never observes a partially written struct. Last
// completed publish wins.
//
// The channel owns three pre-allocated buffers: one held by the reader, one
// in flight, one for the next write. Buffers circulate only through the
// in-flight exchange, so the writer can never touch the buffer the reader
// holds — publishes keep landing while the reader is mid-copy. Neither side
// allocates and the reader never blocks. Concurrent publishers serialize on
// a mutex; Snapshot is single-consumer (the render thread).
type ParamsChannel struct {
	mu      sync.Mutex
	staging Params // accumulated published state, writer side
	write   int    // buffer the next publish fills, writer side

	inflight atomic.Uint32 // latest buffer index, dirtyBit set while unread

	read int // buffer the reader holds, reader side

	bufs [3]Params
}

// NewParamsChannel creates a channel with p as the initial snapshot.
func NewParamsChannel(p Params) *ParamsChannel {
	c := &ParamsChannel{staging: p, write: 2}
	c.bufs[0] = p
	c.bufs[1] = p
	c.inflight.Store(1)
	return c
}

// Publish applies mutate to the accumulated parameter state and hands the
// result to the reader. mutate must not retain the pointer past its return.
func (c *ParamsChannel) Publish(mutate func(*Params)) {
	c.mu.Lock()
	mutate(&c.staging)
	c.bufs[c.write] = c.staging
	prev := c.inflight.Swap(uint32(c.write) | dirtyBit)
	// The buffer coming back is either an unread earlier publish or one the
	// reader released; the buffer the reader holds never passes through.
	c.write = int(prev &^ dirtyBit)
	c.mu.Unlock()
}

// Snapshot returns the latest fully published parameter set. Wait-free for
// the single render-thread consumer: one load and at most one exchange, no
// locking, no allocation.
func (c *ParamsChannel) Snapshot() Params {
	if c.inflight.Load()&dirtyBit != 0 {
		prev := c.inflight.Swap(uint32(c.read))
		c.read = int(prev &^ dirtyBit)
	}
	return c.bufs[c.read]
}
