package acoustics

import (
	"fmt"
	"sync/atomic"
)

// EventKind classifies an acoustic event.
type EventKind uint8

const (
	// EventOcclusionChanged signals new occlusion data for an emitter.
	EventOcclusionChanged EventKind = iota
	// EventRoomChanged signals that an emitter crossed into another room.
	EventRoomChanged
	// EventPortalChanged signals a change in the portal path to the listener.
	EventPortalChanged
	// EventRegionCull signals that an emitter left the simulated region.
	EventRegionCull
)

// Event is one asynchronous acoustic notification. Events are plain values;
// the ring copies them on enqueue and the batch copies them on drain.
type Event struct {
	Kind      EventKind
	EmitterID uint64
	RoomID    uint32
	Bands     [BandCount]float64
}

// Batch is the pre-allocated drain target owned by the DSP block driver.
// Slots beyond Len are stale from earlier drains and must not be read.
type Batch struct {
	Events []Event
	Len    int
}

// NewBatch returns a batch sized to hold a full ring of capacity n.
func NewBatch(n int) *Batch {
	return &Batch{Events: make([]Event, n)}
}

// Ring is a fixed-capacity multi-producer single-consumer event queue.
// Capacity must be a power of two so index wraparound is a mask. Producers
// never block: when the ring is full the event is dropped and counted.
type Ring struct {
	buf   []Event
	mask  uint64
	head  atomic.Uint64 // next slot to consume
	tail  atomic.Uint64 // next slot to produce
	seq   []atomic.Uint64
	drops atomic.Uint64
}

// NewRing creates a ring with the given capacity. The capacity must be a
// power of two and at least 2; anything else is a fatal configuration error.
func NewRing(capacity int) (*Ring, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring capacity must be a power of two >= 2, got %d", capacity)
	}
	r := &Ring{
		buf:  make([]Event, capacity),
		mask: uint64(capacity - 1),
		seq:  make([]atomic.Uint64, capacity),
	}
	for i := range r.seq {
		r.seq[i].Store(uint64(i))
	}
	return r, nil
}

// Capacity returns the fixed ring capacity.
func (r *Ring) Capacity() int { return len(r.buf) }

// Drops returns the number of events dropped due to a full ring.
func (r *Ring) Drops() uint64 { return r.drops.Load() }

// Enqueue adds an event. It is safe to call from any goroutine, never
// blocks, and never allocates. Returns false when the ring was full and the
// event was dropped.
func (r *Ring) Enqueue(ev Event) bool {
	for {
		tail := r.tail.Load()
		slot := &r.seq[tail&r.mask]
		seq := slot.Load()
		switch {
		case seq == tail:
			if r.tail.CompareAndSwap(tail, tail+1) {
				r.buf[tail&r.mask] = ev
				// Publishing seq = tail+1 hands the slot to the consumer.
				slot.Store(tail + 1)
				return true
			}
		case seq < tail:
			// Slot still holds an unconsumed event from a full lap.
			r.drops.Add(1)
			return false
		default:
			// Another producer won this slot; retry with a fresh tail.
		}
	}
}

// Drain moves all pending events into batch, oldest first, and returns the
// number drained. It must only be called from the single consumer. Stale
// entries in batch beyond the returned count are left untouched.
func (r *Ring) Drain(batch *Batch) int {
	n := 0
	max := len(batch.Events)
	for n < max {
		head := r.head.Load()
		slot := &r.seq[head&r.mask]
		if slot.Load() != head+1 {
			break // empty, or a producer has claimed but not yet published
		}
		batch.Events[n] = r.buf[head&r.mask]
		// Releasing seq = head+capacity returns the slot to producers.
		slot.Store(head + uint64(len(r.buf)))
		r.head.Store(head + 1)
		n++
	}
	batch.Len = n
	return n
}
