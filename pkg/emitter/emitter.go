// Package emitter implements the per-sound lifecycle core: the parameter
// publish channel, the lifecycle state machine, and the bookkeeping task that
// accompanies every triggered sound from spawn to release.
package emitter

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ljramones/dynamis-audio/pkg/acoustics"
)

// Importance is the designer-assigned priority class of a sound.
type Importance uint8

const (
	// ImportanceLow is ambience and other freely stealable sounds.
	ImportanceLow Importance = iota
	// ImportanceMedium is ordinary gameplay sounds.
	ImportanceMedium
	// ImportanceHigh is sounds that should rarely be stolen.
	ImportanceHigh
	// ImportanceCritical may claim slots from the critical reserve.
	ImportanceCritical
)

// Factor normalizes the importance class to [0,1] for priority scoring.
func (i Importance) Factor() float64 {
	return float64(i) / float64(ImportanceCritical)
}

// NoSlot marks an emitter that holds no physical voice slot.
const NoSlot = int32(-1)

// velocityNorm is the speed, in world units per second, that maps to a
// velocity factor of 1.0. Faster movement clamps.
const velocityNorm = 20.0

// ReadyCallback is invoked by the lifecycle task once spawning
// initialization has finished, before the first bookkeeping tick.
type ReadyCallback func(*Emitter)

// Emitter is one logical sound source. The control layer holds the handle,
// the lifecycle goroutine owns initialization and periodic bookkeeping, and
// the voice scheduler reads scores and manages slot assignment.
type Emitter struct {
	id         uint64
	tag        string
	importance Importance

	state    atomic.Int32
	initDone atomic.Bool

	params *ParamsChannel

	mu       sync.Mutex
	posX     float64
	posY     float64
	posZ     float64
	velocity float64
	movedAt  time.Time
	inputs   acoustics.Inputs

	score           atomic.Uint64 // Float64bits
	lastScoredBlock atomic.Uint64

	slot         atomic.Int32
	fadeDeadline atomic.Int64 // unix nanos, 0 = no fade pending
	toVirtual    atomic.Bool  // fade ends in Virtual (demotion) not Inactive

	cancel  context.CancelFunc
	done    chan struct{}
	onReady ReadyCallback
}

// New creates an emitter in the Inactive state. The caller assigns the id;
// ids must be monotonically increasing for deterministic scheduling order.
func New(id uint64, tag string, imp Importance, x, y, z float64, initial Params) *Emitter {
	e := &Emitter{
		id:         id,
		tag:        tag,
		importance: imp,
		params:     NewParamsChannel(initial),
		posX:       x,
		posY:       y,
		posZ:       z,
		movedAt:    time.Now(),
		done:       make(chan struct{}),
	}
	e.slot.Store(NoSlot)
	return e
}

// ID returns the emitter's stable numeric identity.
func (e *Emitter) ID() uint64 { return e.id }

// Tag returns the emitter's category tag.
func (e *Emitter) Tag() string { return e.tag }

// Importance returns the emitter's priority class.
func (e *Emitter) Importance() Importance { return e.importance }

// Params returns the emitter's parameter channel.
func (e *Emitter) Params() *ParamsChannel { return e.params }

// State returns the current lifecycle state.
func (e *Emitter) State() State { return State(e.state.Load()) }

// TransitionTo attempts the state change and reports whether it was a valid
// edge that actually happened. Concurrent callers race safely; the loser of
// the race observes the new state and re-validates.
func (e *Emitter) TransitionTo(to State) bool {
	for {
		cur := State(e.state.Load())
		if !validTransition(cur, to) {
			return false
		}
		if e.state.CompareAndSwap(int32(cur), int32(to)) {
			return true
		}
	}
}

// CompareAndTransition performs the single state change from exactly the
// given state. It fails when the edge is invalid or the emitter has already
// moved on, which closes races between the scheduler and concurrent
// Destroy calls.
func (e *Emitter) CompareAndTransition(from, to State) bool {
	if !validTransition(from, to) {
		return false
	}
	return e.state.CompareAndSwap(int32(from), int32(to))
}

// Spawn moves the emitter to Spawning and starts its lifecycle task.
// provider supplies acoustic lookups, interval sets the bookkeeping cadence,
// and onReady fires once initialization completes.
func (e *Emitter) Spawn(ctx context.Context, provider acoustics.Provider, interval time.Duration, onReady ReadyCallback) bool {
	if State(e.state.Load()) != StateInactive {
		return false
	}
	// The cancel func is published before the state flips live: a concurrent
	// Destroy only reads it after observing a live state, and that
	// observation synchronizes through the state CAS.
	taskCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.onReady = onReady
	if !e.TransitionTo(StateSpawning) {
		cancel()
		return false
	}
	go e.run(taskCtx, provider, interval)
	return true
}

// run is the lifecycle task: one cheap goroutine per live emitter.
func (e *Emitter) run(ctx context.Context, provider acoustics.Provider, interval time.Duration) {
	defer close(e.done)

	// Spawning: resolve initial acoustic inputs before anyone publishes
	// parameters over the defaults.
	x, y, z := e.Position()
	e.setInputs(provider.Lookup(e.id, x, y, z))
	e.initDone.Store(true)
	if e.onReady != nil {
		e.onReady(e)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A demotion fade passes through Releasing and comes back
			// to Virtual, so only Inactive ends the task; destroyed
			// emitters exit via context cancellation.
			if e.State() == StateInactive {
				return
			}
			x, y, z := e.Position()
			e.setInputs(provider.Lookup(e.id, x, y, z))
		}
	}
}

// WaitReady blocks the calling control thread until spawning initialization
// has finished, spinning in short sleeps up to timeout. It returns false on
// timeout; callers proceed anyway, the ordering guarantee is best-effort.
func (e *Emitter) WaitReady(timeout time.Duration) bool {
	if e.initDone.Load() {
		return true
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.initDone.Load() {
			return true
		}
		time.Sleep(50 * time.Microsecond)
	}
	return e.initDone.Load()
}

// Destroy moves the emitter into Releasing from any live state. It is
// idempotent, a no-op on Inactive or already-Releasing emitters, and never
// waits for the release tail.
func (e *Emitter) Destroy() {
	for {
		cur := State(e.state.Load())
		if cur == StateInactive {
			return
		}
		if cur == StateReleasing {
			// Already releasing; make sure a demotion fade in flight
			// now ends in Inactive instead of bouncing back to Virtual.
			e.toVirtual.Store(false)
			if e.cancel != nil {
				e.cancel()
			}
			return
		}
		if e.state.CompareAndSwap(int32(cur), int32(StateReleasing)) {
			e.toVirtual.Store(false)
			if e.cancel != nil {
				e.cancel()
			}
			return
		}
	}
}

// Done is closed when the lifecycle task has exited.
func (e *Emitter) Done() <-chan struct{} { return e.done }

// UpdatePosition moves the emitter and derives velocity from the finite
// difference over the previous position.
func (e *Emitter) UpdatePosition(x, y, z float64) {
	now := time.Now()
	e.mu.Lock()
	dt := now.Sub(e.movedAt).Seconds()
	if dt > 0 {
		dx, dy, dz := x-e.posX, y-e.posY, z-e.posZ
		e.velocity = math.Sqrt(dx*dx+dy*dy+dz*dz) / dt
	}
	e.posX, e.posY, e.posZ = x, y, z
	e.movedAt = now
	e.mu.Unlock()
}

// Position returns the current world position.
func (e *Emitter) Position() (x, y, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.posX, e.posY, e.posZ
}

// VelocityFactor returns the emitter's speed normalized to [0,1].
func (e *Emitter) VelocityFactor() float64 {
	e.mu.Lock()
	v := e.velocity
	e.mu.Unlock()
	f := v / velocityNorm
	if f > 1 {
		f = 1
	}
	return f
}

func (e *Emitter) setInputs(in acoustics.Inputs) {
	e.mu.Lock()
	e.inputs = in
	e.mu.Unlock()
}

// AcousticInputs returns the latest simulation inputs for scoring.
func (e *Emitter) AcousticInputs() acoustics.Inputs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inputs
}

// Score returns the last computed priority score.
func (e *Emitter) Score() float64 {
	return math.Float64frombits(e.score.Load())
}

// SetScore records a freshly computed priority score and the block it was
// computed at.
func (e *Emitter) SetScore(s float64, block uint64) {
	e.score.Store(math.Float64bits(s))
	e.lastScoredBlock.Store(block)
}

// LastScoredBlock returns the block counter of the most recent score update.
func (e *Emitter) LastScoredBlock() uint64 { return e.lastScoredBlock.Load() }

// Slot returns the assigned physical slot index, or NoSlot.
func (e *Emitter) Slot() int32 { return e.slot.Load() }

// SetSlot assigns or clears the physical slot. Only the voice scheduler
// calls this, under its arbitration lock.
func (e *Emitter) SetSlot(s int32) { e.slot.Store(s) }

// FadeDeadline returns the pending fade deadline in unix nanos, 0 if none.
func (e *Emitter) FadeDeadline() int64 { return e.fadeDeadline.Load() }

// SetFadeDeadline records when the current fade tail completes.
func (e *Emitter) SetFadeDeadline(nanos int64) { e.fadeDeadline.Store(nanos) }

// MarkDemotion flags that the current release fade ends in Virtual rather
// than Inactive.
func (e *Emitter) MarkDemotion() { e.toVirtual.Store(true) }

// ClearDemotion resets the demotion flag once a fade has resolved.
func (e *Emitter) ClearDemotion() { e.toVirtual.Store(false) }

// FadesToVirtual reports whether the pending fade is a demotion fade.
func (e *Emitter) FadesToVirtual() bool { return e.toVirtual.Load() }
