// Package engine ties the runtime core together: the event registry, the
// voice budget scheduler, the acoustic event ring and the render loop that
// feeds the output device one block at a time.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ljramones/dynamis-audio/internal/log"
	"github.com/ljramones/dynamis-audio/pkg/acoustics"
	"github.com/ljramones/dynamis-audio/pkg/audioio"
	"github.com/ljramones/dynamis-audio/pkg/emitter"
	"github.com/ljramones/dynamis-audio/pkg/events"
	"github.com/ljramones/dynamis-audio/pkg/voices"
)

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Session       string             `json:"session"`
	Blocks        uint64             `json:"blocks"`
	EventDrops    uint64             `json:"event_drops"`
	SpawnTimeouts uint64             `json:"spawn_timeouts"`
	WriteErrors   uint64             `json:"write_errors"`
	Voices        voices.Stats       `json:"voices"`
	Sink          *audioio.SinkStats `json:"sink,omitempty"`
}

// Engine is the explicit context object owning the runtime core. It is
// created and torn down by the caller; there is no ambient global state.
type Engine struct {
	cfg      Config
	session  uuid.UUID
	registry *events.Registry
	sched    *voices.Scheduler
	ring     *acoustics.Ring
	batch    *acoustics.Batch
	provider acoustics.Provider
	sink     audioio.Sink

	nextID atomic.Uint64
	blocks atomic.Uint64

	spawnTimeouts atomic.Uint64
	writeErrors   atomic.Uint64

	hmu     sync.Mutex
	handles map[uint64]*Handle

	runCtx       context.Context
	cancel       context.CancelFunc
	stopped      chan struct{}
	drainStopped chan struct{}

	// eventTick paces the event applier task off the render thread; the
	// render loop posts a non-blocking signal per block.
	eventTick chan struct{}

	// render-thread scratch, allocated once at construction
	mixBuf   []float64
	pcmBuf   []int16
	voiceBuf []*emitter.Emitter
	phases   []float64
}

// New builds an engine from a validated config, the authored event registry
// and an acoustic simulation provider.
func New(cfg Config, registry *events.Registry, provider acoustics.Provider, sink audioio.Sink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	sched, err := voices.NewScheduler(cfg.Voices)
	if err != nil {
		return nil, err
	}
	ring, err := acoustics.NewRing(cfg.RingCapacity)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		session:  uuid.New(),
		registry: registry,
		sched:    sched,
		ring:     ring,
		batch:    acoustics.NewBatch(cfg.RingCapacity),
		provider: provider,
		sink:     sink,
		handles:  make(map[uint64]*Handle),
		mixBuf:   make([]float64, cfg.Output.BlockSamples()),
		pcmBuf:   make([]int16, cfg.Output.BlockSamples()),
		voiceBuf: make([]*emitter.Emitter, 0, cfg.Voices.TotalSlots),
		phases:   make([]float64, cfg.Voices.TotalSlots),
	}
	e.eventTick = make(chan struct{}, 1)
	e.stopped = make(chan struct{})
	e.drainStopped = make(chan struct{})
	close(e.stopped) // not running yet
	close(e.drainStopped)

	sched.SetReclaimFunc(e.dropHandle)

	return e, nil
}

// Session returns the engine's session identity.
func (e *Engine) Session() uuid.UUID { return e.session }

// Scheduler exposes the voice budget scheduler.
func (e *Engine) Scheduler() *voices.Scheduler { return e.sched }

// Ring exposes the acoustic event ring for simulation producers.
func (e *Engine) Ring() *acoustics.Ring { return e.ring }

// Start launches the render loop.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.sink.Start(ctx); err != nil {
		return fmt.Errorf("start sink: %w", err)
	}

	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.stopped = make(chan struct{})
	e.drainStopped = make(chan struct{})
	go e.renderLoop()
	go e.eventLoop()

	log.Info("engine started",
		"session", e.session.String(),
		"slots", e.cfg.Voices.TotalSlots,
		"reserved", e.cfg.Voices.ReservedCritical,
		"sink", e.sink.Name(),
	)
	return nil
}

// Stop tears the engine down: emergency-culls all voices, stops the render
// loop and closes the sink.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	<-e.stopped
	<-e.drainStopped

	e.sched.CullAll(time.Now())
	err := e.sink.Close()

	log.Info("engine stopped",
		"session", e.session.String(),
		"blocks", e.blocks.Load(),
	)
	return err
}

// Trigger resolves a named event and spawns an emitter at the position.
// An unknown name is reported and returned absent; it never panics.
func (e *Engine) Trigger(name string, x, y, z float64) (*Handle, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		log.Warn("trigger: unknown event", "name", name)
		return nil, err
	}

	id := e.nextID.Add(1)
	em := emitter.New(id, def.Tag, def.Importance, x, y, z, emitter.DefaultParams())
	h := newHandle(em, def)

	e.hmu.Lock()
	e.handles[id] = h
	e.hmu.Unlock()

	e.sched.Register(em)

	block := e.blocks.Load()
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	em.Spawn(ctx, e.provider, e.cfg.BookkeepingInterval, func(ready *emitter.Emitter) {
		e.sched.Settle(ready, block)
	})

	// Defaults and bindings must land after the task's own parameter
	// initialization; the wait is bounded and best-effort.
	if !em.WaitReady(e.cfg.SpawnWait) {
		e.spawnTimeouts.Add(1)
	}
	h.publish()

	return h, nil
}

// SetParam feeds a raw control value for a bound parameter name. Values are
// curve-shaped per binding and applied in binding declaration order.
func (e *Engine) SetParam(h *Handle, param string, raw float64) {
	h.setControl(param, raw)
}

// UpdatePosition moves an emitter; velocity is derived from the delta.
func (e *Engine) UpdatePosition(h *Handle, x, y, z float64) {
	h.em.UpdatePosition(x, y, z)
}

// Destroy releases a triggered sound. Idempotent and non-blocking.
func (e *Engine) Destroy(h *Handle) {
	h.em.Destroy()
}

// handleFor returns the live handle for an emitter id, nil when unknown.
func (e *Engine) handleFor(id uint64) *Handle {
	e.hmu.Lock()
	defer e.hmu.Unlock()
	return e.handles[id]
}

// dropHandle forgets an emitter whose lifecycle completed.
func (e *Engine) dropHandle(id uint64) {
	e.hmu.Lock()
	delete(e.handles, id)
	e.hmu.Unlock()
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	st := Stats{
		Session:       e.session.String(),
		Blocks:        e.blocks.Load(),
		EventDrops:    e.ring.Drops(),
		SpawnTimeouts: e.spawnTimeouts.Load(),
		WriteErrors:   e.writeErrors.Load(),
		Voices:        e.sched.Stats(),
	}
	if ws, ok := e.sink.(audioio.SinkWithStats); ok {
		s := ws.Stats()
		st.Sink = &s
	}
	return st
}
