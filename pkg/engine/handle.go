package engine

import (
	"sync"

	"github.com/ljramones/dynamis-audio/pkg/acoustics"
	"github.com/ljramones/dynamis-audio/pkg/emitter"
	"github.com/ljramones/dynamis-audio/pkg/events"
	"github.com/ljramones/dynamis-audio/pkg/rtpc"
)

// Handle is the caller-visible reference to a triggered sound. Parameter
// publishes always rebuild from the base (authored defaults plus the latest
// acoustic occlusion) and reapply every bound control value in binding
// declaration order, so re-sending the same value is idempotent.
type Handle struct {
	em  *emitter.Emitter
	def *events.Definition

	mu     sync.Mutex
	base   emitter.Params
	values map[string]float64 // latest raw control value per bound param
}

func newHandle(em *emitter.Emitter, def *events.Definition) *Handle {
	base := emitter.DefaultParams()
	base.MasterGain = def.Gain
	base.PitchMultiplier = def.Pitch
	base.Looping = def.Looping

	return &Handle{
		em:     em,
		def:    def,
		base:   base,
		values: make(map[string]float64),
	}
}

// ID returns the emitter's stable numeric identity.
func (h *Handle) ID() uint64 { return h.em.ID() }

// State returns the emitter's current lifecycle state.
func (h *Handle) State() emitter.State { return h.em.State() }

// Emitter exposes the underlying emitter for scheduling and tests.
func (h *Handle) Emitter() *emitter.Emitter { return h.em }

// publish rebuilds the parameter set from the base and all current control
// values, then publishes it as one snapshot.
func (h *Handle) publish() {
	h.mu.Lock()
	p := h.base
	for _, b := range h.def.Bindings {
		raw, ok := h.values[b.Param]
		if !ok {
			continue
		}
		rtpc.Apply(&p, b.Target, rtpc.Shape(b.Curve, raw))
	}
	h.mu.Unlock()

	h.em.Params().Publish(func(dst *emitter.Params) {
		*dst = p
	})
}

// setControl records a raw control value and republishes.
func (h *Handle) setControl(param string, raw float64) {
	h.mu.Lock()
	h.values[param] = raw
	h.mu.Unlock()
	h.publish()
}

// setOcclusion folds fresh simulation occlusion into the base and
// republishes, keeping any occlusion-scale bindings applied on top.
func (h *Handle) setOcclusion(bands [acoustics.BandCount]float64) {
	h.mu.Lock()
	h.base.Occlusion = bands
	h.mu.Unlock()
	h.publish()
}
