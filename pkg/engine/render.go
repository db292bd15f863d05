package engine

import (
	"math"
	"time"

	"github.com/ljramones/dynamis-audio/pkg/acoustics"
)

// baseToneHz is the placeholder voice frequency. The real DSP chain
// (filters, convolution, panning) lives outside this core; each physical
// voice renders a gain- and pitch-shaped tone so the scheduling and
// parameter paths are exercised end to end.
const baseToneHz = 220.0

// headroom keeps a handful of simultaneous voices out of clipping.
const headroom = 0.25

// renderLoop is the render thread. One iteration per DSP block: signal the
// event applier, run the scheduler on its cadence, mix every physical voice
// from its published parameter snapshot and hand the block to the sink.
// Nothing on this path allocates or takes a control-plane lock; the
// scheduler's arbitration mutex is the one exclusive section it enters.
// Anomalies are counted, never raised.
func (e *Engine) renderLoop() {
	defer close(e.stopped)

	ticker := time.NewTicker(e.cfg.Output.BlockDuration())
	defer ticker.Stop()

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-ticker.C:
			e.renderBlock()
		}
	}
}

func (e *Engine) renderBlock() {
	block := e.blocks.Add(1)

	// Pace the event applier without ever blocking on it.
	select {
	case e.eventTick <- struct{}{}:
	default:
	}

	if block%uint64(e.cfg.Voices.CadenceBlocks) == 0 {
		e.sched.Evaluate(block, time.Now())
	}

	e.mixBlock()

	if err := e.sink.WriteBlock(e.pcmBuf); err != nil {
		e.writeErrors.Add(1)
	}
}

// eventLoop is the event applier task, paced by render block ticks so the
// ring is consumed about once per block. Applying an event republishes
// through the owning handle, which takes control-plane locks; running here
// keeps those locks off the render thread entirely.
func (e *Engine) eventLoop() {
	defer close(e.drainStopped)

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-e.eventTick:
			e.drainEvents()
		}
	}
}

// drainEvents empties the ring and applies every pending event.
func (e *Engine) drainEvents() {
	e.ring.Drain(e.batch)
	e.processEvents()
}

// processEvents applies the drained acoustic events. Occlusion data folds
// into the owning handle's base parameters; a region cull releases the
// emitter.
func (e *Engine) processEvents() {
	for i := 0; i < e.batch.Len; i++ {
		ev := &e.batch.Events[i]
		h := e.handleFor(ev.EmitterID)
		if h == nil {
			continue
		}
		switch ev.Kind {
		case acoustics.EventOcclusionChanged:
			h.setOcclusion(ev.Bands)
		case acoustics.EventRegionCull:
			h.em.Destroy()
		case acoustics.EventRoomChanged, acoustics.EventPortalChanged:
			// Scoring inputs refresh through the lifecycle task's
			// provider lookups; nothing to do per event.
		}
	}
}

// mixBlock accumulates every slot-holding voice into the block buffer and
// converts to interleaved int16.
func (e *Engine) mixBlock() {
	for i := range e.mixBuf {
		e.mixBuf[i] = 0
	}

	e.voiceBuf = e.voiceBuf[:0]
	e.voiceBuf = e.sched.PhysicalEmitters(e.voiceBuf)

	channels := e.cfg.Output.Channels
	frames := e.cfg.Output.FrameCount
	dt := 1.0 / float64(e.cfg.Output.SampleRate)

	for _, em := range e.voiceBuf {
		slot := em.Slot()
		if slot < 0 {
			continue
		}
		p := em.Params().Snapshot()

		var occ float64
		for _, o := range p.Occlusion {
			occ += o
		}
		occ /= acoustics.BandCount

		amp := p.MasterGain * (1 - occ) * headroom
		freq := baseToneHz * p.PitchMultiplier
		phase := e.phases[slot]

		for f := 0; f < frames; f++ {
			s := amp * math.Sin(2*math.Pi*phase)
			phase += freq * dt
			if phase >= 1 {
				phase -= 1
			}
			base := f * channels
			for c := 0; c < channels; c++ {
				e.mixBuf[base+c] += s
			}
		}
		e.phases[slot] = phase
	}

	for i, v := range e.mixBuf {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		e.pcmBuf[i] = int16(v * 32767)
	}
}
