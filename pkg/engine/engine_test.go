package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ljramones/dynamis-audio/pkg/acoustics"
	"github.com/ljramones/dynamis-audio/pkg/audioio"
	"github.com/ljramones/dynamis-audio/pkg/emitter"
	"github.com/ljramones/dynamis-audio/pkg/events"
	"github.com/ljramones/dynamis-audio/pkg/rtpc"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// loudInputs scores well above the promote threshold for a medium-importance
// emitter under the default weights.
func loudInputs() acoustics.Inputs {
	return acoustics.Inputs{DistanceFactor: 1.0, Audibility: 1.0}
}

// quietInputs scores well below the promote threshold.
func quietInputs() acoustics.Inputs {
	return acoustics.Inputs{DistanceFactor: 0.1, Audibility: 0.1}
}

func testRegistry(t *testing.T) *events.Registry {
	t.Helper()
	r := events.NewRegistry()
	defs := []*events.Definition{
		{
			Name:       "steady_loop",
			Gain:       0.8,
			Pitch:      1.0,
			Looping:    true,
			Tag:        "test",
			Importance: emitter.ImportanceMedium,
			Bindings: []rtpc.Binding{
				{Param: "intensity", Target: rtpc.TargetMasterGain, Curve: rtpc.CurveLinear},
			},
		},
		{
			Name:       "two_pitch",
			Gain:       1.0,
			Pitch:      1.0,
			Tag:        "test",
			Importance: emitter.ImportanceMedium,
			Bindings: []rtpc.Binding{
				{Param: "first", Target: rtpc.TargetPitchMultiplier, Curve: rtpc.CurveLinear},
				{Param: "second", Target: rtpc.TargetPitchMultiplier, Curve: rtpc.CurveLinear},
			},
		},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}
	return r
}

// newTestEngine builds an engine on a started mock sink without launching
// the render loop; tests drive blocks by hand for determinism.
func newTestEngine(t *testing.T, in acoustics.Inputs) (*Engine, *audioio.MockSink) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SpawnWait = 100 * time.Millisecond

	sink := audioio.NewMockSink(cfg.Output, nil, audioio.WithCapture())
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("start sink: %v", err)
	}

	eng, err := New(cfg, testRegistry(t), &acoustics.StaticProvider{In: in}, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return eng, sink
}

func waitState(t *testing.T, em *emitter.Emitter, want emitter.State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if em.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state: got %v, want %v", em.State(), want)
}

func TestTriggerUnknownEvent(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("no_such_event", 0, 0, 0)
	if !errors.Is(err, events.ErrNotFound) {
		t.Errorf("error: got %v, want ErrNotFound", err)
	}
	if h != nil {
		t.Error("handle: got non-nil for unknown event")
	}
}

func TestTriggerAppliesAuthoredDefaults(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	defer eng.Destroy(h)

	p := h.Emitter().Params().Snapshot()
	if !floatEquals(p.MasterGain, 0.8) {
		t.Errorf("MasterGain: got %v, want 0.8", p.MasterGain)
	}
	if !floatEquals(p.PitchMultiplier, 1.0) {
		t.Errorf("PitchMultiplier: got %v, want 1.0", p.PitchMultiplier)
	}
	if !p.Looping {
		t.Error("Looping: got false, want true")
	}
}

func TestTriggerSettlesByScore(t *testing.T) {
	loud, _ := newTestEngine(t, loudInputs())
	h, err := loud.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitState(t, h.Emitter(), emitter.StatePhysical)
	loud.Destroy(h)

	quiet, _ := newTestEngine(t, quietInputs())
	h, err = quiet.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitState(t, h.Emitter(), emitter.StateVirtual)
	quiet.Destroy(h)
}

// An authored gain of 0.8 with a linear gain binding at 0.5 must publish an
// effective gain of 0.4, and re-sending the same value must not compound.
func TestSetParamShapesGain(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	defer eng.Destroy(h)

	eng.SetParam(h, "intensity", 0.5)
	if got := h.Emitter().Params().Snapshot().MasterGain; !floatEquals(got, 0.4) {
		t.Errorf("MasterGain: got %v, want 0.4", got)
	}

	// Idempotent: the same raw value again yields the same result.
	eng.SetParam(h, "intensity", 0.5)
	if got := h.Emitter().Params().Snapshot().MasterGain; !floatEquals(got, 0.4) {
		t.Errorf("MasterGain after re-send: got %v, want 0.4", got)
	}

	// A new value rebuilds from the authored base, not the modulated value.
	eng.SetParam(h, "intensity", 1.0)
	if got := h.Emitter().Params().Snapshot().MasterGain; !floatEquals(got, 0.8) {
		t.Errorf("MasterGain after reset: got %v, want 0.8", got)
	}
}

// Two bindings on the same target apply in declaration order within one
// publish; for a direct-mapping target the later binding wins.
func TestBindingDeclarationOrder(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("two_pitch", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	defer eng.Destroy(h)

	eng.SetParam(h, "first", 1.0)  // alone: pitch 2.0
	eng.SetParam(h, "second", 0.0) // declared later: pitch 0.5
	if got := h.Emitter().Params().Snapshot().PitchMultiplier; !floatEquals(got, 0.5) {
		t.Errorf("PitchMultiplier: got %v, want 0.5 (later binding wins)", got)
	}
}

func TestOcclusionEventFoldsIntoParams(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	defer eng.Destroy(h)
	waitState(t, h.Emitter(), emitter.StatePhysical)

	var bands [acoustics.BandCount]float64
	for i := range bands {
		bands[i] = 0.6
	}
	if !eng.Ring().Enqueue(acoustics.Event{
		Kind:      acoustics.EventOcclusionChanged,
		EmitterID: h.ID(),
		Bands:     bands,
	}) {
		t.Fatal("Enqueue dropped the event")
	}

	eng.drainEvents()

	p := h.Emitter().Params().Snapshot()
	for i, o := range p.Occlusion {
		if !floatEquals(o, 0.6) {
			t.Errorf("occlusion band %d: got %v, want 0.6", i, o)
			break
		}
	}
	// Control values survive occlusion updates: the publish rebuilds from
	// base plus bindings.
	eng.SetParam(h, "intensity", 0.5)
	p = h.Emitter().Params().Snapshot()
	if !floatEquals(p.MasterGain, 0.4) {
		t.Errorf("MasterGain after occlusion: got %v, want 0.4", p.MasterGain)
	}
	if !floatEquals(p.Occlusion[0], 0.6) {
		t.Errorf("occlusion after control publish: got %v, want 0.6", p.Occlusion[0])
	}
}

func TestRegionCullReleasesEmitter(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitState(t, h.Emitter(), emitter.StatePhysical)

	eng.Ring().Enqueue(acoustics.Event{
		Kind:      acoustics.EventRegionCull,
		EmitterID: h.ID(),
	})
	eng.drainEvents()

	if got := h.State(); got != emitter.StateReleasing {
		t.Errorf("state after region cull: got %v, want %v", got, emitter.StateReleasing)
	}
}

// A control thread stuck mid-publish must never stall a render block: event
// application runs on its own task, so the render path takes no handle
// locks even with events pending.
func TestRenderBlockIndependentOfControlLocks(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	defer eng.Destroy(h)
	waitState(t, h.Emitter(), emitter.StatePhysical)

	var bands [acoustics.BandCount]float64
	bands[0] = 0.5
	eng.Ring().Enqueue(acoustics.Event{
		Kind:      acoustics.EventOcclusionChanged,
		EmitterID: h.ID(),
		Bands:     bands,
	})

	// Pin the handle's control-plane lock while a block renders.
	h.mu.Lock()
	done := make(chan struct{})
	go func() {
		eng.renderBlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("render block stalled behind a held control-plane lock")
	}
	h.mu.Unlock()

	// The event lands once the applier runs.
	eng.drainEvents()
	if got := h.Emitter().Params().Snapshot().Occlusion[0]; !floatEquals(got, 0.5) {
		t.Errorf("occlusion after drain: got %v, want 0.5", got)
	}
}

func TestDestroyedEmitterLeavesTracking(t *testing.T) {
	eng, _ := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitState(t, h.Emitter(), emitter.StatePhysical)
	id := h.ID()

	eng.Destroy(h)

	// Drive enough blocks for the release tail to start and complete.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		eng.renderBlock()
		if eng.Scheduler().Tracked() == 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if got := eng.Scheduler().Tracked(); got != 0 {
		t.Fatalf("Tracked after release: got %d, want 0", got)
	}
	if eng.handleFor(id) != nil {
		t.Error("handle not reclaimed after release tail")
	}
	if got := h.State(); got != emitter.StateInactive {
		t.Errorf("state after release: got %v, want %v", got, emitter.StateInactive)
	}
}

func TestMixedBlocksCarrySignal(t *testing.T) {
	eng, sink := newTestEngine(t, loudInputs())
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	defer eng.Destroy(h)
	waitState(t, h.Emitter(), emitter.StatePhysical)

	for i := 0; i < 4; i++ {
		eng.renderBlock()
	}

	blocks := sink.Blocks()
	if len(blocks) != 4 {
		t.Fatalf("blocks written: got %d, want 4", len(blocks))
	}
	var peak int16
	for _, b := range blocks {
		for _, s := range b {
			if s > peak {
				peak = s
			}
		}
	}
	if peak == 0 {
		t.Error("rendered blocks are silent, expected a tone")
	}
}

func TestEngineStartStop(t *testing.T) {
	cfg := DefaultConfig()
	sink := audioio.NewMockSink(cfg.Output, nil)
	eng, err := New(cfg, testRegistry(t), &acoustics.StaticProvider{In: loudInputs()}, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h, err := eng.Trigger("steady_loop", 0, 0, 0)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	_ = h

	// Let the render loop produce a few real-time blocks.
	time.Sleep(50 * time.Millisecond)

	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := eng.Stats()
	if st.Blocks == 0 {
		t.Error("Blocks: got 0, want > 0")
	}
	if st.Session == "" {
		t.Error("Session: got empty string")
	}
	if st.Voices.TotalSlots != cfg.Voices.TotalSlots {
		t.Errorf("Voices.TotalSlots: got %d, want %d", st.Voices.TotalSlots, cfg.Voices.TotalSlots)
	}
	if st.Sink == nil {
		t.Fatal("Sink stats: got nil")
	}
	if st.Sink.BlocksWritten == 0 {
		t.Error("Sink.BlocksWritten: got 0, want > 0")
	}
}
