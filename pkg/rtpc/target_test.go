package rtpc

import (
	"testing"

	"github.com/ljramones/dynamis-audio/pkg/emitter"
)

func TestApplyMasterGain(t *testing.T) {
	p := emitter.DefaultParams()
	p.MasterGain = 0.8
	Apply(&p, TargetMasterGain, 0.5)
	if !floatEquals(p.MasterGain, 0.4) {
		t.Errorf("MasterGain: got %v, want 0.4", p.MasterGain)
	}
	// Other fields untouched.
	if p.PitchMultiplier != 1.0 {
		t.Errorf("PitchMultiplier: got %v, want 1.0", p.PitchMultiplier)
	}
}

func TestApplyPitchMultiplier(t *testing.T) {
	tests := []struct {
		shaped float64
		want   float64
	}{
		{0, 0.5},
		{1.0 / 3.0, 1.0},
		{0.5, 1.25},
		{1, 2.0},
	}
	for _, tt := range tests {
		p := emitter.DefaultParams()
		Apply(&p, TargetPitchMultiplier, tt.shaped)
		if !floatEquals(p.PitchMultiplier, tt.want) {
			t.Errorf("shaped %v: PitchMultiplier got %v, want %v", tt.shaped, p.PitchMultiplier, tt.want)
		}
	}
}

// Pitch is a direct mapping, not a multiplier: applying the same shaped
// value twice gives the same result as once.
func TestApplyPitchIdempotent(t *testing.T) {
	p := emitter.DefaultParams()
	Apply(&p, TargetPitchMultiplier, 0.7)
	once := p.PitchMultiplier
	Apply(&p, TargetPitchMultiplier, 0.7)
	if p.PitchMultiplier != once {
		t.Errorf("second apply changed pitch: got %v, want %v", p.PitchMultiplier, once)
	}
}

func TestApplyReverbWetGain(t *testing.T) {
	p := emitter.DefaultParams()
	p.ReverbWetGain = 0.6
	Apply(&p, TargetReverbWetGain, 0.5)
	if !floatEquals(p.ReverbWetGain, 0.3) {
		t.Errorf("ReverbWetGain: got %v, want 0.3", p.ReverbWetGain)
	}
}

func TestApplyOcclusionScale(t *testing.T) {
	p := emitter.DefaultParams()
	for i := range p.Occlusion {
		p.Occlusion[i] = 0.8
	}

	// shaped 1.0 fully clears occlusion.
	Apply(&p, TargetOcclusionScale, 1.0)
	for i, o := range p.Occlusion {
		if !floatEquals(o, 0) {
			t.Errorf("band %d: got %v, want 0", i, o)
		}
	}

	// shaped 0 leaves occlusion untouched.
	for i := range p.Occlusion {
		p.Occlusion[i] = 0.8
	}
	Apply(&p, TargetOcclusionScale, 0)
	for i, o := range p.Occlusion {
		if !floatEquals(o, 0.8) {
			t.Errorf("band %d: got %v, want 0.8", i, o)
		}
	}

	// shaped 0.5 halves every band.
	Apply(&p, TargetOcclusionScale, 0.5)
	for i, o := range p.Occlusion {
		if !floatEquals(o, 0.4) {
			t.Errorf("band %d: got %v, want 0.4", i, o)
		}
	}
}

func TestApplyUnknownTargetIgnored(t *testing.T) {
	p := emitter.DefaultParams()
	want := p
	Apply(&p, Target(200), 0.5)
	if p != want {
		t.Errorf("unknown target mutated params: got %+v, want %+v", p, want)
	}
}

// Applications to distinct fields commute; applications to the same
// direct-mapped field do not.
func TestApplyOrderSensitivity(t *testing.T) {
	ab := emitter.DefaultParams()
	ab.MasterGain, ab.ReverbWetGain = 0.8, 0.6
	Apply(&ab, TargetMasterGain, 0.5)
	Apply(&ab, TargetReverbWetGain, 0.3)

	ba := emitter.DefaultParams()
	ba.MasterGain, ba.ReverbWetGain = 0.8, 0.6
	Apply(&ba, TargetReverbWetGain, 0.3)
	Apply(&ba, TargetMasterGain, 0.5)

	if ab != ba {
		t.Errorf("distinct targets should commute: %+v vs %+v", ab, ba)
	}

	p1 := emitter.DefaultParams()
	Apply(&p1, TargetPitchMultiplier, 0.2)
	Apply(&p1, TargetPitchMultiplier, 0.9)

	p2 := emitter.DefaultParams()
	Apply(&p2, TargetPitchMultiplier, 0.9)
	Apply(&p2, TargetPitchMultiplier, 0.2)

	if p1.PitchMultiplier == p2.PitchMultiplier {
		t.Error("same direct-mapped target should be order-sensitive")
	}
}

func TestApplyNoAlloc(t *testing.T) {
	p := emitter.DefaultParams()
	allocs := testing.AllocsPerRun(1000, func() {
		Apply(&p, TargetMasterGain, 0.99)
		Apply(&p, TargetOcclusionScale, 0.01)
	})
	if allocs != 0 {
		t.Errorf("allocations per apply: got %v, want 0", allocs)
	}
}

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{TargetMasterGain, "master_gain"},
		{TargetPitchMultiplier, "pitch_multiplier"},
		{TargetReverbWetGain, "reverb_wet_gain"},
		{TargetOcclusionScale, "occlusion_scale"},
		{Target(200), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("Target(%d).String: got %q, want %q", tt.target, got, tt.want)
		}
	}
}
