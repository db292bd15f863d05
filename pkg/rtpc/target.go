// Package rtpc implements real-time parameter control: named, curve-shaped
// scalars that modulate emitter mix parameters.
package rtpc

import (
	"github.com/ljramones/dynamis-audio/pkg/emitter"
)

// Target is the closed set of modulation destinations. Each target has a
// fixed application rule; there is no dynamic dispatch on the apply path.
type Target uint8

const (
	// TargetMasterGain multiplies the master gain by the shaped value.
	TargetMasterGain Target = iota
	// TargetPitchMultiplier maps the shaped value onto [0.5, 2.0],
	// unity at 0.5.
	TargetPitchMultiplier
	// TargetReverbWetGain multiplies the reverb send by the shaped value.
	TargetReverbWetGain
	// TargetOcclusionScale multiplies every occlusion band by
	// (1 - shaped), so 1.0 fully clears occlusion.
	TargetOcclusionScale
)

// String returns the target name.
func (t Target) String() string {
	switch t {
	case TargetMasterGain:
		return "master_gain"
	case TargetPitchMultiplier:
		return "pitch_multiplier"
	case TargetReverbWetGain:
		return "reverb_wet_gain"
	case TargetOcclusionScale:
		return "occlusion_scale"
	default:
		return "unknown"
	}
}

// Apply mutates exactly one field of p according to the target's rule.
// shaped must already be curve-shaped into [0,1]. Allocation-free and
// branch-deterministic; unknown targets are ignored.
func Apply(p *emitter.Params, t Target, shaped float64) {
	switch t {
	case TargetMasterGain:
		p.MasterGain *= shaped
	case TargetPitchMultiplier:
		p.PitchMultiplier = 0.5 + shaped*1.5
	case TargetReverbWetGain:
		p.ReverbWetGain *= shaped
	case TargetOcclusionScale:
		for i := range p.Occlusion {
			p.Occlusion[i] *= 1 - shaped
		}
	}
}
