package acoustics

// BandCount is the number of octave bands in the engine-wide band model.
const BandCount = 8

// Inputs holds the per-emitter acoustic data consumed by priority scoring.
// All factors are normalized to [0,1] by the producing simulation.
type Inputs struct {
	// DistanceFactor is 1 at the listener and falls toward 0 at the
	// audible horizon.
	DistanceFactor float64

	// Audibility estimates how loud the source is at the listener,
	// independent of occlusion.
	Audibility float64

	// OcclusionPerBand is the per-octave-band occlusion amount,
	// 0 = unoccluded, 1 = fully occluded.
	OcclusionPerBand [BandCount]float64

	// RoomID identifies the acoustic room containing the emitter,
	// 0 when unknown.
	RoomID uint32

	// PortalCount is the number of portals on the path to the listener.
	PortalCount int
}

// MeanOcclusion returns the average occlusion across all bands.
func (in *Inputs) MeanOcclusion() float64 {
	var sum float64
	for _, o := range in.OcclusionPerBand {
		sum += o
	}
	return sum / BandCount
}

// Provider supplies acoustic inputs for an emitter position. Implementations
// are expected to be safe for concurrent use; emitter lifecycle tasks call
// Lookup on every bookkeeping tick.
type Provider interface {
	Lookup(emitterID uint64, x, y, z float64) Inputs
}

// StaticProvider returns the same inputs for every lookup. It is the zero
// simulation used by tests and by the demo binary.
type StaticProvider struct {
	In Inputs
}

// Lookup implements Provider.
func (p *StaticProvider) Lookup(uint64, float64, float64, float64) Inputs {
	return p.In
}
