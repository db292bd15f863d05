package voices

import (
	"fmt"
	"math"
	"time"
)

// weightEpsilon is the tolerance for the weights-sum-to-one invariant.
const weightEpsilon = 1e-6

// Weights are the priority score mix. The four weights must sum to 1.0;
// the occlusion penalty is subtracted after the weighted sum and is not part
// of the set.
type Weights struct {
	Distance   float64 `yaml:"distance" json:"distance"`
	Importance float64 `yaml:"importance" json:"importance"`
	Audibility float64 `yaml:"audibility" json:"audibility"`
	Velocity   float64 `yaml:"velocity" json:"velocity"`
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Distance + w.Importance + w.Audibility + w.Velocity
}

// Validate checks the sum-to-one invariant.
func (w Weights) Validate() error {
	if s := w.Sum(); math.Abs(s-1.0) > weightEpsilon {
		return fmt.Errorf("priority weights must sum to 1.0, got %v", s)
	}
	return nil
}

// Config holds the voice budget and arbitration tuning. Invalid combinations
// are fatal at startup; the scheduler refuses to be built from them.
type Config struct {
	// TotalSlots is the number of physical DSP voice slots.
	TotalSlots int `yaml:"total_slots" json:"total_slots"`

	// ReservedCritical slots are claimable only by critical-importance
	// emitters. Hard cap: at most a quarter of TotalSlots.
	ReservedCritical int `yaml:"reserved_critical" json:"reserved_critical"`

	// PromoteThreshold is the score above which a virtual emitter becomes
	// physical. Must exceed DemoteThreshold.
	PromoteThreshold float64 `yaml:"promote_threshold" json:"promote_threshold"`

	// DemoteThreshold is the score below which a physical voice is demoted.
	DemoteThreshold float64 `yaml:"demote_threshold" json:"demote_threshold"`

	// ScoreEpsilon is the dead zone around each threshold: a score within
	// epsilon of a threshold never triggers a transition.
	ScoreEpsilon float64 `yaml:"score_epsilon" json:"score_epsilon"`

	// FadeDuration is how long a demoted voice keeps its slot while the
	// audio fades out.
	FadeDuration time.Duration `yaml:"fade_duration" json:"fade_duration"`

	// CadenceBlocks is how many DSP blocks pass between arbitration runs.
	CadenceBlocks int `yaml:"cadence_blocks" json:"cadence_blocks"`

	// Weights mixes the normalized scoring factors.
	Weights Weights `yaml:"weights" json:"weights"`

	// OcclusionPenalty is subtracted from the weighted sum, scaled by the
	// emitter's mean occlusion.
	OcclusionPenalty float64 `yaml:"occlusion_penalty" json:"occlusion_penalty"`

	// AllowEmergencyCull permits the instant-cut path that bypasses the
	// demotion fade (device failure, shutdown).
	AllowEmergencyCull bool `yaml:"allow_emergency_cull" json:"allow_emergency_cull"`
}

// DefaultConfig returns the engine's stock arbitration tuning: 64 voices,
// 8 reserved, a 0.4..0.6 hysteresis band and a 12ms demotion fade.
func DefaultConfig() Config {
	return Config{
		TotalSlots:       64,
		ReservedCritical: 8,
		PromoteThreshold: 0.6,
		DemoteThreshold:  0.4,
		ScoreEpsilon:     0.01,
		FadeDuration:     12 * time.Millisecond,
		CadenceBlocks:    4,
		Weights: Weights{
			Distance:   0.35,
			Importance: 0.25,
			Audibility: 0.25,
			Velocity:   0.15,
		},
		OcclusionPenalty:   0.3,
		AllowEmergencyCull: true,
	}
}

// Validate checks every startup invariant. Any violation is a fatal
// configuration error, not a recoverable runtime condition.
func (c *Config) Validate() error {
	if c.TotalSlots <= 0 {
		return fmt.Errorf("total_slots must be positive, got %d", c.TotalSlots)
	}
	if c.ReservedCritical < 0 {
		return fmt.Errorf("reserved_critical must not be negative, got %d", c.ReservedCritical)
	}
	if c.ReservedCritical > c.TotalSlots/4 {
		return fmt.Errorf("reserved_critical %d exceeds a quarter of total_slots %d",
			c.ReservedCritical, c.TotalSlots)
	}
	if c.PromoteThreshold <= c.DemoteThreshold {
		return fmt.Errorf("promote_threshold %v must exceed demote_threshold %v",
			c.PromoteThreshold, c.DemoteThreshold)
	}
	if c.ScoreEpsilon < 0 {
		return fmt.Errorf("score_epsilon must not be negative, got %v", c.ScoreEpsilon)
	}
	if c.FadeDuration <= 0 {
		return fmt.Errorf("fade_duration must be positive, got %v", c.FadeDuration)
	}
	if c.CadenceBlocks < 1 {
		return fmt.Errorf("cadence_blocks must be at least 1, got %d", c.CadenceBlocks)
	}
	if c.OcclusionPenalty < 0 {
		return fmt.Errorf("occlusion_penalty must not be negative, got %v", c.OcclusionPenalty)
	}
	return c.Weights.Validate()
}
