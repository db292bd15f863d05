// Package voices implements the voice budget scheduler: the arbitration pass
// that decides, on a fixed cadence, which tracked emitters occupy the fixed
// set of physical DSP voice slots.
package voices

import (
	"sort"
	"sync"
	"time"

	"github.com/ljramones/dynamis-audio/internal/log"
	"github.com/ljramones/dynamis-audio/pkg/emitter"
)

// ScoreFunc computes the priority score for one emitter. The default mixes
// the weighted acoustic factors; tests substitute their own.
type ScoreFunc func(*emitter.Emitter) float64

// Stats is a point-in-time snapshot of scheduler accounting.
type Stats struct {
	TotalSlots      int    `json:"total_slots"`
	ReservedSlots   int    `json:"reserved_slots"`
	Physical        int    `json:"physical"`
	Fading          int    `json:"fading"`
	Virtual         int    `json:"virtual"`
	Tracked         int    `json:"tracked"`
	NonCriticalHeld int    `json:"non_critical_held"`
	Evaluations     uint64 `json:"evaluations"`
	Promotions      uint64 `json:"promotions"`
	Demotions       uint64 `json:"demotions"`
	Culls           uint64 `json:"culls"`
}

// Scheduler owns the physical slot pool and the promotion/demotion
// arbitration over all tracked emitters. Registration is safe from any
// goroutine; Evaluate runs from a single owner context on a fixed cadence.
type Scheduler struct {
	cfg     Config
	scoreFn ScoreFunc
	reclaim func(uint64)

	mu      sync.Mutex
	tracked map[uint64]*emitter.Emitter
	slots   []uint64        // slot index -> emitter id, 0 when free
	fades   map[uint64]bool // emitters whose held slot is counted as fading

	physical        int // occupied, not fading
	fading          int // demoted, slot still counted against budget
	nonCriticalHeld int // slots held by non-critical emitters, fading included

	evaluations uint64
	promotions  uint64
	demotions   uint64
	culls       uint64

	// scratch slices reused across Evaluate calls
	scorable   []*emitter.Emitter
	promotable []*emitter.Emitter
	physicals  []*emitter.Emitter
}

// NewScheduler builds a scheduler from a validated config.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:     cfg,
		tracked: make(map[uint64]*emitter.Emitter),
		slots:   make([]uint64, cfg.TotalSlots),
		fades:   make(map[uint64]bool),
	}
	s.scoreFn = s.defaultScore
	return s, nil
}

// Config returns the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// SetScoreFunc replaces the scoring function. Call before the first
// Evaluate; the scheduler does not synchronize this field afterwards.
func (s *Scheduler) SetScoreFunc(fn ScoreFunc) { s.scoreFn = fn }

// SetReclaimFunc registers a callback fired when an emitter completes its
// release tail and leaves the tracked set. Call before the first Evaluate.
func (s *Scheduler) SetReclaimFunc(fn func(uint64)) { s.reclaim = fn }

func (s *Scheduler) reclaimLocked(id uint64) {
	if s.reclaim != nil {
		s.reclaim(id)
	}
}

// defaultScore is the weighted factor mix with the occlusion penalty
// subtracted after the sum.
func (s *Scheduler) defaultScore(e *emitter.Emitter) float64 {
	in := e.AcousticInputs()
	w := s.cfg.Weights
	score := w.Distance*in.DistanceFactor +
		w.Importance*e.Importance().Factor() +
		w.Audibility*in.Audibility +
		w.Velocity*e.VelocityFactor()
	return score - s.cfg.OcclusionPenalty*in.MeanOcclusion()
}

// Register adds an emitter to the tracked set.
func (s *Scheduler) Register(e *emitter.Emitter) {
	s.mu.Lock()
	s.tracked[e.ID()] = e
	s.mu.Unlock()
}

// Unregister removes an emitter, freeing any slot it still holds.
func (s *Scheduler) Unregister(id uint64) {
	s.mu.Lock()
	if e, ok := s.tracked[id]; ok {
		s.freeSlotLocked(e)
		delete(s.tracked, id)
	}
	s.mu.Unlock()
}

// Tracked returns the number of tracked emitters.
func (s *Scheduler) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// Settle places a freshly spawned emitter: physical when its initial score
// clears the promote threshold and the budget allows, virtual otherwise.
// Budget unavailability is not an error; the emitter is simply tracked
// silent.
func (s *Scheduler) Settle(e *emitter.Emitter, block uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := s.scoreFn(e)
	e.SetScore(score, block)
	// Initial placement compares against the bare promote threshold; the
	// epsilon dead zone suppresses jitter on settled voices, it is not part
	// of the first placement decision.
	if score >= s.cfg.PromoteThreshold && s.canClaimLocked(e) {
		if e.CompareAndTransition(emitter.StateSpawning, emitter.StatePhysical) {
			s.assignSlotLocked(e)
			s.promotions++
			return
		}
	}
	// A destroy racing the spawn leaves the emitter in Releasing; the
	// edge-checked transition keeps it there.
	e.CompareAndTransition(emitter.StateSpawning, emitter.StateVirtual)
}

// Evaluate runs one arbitration pass. It must be called from a single owner
// context (the render thread at block boundaries, or a dedicated scheduler
// task); over-budget demotions complete before slot assignments are stable
// for this tick.
func (s *Scheduler) Evaluate(block uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluations++
	s.completeFadesLocked(now)
	s.rescoreLocked(block)
	s.demoteByScoreLocked(now)
	s.promoteLocked(now)
}

// completeFadesLocked finishes release tails and demotion fades whose
// deadline has passed, returning their slots to the pool.
func (s *Scheduler) completeFadesLocked(now time.Time) {
	for id, e := range s.tracked {
		if e.State() != emitter.StateReleasing {
			continue
		}
		deadline := e.FadeDeadline()
		if deadline == 0 {
			// Destroyed without a prior demotion decision; the release
			// tail starts on this tick. A slot held at this point moves
			// from physical to fading accounting.
			e.SetFadeDeadline(now.Add(s.cfg.FadeDuration).UnixNano())
			if e.Slot() != emitter.NoSlot && !s.fades[id] {
				s.physical--
				s.fading++
				s.fades[id] = true
			}
			continue
		}
		if now.UnixNano() < deadline {
			continue
		}
		s.freeSlotLocked(e)
		e.SetFadeDeadline(0)
		if e.FadesToVirtual() && e.CompareAndTransition(emitter.StateReleasing, emitter.StateVirtual) {
			e.ClearDemotion()
			continue
		}
		e.CompareAndTransition(emitter.StateReleasing, emitter.StateInactive)
		delete(s.tracked, id)
		s.reclaimLocked(id)
	}
}

// rescoreLocked recomputes priority scores for every live tracked emitter.
func (s *Scheduler) rescoreLocked(block uint64) {
	s.scorable = s.scorable[:0]
	for _, e := range s.tracked {
		switch e.State() {
		case emitter.StateVirtual, emitter.StatePhysical:
			s.scorable = append(s.scorable, e)
		}
	}
	for _, e := range s.scorable {
		e.SetScore(s.scoreFn(e), block)
	}
}

// demoteByScoreLocked demotes physical voices whose score fell below the
// demote threshold, beyond the epsilon dead zone.
func (s *Scheduler) demoteByScoreLocked(now time.Time) {
	limit := s.cfg.DemoteThreshold - s.cfg.ScoreEpsilon
	for _, e := range s.tracked {
		if e.State() != emitter.StatePhysical {
			continue
		}
		if e.Score() < limit {
			s.demoteLocked(e, now)
		}
	}
}

// promoteLocked promotes eligible virtual emitters in deterministic order,
// demoting the lowest-scoring physicals under budget pressure. A demoted
// slot stays counted against the budget until its fade completes, so a
// pressured promotion lands on a later tick, never over-allocating.
func (s *Scheduler) promoteLocked(now time.Time) {
	limit := s.cfg.PromoteThreshold + s.cfg.ScoreEpsilon

	s.promotable = s.promotable[:0]
	for _, e := range s.tracked {
		if e.State() == emitter.StateVirtual && e.Score() >= limit {
			s.promotable = append(s.promotable, e)
		}
	}
	if len(s.promotable) == 0 {
		return
	}
	// Primary key score descending, tie-break importance descending, then
	// id ascending: stable, reproducible ordering.
	sort.Slice(s.promotable, func(i, j int) bool {
		a, b := s.promotable[i], s.promotable[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if a.Importance() != b.Importance() {
			return a.Importance() > b.Importance()
		}
		return a.ID() < b.ID()
	})

	for _, cand := range s.promotable {
		if s.canClaimLocked(cand) {
			if cand.CompareAndTransition(emitter.StateVirtual, emitter.StatePhysical) {
				s.assignSlotLocked(cand)
				s.promotions++
			}
			continue
		}
		// Budget pressure: fade out the weakest physical so the slot
		// frees up for this candidate on a later tick. Staying virtual
		// meanwhile is the designed overflow behavior, not an error.
		victim := s.victimLocked(cand)
		if victim != nil {
			s.demoteLocked(victim, now)
		}
	}
}

// victimLocked picks the lowest-scoring physical voice strictly weaker than
// the candidate (beyond the epsilon dead zone). Score ascending, tie-break
// importance descending, then id ascending.
func (s *Scheduler) victimLocked(cand *emitter.Emitter) *emitter.Emitter {
	s.physicals = s.physicals[:0]
	for _, e := range s.tracked {
		if e.State() == emitter.StatePhysical {
			s.physicals = append(s.physicals, e)
		}
	}
	sort.Slice(s.physicals, func(i, j int) bool {
		a, b := s.physicals[i], s.physicals[j]
		if a.Score() != b.Score() {
			return a.Score() < b.Score()
		}
		if a.Importance() != b.Importance() {
			return a.Importance() > b.Importance()
		}
		return a.ID() < b.ID()
	})
	for _, v := range s.physicals {
		if v.Score()+s.cfg.ScoreEpsilon < cand.Score() {
			return v
		}
	}
	return nil
}

// canClaimLocked checks the budget and the critical reserve: non-critical
// emitters may never push non-critical holdings past the unreserved pool.
func (s *Scheduler) canClaimLocked(e *emitter.Emitter) bool {
	if s.physical+s.fading >= s.cfg.TotalSlots {
		return false
	}
	if e.Importance() != emitter.ImportanceCritical {
		return s.nonCriticalHeld < s.cfg.TotalSlots-s.cfg.ReservedCritical
	}
	return true
}

// assignSlotLocked hands a free slot to e. The caller has already verified
// capacity via canClaimLocked.
func (s *Scheduler) assignSlotLocked(e *emitter.Emitter) {
	for i, id := range s.slots {
		if id == 0 {
			s.slots[i] = e.ID()
			e.SetSlot(int32(i))
			s.physical++
			if e.Importance() != emitter.ImportanceCritical {
				s.nonCriticalHeld++
			}
			return
		}
	}
	// Accounting said a slot was free but none was found; this would be a
	// bookkeeping bug, keep the emitter virtual rather than corrupt state.
	log.Error("voice slot accounting mismatch", "emitter", e.ID())
	e.CompareAndTransition(emitter.StatePhysical, emitter.StateVirtual)
}

// demoteLocked moves a physical voice into its demotion fade. The slot stays
// held and counted until the fade deadline passes.
func (s *Scheduler) demoteLocked(e *emitter.Emitter, now time.Time) {
	if !e.CompareAndTransition(emitter.StatePhysical, emitter.StateReleasing) {
		return
	}
	e.MarkDemotion()
	e.SetFadeDeadline(now.Add(s.cfg.FadeDuration).UnixNano())
	s.physical--
	s.fading++
	s.fades[e.ID()] = true
	s.demotions++
}

// freeSlotLocked returns e's slot to the pool, fixing all counters. Safe to
// call for emitters that hold no slot.
func (s *Scheduler) freeSlotLocked(e *emitter.Emitter) {
	slot := e.Slot()
	if slot == emitter.NoSlot {
		return
	}
	s.slots[slot] = 0
	e.SetSlot(emitter.NoSlot)
	if s.fades[e.ID()] {
		s.fading--
		delete(s.fades, e.ID())
	} else {
		s.physical--
	}
	if e.Importance() != emitter.ImportanceCritical {
		s.nonCriticalHeld--
	}
}

// Cull immediately cuts a physical voice, bypassing the fade tail. Only the
// emergency path (device failure, shutdown) may use it, and only when the
// config allows; otherwise the demotion fade applies.
func (s *Scheduler) Cull(id uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tracked[id]
	if !ok {
		return
	}
	if !s.cfg.AllowEmergencyCull {
		if e.State() == emitter.StatePhysical {
			s.demoteLocked(e, now)
		}
		return
	}
	s.cullLocked(e)
	delete(s.tracked, id)
	s.reclaimLocked(id)
}

// CullAll cuts every physical voice at once (device teardown).
func (s *Scheduler) CullAll(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.tracked {
		if !s.cfg.AllowEmergencyCull {
			if e.State() == emitter.StatePhysical {
				s.demoteLocked(e, now)
			}
			continue
		}
		s.cullLocked(e)
		delete(s.tracked, id)
		s.reclaimLocked(id)
	}
}

func (s *Scheduler) cullLocked(e *emitter.Emitter) {
	st := e.State()
	s.freeSlotLocked(e)
	if st != emitter.StateReleasing {
		e.Destroy()
	}
	e.SetFadeDeadline(0)
	e.ClearDemotion()
	e.CompareAndTransition(emitter.StateReleasing, emitter.StateInactive)
	s.culls++
}

// PhysicalEmitters appends all emitters currently rendering (physical or in
// a demotion fade, which still owns its slot) to dst and returns it. The
// render thread passes a pre-allocated slice to keep the hot path
// allocation-free.
func (s *Scheduler) PhysicalEmitters(dst []*emitter.Emitter) []*emitter.Emitter {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.tracked {
		if e.Slot() != emitter.NoSlot {
			dst = append(dst, e)
		}
	}
	return dst
}

// Stats returns a snapshot of scheduler accounting.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	virtual := 0
	for _, e := range s.tracked {
		if e.State() == emitter.StateVirtual {
			virtual++
		}
	}
	return Stats{
		TotalSlots:      s.cfg.TotalSlots,
		ReservedSlots:   s.cfg.ReservedCritical,
		Physical:        s.physical,
		Fading:          s.fading,
		Virtual:         virtual,
		Tracked:         len(s.tracked),
		NonCriticalHeld: s.nonCriticalHeld,
		Evaluations:     s.evaluations,
		Promotions:      s.promotions,
		Demotions:       s.demotions,
		Culls:           s.culls,
	}
}
