// Package sampling decides which frames of a camera stream are persisted.
//
// A frame is kept when the cooldown since the last kept frame has elapsed
// (forced sample) or when a lottery weighted by the number of detected persons
// is won. Policies are immutable; reconfiguration swaps the whole Policy.
package sampling

import (
	"math/rand"
	"sync/atomic"
	"time"
)

const (
	// lotteryNumerator spreads roughly 409600 lottery samples per person over
	// the configured time span at 30 frames per second.
	lotteryNumerator = 409600.0
	secondsPerYear   = 365 * 24 * 3600
	framesPerSecond  = 30

	MinTimeSpanYears = 0.1
)

// Reason tells why a frame was sampled.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonForced  Reason = "forced"
	ReasonLottery Reason = "lottery"
)

// Decision is the outcome of one sampling call.
type Decision struct {
	Sample bool
	Reason Reason
}

// Policy is an immutable sampling rule derived from a time span and a cooldown.
type Policy struct {
	timeSpanYears        float64
	cooldownHours        float64
	cooldown             time.Duration
	probabilityPerPerson float64
}

// NewPolicy builds a Policy. Time spans below MinTimeSpanYears and negative
// cooldowns are clamped.
func NewPolicy(timeSpanYears, cooldownHours float64) *Policy {
	timeSpanYears = max(timeSpanYears, MinTimeSpanYears)
	cooldownHours = max(cooldownHours, 0)

	return &Policy{
		timeSpanYears:        timeSpanYears,
		cooldownHours:        cooldownHours,
		cooldown:             time.Duration(cooldownHours * float64(time.Hour)),
		probabilityPerPerson: lotteryNumerator / (timeSpanYears * secondsPerYear * framesPerSecond),
	}
}

// TimeSpanYears returns the clamped time span.
func (p *Policy) TimeSpanYears() float64 { return p.timeSpanYears }

// CooldownHours returns the clamped cooldown.
func (p *Policy) CooldownHours() float64 { return p.cooldownHours }

// Cooldown returns the cooldown as a duration.
func (p *Policy) Cooldown() time.Duration { return p.cooldown }

// ProbabilityPerPerson returns the lottery weight of one detected person.
func (p *Policy) ProbabilityPerPerson() float64 { return p.probabilityPerPerson }

// ShouldSample decides for a frame arriving now with the given person count.
func (p *Policy) ShouldSample(state *State, persons int) bool {
	return p.Decide(state, persons, time.Now(), rand.Float64()).Sample
}

// Decide runs the sampling algorithm with an explicit clock and lottery draw
// r in [0,1). It updates state when a sample is taken.
func (p *Policy) Decide(state *State, persons int, now time.Time, r float64) Decision {
	// A clock before the last sample (the noon anchor in the morning) counts as
	// zero elapsed, so a zero cooldown still forces every frame.
	if max(now.Sub(state.lastSample), 0) >= p.cooldown {
		state.force.Store(true)
	}

	notSampleProb := max(0, 1-p.probabilityPerPerson*float64(max(persons, 0)))

	if state.force.Swap(false) {
		state.lastSample = now
		return Decision{Sample: true, Reason: ReasonForced}
	}

	if r >= notSampleProb {
		state.lastSample = now
		return Decision{Sample: true, Reason: ReasonLottery}
	}

	return Decision{}
}

// State is the per-camera sampling state. The last sample time belongs to the
// goroutine delivering frames; only the force flag may be set from elsewhere.
type State struct {
	lastSample time.Time
	force      atomic.Bool
}

// NewState returns a state whose last sample is noon of the day of now.
func NewState(now time.Time) *State {
	y, m, d := now.Date()
	return &State{lastSample: time.Date(y, m, d, 12, 0, 0, 0, now.Location())}
}

// Force marks the next decision as a forced sample. Concurrent calls before
// that decision collapse into one sample.
func (s *State) Force() {
	s.force.Store(true)
}

// Forced reports whether a forced sample is pending.
func (s *State) Forced() bool {
	return s.force.Load()
}

// LastSample returns the time of the last sample. It must only be called from
// the goroutine that calls Decide.
func (s *State) LastSample() time.Time {
	return s.lastSample
}
