package sampling

import (
	"math"
	"sync"
	"testing"
	"time"
)

var base = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

func TestNewPolicy_Derivation(t *testing.T) {
	p := NewPolicy(10, 24)

	if p.Cooldown() != 86400*time.Second {
		t.Errorf("Expected cooldown 86400s, got %v", p.Cooldown())
	}

	want := 409600.0 / (10 * 365 * 24 * 3600 * 30)
	if math.Abs(p.ProbabilityPerPerson()-want) > 1e-15 {
		t.Errorf("Expected probability %g, got %g", want, p.ProbabilityPerPerson())
	}
	// 409600 / 9.4608e9
	if math.Abs(p.ProbabilityPerPerson()-4.3295e-5) > 0.001e-5 {
		t.Errorf("Expected probability ~4.33e-5, got %g", p.ProbabilityPerPerson())
	}
}

func TestNewPolicy_Clamps(t *testing.T) {
	tests := []struct {
		name         string
		years, hours float64
		wantYears    float64
		wantCooldown time.Duration
	}{
		{"zero years", 0, 1, MinTimeSpanYears, time.Hour},
		{"negative years", -5, 1, MinTimeSpanYears, time.Hour},
		{"negative cooldown", 1, -3, 1, 0},
		{"in range", 2, 0.5, 2, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.years, tt.hours)
			if p.TimeSpanYears() != tt.wantYears {
				t.Errorf("Expected years %v, got %v", tt.wantYears, p.TimeSpanYears())
			}
			if p.Cooldown() != tt.wantCooldown {
				t.Errorf("Expected cooldown %v, got %v", tt.wantCooldown, p.Cooldown())
			}
			if math.IsInf(p.ProbabilityPerPerson(), 0) || p.ProbabilityPerPerson() <= 0 {
				t.Errorf("Probability must be finite and positive, got %v", p.ProbabilityPerPerson())
			}
		})
	}
}

func TestNewState_AnchorsAtNoon(t *testing.T) {
	s := NewState(time.Date(2025, 3, 2, 8, 15, 30, 0, time.UTC))
	want := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	if !s.LastSample().Equal(want) {
		t.Errorf("Expected %v, got %v", want, s.LastSample())
	}
	if s.Forced() {
		t.Error("New state must not be forced")
	}
}

func TestDecide_ForceWinsAndClears(t *testing.T) {
	p := NewPolicy(10, 24)
	s := NewState(base)
	s.Force()

	now := base.Add(time.Minute)
	// With no persons a draw of 0 never wins the lottery.
	d := p.Decide(s, 0, now, 0)
	if !d.Sample || d.Reason != ReasonForced {
		t.Fatalf("Expected forced sample, got %+v", d)
	}
	if s.Forced() {
		t.Error("Force flag must be cleared after use")
	}
	if !s.LastSample().Equal(now) {
		t.Errorf("Expected last sample %v, got %v", now, s.LastSample())
	}

	if d := p.Decide(s, 0, now.Add(time.Second), 0.5); d.Sample {
		t.Errorf("Second decision must not be forced, got %+v", d)
	}
}

func TestDecide_CooldownElapsedForces(t *testing.T) {
	p := NewPolicy(10, 24)
	s := NewState(base)

	now := s.LastSample().Add(24 * time.Hour)
	d := p.Decide(s, 0, now, 0.999)
	if !d.Sample || d.Reason != ReasonForced {
		t.Fatalf("Expected forced sample after cooldown, got %+v", d)
	}
	if !s.LastSample().Equal(now) {
		t.Errorf("Timer not reset, got %v", s.LastSample())
	}
}

func TestDecide_NoPersonsNeverSamplesWithinCooldown(t *testing.T) {
	p := NewPolicy(10, 24)
	s := NewState(base)
	last := s.LastSample()

	for i := 0; i < 1000; i++ {
		r := float64(i) / 1000
		now := last.Add(time.Duration(i) * time.Minute)
		if d := p.Decide(s, 0, now, r); d.Sample {
			t.Fatalf("Unexpected sample at r=%v: %+v", r, d)
		}
	}
	if !s.LastSample().Equal(last) {
		t.Error("State changed without a sample")
	}
}

func TestDecide_Lottery(t *testing.T) {
	p := NewPolicy(0.1, 24)
	s := NewState(base)
	now := s.LastSample().Add(time.Hour)

	notSample := 1 - p.ProbabilityPerPerson()*5
	if d := p.Decide(s, 5, now, notSample-1e-9); d.Sample {
		t.Errorf("Draw below threshold must not sample, got %+v", d)
	}
	d := p.Decide(s, 5, now, notSample)
	if !d.Sample || d.Reason != ReasonLottery {
		t.Fatalf("Draw at threshold must sample, got %+v", d)
	}
	if !s.LastSample().Equal(now) {
		t.Error("Lottery sample must reset the timer")
	}
}

func TestDecide_HugeCrowdAlwaysSamples(t *testing.T) {
	p := NewPolicy(0.1, 24)
	s := NewState(base)
	now := s.LastSample().Add(time.Minute)

	if d := p.Decide(s, 1_000_000, now, 0); !d.Sample {
		t.Errorf("Non-sample probability floors at 0, expected a sample, got %+v", d)
	}
}

func TestDecide_NegativePersonsTreatedAsZero(t *testing.T) {
	p := NewPolicy(0.1, 24)
	s := NewState(base)
	now := s.LastSample().Add(time.Minute)

	if d := p.Decide(s, -10, now, 0.999999); d.Sample {
		t.Errorf("Negative count must behave like zero, got %+v", d)
	}
}

func TestDecide_ZeroCooldownForcesEveryFrame(t *testing.T) {
	p := NewPolicy(10, 0)
	morning := time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)
	s := NewState(morning)

	now := morning
	for i := 0; i < 20; i++ {
		d := p.Decide(s, i%3, now, 0)
		if !d.Sample || d.Reason != ReasonForced {
			t.Fatalf("Frame %d: expected forced sample, got %+v", i, d)
		}
		now = now.Add(33 * time.Millisecond)
	}
}

func TestShouldSample_ConcurrentForcesYieldOneSample(t *testing.T) {
	p := NewPolicy(10, 24)
	s := NewState(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Force()
		}()
	}
	wg.Wait()

	samples := 0
	for i := 0; i < 3; i++ {
		if p.ShouldSample(s, 0) {
			samples++
		}
	}
	if samples != 1 {
		t.Errorf("Expected exactly one sample, got %d", samples)
	}
}
