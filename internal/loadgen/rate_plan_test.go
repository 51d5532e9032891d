package loadgen

import (
	"testing"
	"time"

	"github.com/hexbench/hexbench/internal/config"
)

func TestSteadyStateHasNoPlan(t *testing.T) {
	cfg := &config.Config{Duration: time.Minute, Profile: config.ProfileSteadyState}
	if plan := compileProfilePlan(cfg, 100); plan != nil {
		t.Fatal("steady_state should hold the cap flat without a plan")
	}
	cfg.Profile = config.ProfileSoak
	if plan := compileProfilePlan(cfg, 100); plan != nil {
		t.Fatal("soak should hold the cap flat without a plan")
	}
}

func TestRampPlanInterpolates(t *testing.T) {
	cfg := &config.Config{
		Duration: 100 * time.Second,
		Profile:  config.ProfileRampUp,
		ProfileParams: config.ProfileParams{
			InitialUsers: 10,
			TargetUsers:  100,
			RampDuration: 60 * time.Second,
			HoldDuration: 40 * time.Second,
		},
	}
	plan := compileProfilePlan(cfg, 200)
	if plan == nil {
		t.Fatal("expected a ramp plan")
	}

	start, ok := plan.rateAt(0)
	if !ok || start != 20 { // 10/100 of 200
		t.Fatalf("rate at 0 = %v ok=%v, want 20", start, ok)
	}

	mid, ok := plan.rateAt(30 * time.Second)
	if !ok || mid <= start || mid >= 200 {
		t.Fatalf("rate mid-ramp = %v, want between %v and 200", mid, start)
	}

	hold, ok := plan.rateAt(80 * time.Second)
	if !ok || hold != 200 {
		t.Fatalf("rate during hold = %v ok=%v, want 200", hold, ok)
	}

	if _, ok := plan.rateAt(101 * time.Second); ok {
		t.Fatal("plan should end after hold")
	}
}

func TestSpikePlanSegments(t *testing.T) {
	cfg := &config.Config{
		Duration: 90 * time.Second,
		Profile:  config.ProfileSpike,
		ProfileParams: config.ProfileParams{
			BaselineUsers:    10,
			SpikeUsers:       100,
			SpikeDuration:    30 * time.Second,
			BaselineDuration: 30 * time.Second,
		},
	}
	plan := compileProfilePlan(cfg, 100)
	if plan == nil {
		t.Fatal("expected a spike plan")
	}

	baseline, ok := plan.rateAt(10 * time.Second)
	if !ok || baseline != 10 {
		t.Fatalf("baseline rate = %v ok=%v, want 10", baseline, ok)
	}

	spike, ok := plan.rateAt(45 * time.Second)
	if !ok || spike != 100 {
		t.Fatalf("spike rate = %v ok=%v, want 100", spike, ok)
	}

	tail, ok := plan.rateAt(75 * time.Second)
	if !ok || tail != 10 {
		t.Fatalf("tail rate = %v ok=%v, want 10", tail, ok)
	}
}

func TestSpikePlanDefaultsBaselineLead(t *testing.T) {
	cfg := &config.Config{
		Duration: 60 * time.Second,
		Profile:  config.ProfileSpike,
		ProfileParams: config.ProfileParams{
			SpikeUsers:    100,
			BaselineUsers: 50,
			SpikeDuration: 20 * time.Second,
		},
	}
	plan := compileProfilePlan(cfg, 100)
	// Lead defaults to half the non-spike time: 20s.
	rate, ok := plan.rateAt(5 * time.Second)
	if !ok || rate != 50 {
		t.Fatalf("lead rate = %v ok=%v, want 50", rate, ok)
	}
	rate, ok = plan.rateAt(25 * time.Second)
	if !ok || rate != 100 {
		t.Fatalf("spike rate = %v ok=%v, want 100", rate, ok)
	}
}

func TestRateAtNilPlan(t *testing.T) {
	var plan *ratePlan
	if _, ok := plan.rateAt(time.Second); ok {
		t.Fatal("nil plan must report no rate")
	}
}
