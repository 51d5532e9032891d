package loadgen

import (
	"math"
	"time"

	"github.com/hexbench/hexbench/internal/config"
)

// ratePlan describes how the aggregate RPS budget changes over the run.
// A nil plan means a flat budget for the whole duration.
type ratePlan struct {
	segments []rateSegment
}

type rateSegment struct {
	start    time.Duration
	duration time.Duration
	fromRate float64
	toRate   float64
}

// compileProfilePlan maps a load profile onto rate segments. Profiles are
// expressed in virtual users; the user ratios scale the configured RPS cap.
func compileProfilePlan(cfg *config.Config, maxRate float64) *ratePlan {
	params := cfg.ProfileParams

	switch cfg.ProfileOrDefault() {
	case config.ProfileRampUp:
		initial := 0.0
		if params.TargetUsers > 0 {
			initial = float64(params.InitialUsers) / float64(params.TargetUsers)
		}
		hold := params.HoldDuration
		if hold <= 0 {
			hold = cfg.Duration - params.RampDuration
		}
		plan := &ratePlan{}
		plan.appendSegment(rateSegment{
			duration: params.RampDuration,
			fromRate: initial * maxRate,
			toRate:   maxRate,
		})
		if hold > 0 {
			plan.appendSegment(rateSegment{duration: hold, fromRate: maxRate, toRate: maxRate})
		}
		return plan

	case config.ProfileSpike:
		baseline := 0.0
		if params.SpikeUsers > 0 {
			baseline = float64(params.BaselineUsers) / float64(params.SpikeUsers)
		}
		baselineRate := baseline * maxRate
		lead := params.BaselineDuration
		if lead <= 0 {
			lead = (cfg.Duration - params.SpikeDuration) / 2
		}
		plan := &ratePlan{}
		if lead > 0 {
			plan.appendSegment(rateSegment{duration: lead, fromRate: baselineRate, toRate: baselineRate})
		}
		plan.appendSegment(rateSegment{
			duration: params.SpikeDuration,
			fromRate: maxRate,
			toRate:   maxRate,
		})
		tail := cfg.Duration - lead - params.SpikeDuration
		if tail > 0 {
			plan.appendSegment(rateSegment{duration: tail, fromRate: baselineRate, toRate: baselineRate})
		}
		return plan

	default:
		// steady_state and soak hold the cap flat; no controller needed.
		return nil
	}
}

func (p *ratePlan) appendSegment(seg rateSegment) {
	if seg.duration <= 0 {
		return
	}
	var offset time.Duration
	if n := len(p.segments); n > 0 {
		last := p.segments[n-1]
		offset = last.start + last.duration
	}
	seg.start = offset
	p.segments = append(p.segments, seg)
}

// rateAt returns the budget at the given elapsed time, linearly
// interpolating inside ramp segments. ok is false past the end of the plan.
func (p *ratePlan) rateAt(elapsed time.Duration) (float64, bool) {
	if p == nil || len(p.segments) == 0 {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		end := seg.start + seg.duration
		if elapsed < seg.start || elapsed >= end {
			continue
		}
		if seg.fromRate == seg.toRate {
			return seg.fromRate, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		progress = math.Min(math.Max(progress, 0), 1)
		return seg.fromRate + (seg.toRate-seg.fromRate)*progress, true
	}
	return 0, false
}
