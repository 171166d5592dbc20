// Package timeline computes the segment-time arithmetic that links
// consecutive rendered segments of a mix: where the outgoing track is cut,
// where the incoming track is delayed to, how much of it is carried before
// the next segment takes over, and how long the rendered file should be.
//
// Everything here is pure math over track durations. No I/O, no probing;
// callers measure durations first and log any returned warnings.
package timeline

import (
	"errors"
	"fmt"
	"math"
)

// Segment contract defaults. All values are seconds unless noted.
const (
	// DefaultCrossfade is the crossfade length used when the planner does
	// not supply one.
	DefaultCrossfade = 10.0

	// DefaultLeadIn is how much of the outgoing track plays inside the
	// segment before the crossfade begins.
	DefaultLeadIn = 12.0

	// DefaultTailBuffer is the tail of the incoming track withheld from
	// this segment so the next segment can carry its transition.
	DefaultTailBuffer = 20.0

	// DefaultOverlap is the intentional overlap with the next segment,
	// masking decoder boundary artifacts at the handoff.
	DefaultOverlap = 0.75

	// DefaultVoiceLead is how many seconds before the crossfade the voice
	// starts talking.
	DefaultVoiceLead = 5.0

	// MinCrossfade and CrossfadeMargin bound the crossfade length:
	// MinCrossfade <= X <= min(durationA, durationB) - CrossfadeMargin.
	MinCrossfade    = 0.05
	CrossfadeMargin = 0.05

	// MinTransitionStart is the earliest point in the outgoing track where
	// a crossfade normally begins. Shorter tracks may force it lower; that
	// is reported as a warning, not an error.
	MinTransitionStart = 20.0

	// MinBodyCoverage is the least amount of the incoming track a segment
	// should carry. Below this the track is carried whole and the next
	// segment deals with the short tail.
	MinBodyCoverage = 60.0

	// DuckLevel is the linear music gain while the voice is speaking.
	DuckLevel = 0.45

	// TargetLUFS is the integrated loudness both tracks are normalized to
	// before mixing.
	TargetLUFS = -14.0
)

// ErrNonPositiveDuration is returned when a track duration is zero or
// negative; such files cannot be planned.
var ErrNonPositiveDuration = errors.New("timeline: track duration must be positive")

// SteadyInput describes one steady-state segment: the tail of track A
// crossfading into the body of track B. Zero or negative parameter fields
// select their defaults; TransitionStart and the voice fields usually come
// from the transition planner.
type SteadyInput struct {
	DurationA float64 // total length of the outgoing track
	DurationB float64 // total length of the incoming track

	TransitionStart float64 // A-time where the crossfade begins; <=0 derives the default
	Crossfade       float64 // crossfade length; <=0 means DefaultCrossfade
	LeadIn          float64 // lead-in of A before the crossfade; <=0 means DefaultLeadIn
	TailBuffer      float64 // tail of B reserved for the next segment; <=0 means DefaultTailBuffer
	Overlap         float64 // overlap with the next segment; <=0 means DefaultOverlap

	VoiceDuration float64 // length of the synthesized voice clip; <=0 means no voice
	VoiceLead     float64 // seconds before the crossfade the voice starts; <=0 means DefaultVoiceLead
}

// SteadyPlan is the resolved timing for a steady-state segment. Times named
// *A or *B are positions inside that source track; the rest are positions on
// the segment's own clock, which starts at StartA in track A.
type SteadyPlan struct {
	Crossfade  float64
	LeadIn     float64
	TailBuffer float64
	Overlap    float64

	TransitionStart float64 // A-time where the crossfade begins, after clamping
	StartA          float64 // A-time where the segment begins
	LengthA         float64 // seconds of A carried in the segment
	TransitionPos   float64 // segment-time where the crossfade begins

	DelayBMs     int     // delay applied to B so it enters just ahead of the crossfade
	EndB         float64 // B-time where this segment stops carrying B
	HandoffStart float64 // B-time where the next segment begins carrying B
	HandoffGap   float64 // HandoffStart - EndB; positive means a coverage gap

	ExpectedDuration float64 // what the rendered file should measure

	Voice *VoiceTiming // nil when no voice clip is mixed in

	Warnings []string
}

// VoiceTiming places the voice clip on the segment clock.
type VoiceTiming struct {
	Start   float64 // segment-time where the voice begins
	End     float64 // segment-time where the voice ends
	DelayMs int     // delay applied to the voice stream
}

// PlanSteady resolves the timing for a steady-state segment. It clamps the
// planner's proposal into the valid domain rather than rejecting it; the only
// error is a non-positive track duration. For fixed inputs the result is
// deterministic.
func PlanSteady(in SteadyInput) (SteadyPlan, error) {
	if in.DurationA <= 0 || in.DurationB <= 0 {
		return SteadyPlan{}, ErrNonPositiveDuration
	}

	p := SteadyPlan{
		Crossfade:  orDefault(in.Crossfade, DefaultCrossfade),
		LeadIn:     orDefault(in.LeadIn, DefaultLeadIn),
		TailBuffer: orDefault(in.TailBuffer, DefaultTailBuffer),
		Overlap:    orDefault(in.Overlap, DefaultOverlap),
	}

	// Crossfade must leave a margin at the end of the shorter track.
	maxFade := math.Min(in.DurationA, in.DurationB) - CrossfadeMargin
	if maxFade < MinCrossfade {
		maxFade = MinCrossfade
	}
	if p.Crossfade < MinCrossfade {
		p.Crossfade = MinCrossfade
	}
	if p.Crossfade > maxFade {
		p.Crossfade = maxFade
	}

	// The lead-in must at least cover the crossfade.
	if p.LeadIn < p.Crossfade {
		p.LeadIn = p.Crossfade
	}

	// Crossfade start in A. The default leaves the tail buffer for the
	// next segment; clamping keeps the whole fade inside the track.
	tStart := in.TransitionStart
	if tStart <= 0 {
		tStart = in.DurationA - p.TailBuffer - p.Crossfade
	}
	if tStart < MinTransitionStart {
		tStart = MinTransitionStart
	}
	if latest := in.DurationA - p.Crossfade; tStart > latest {
		tStart = latest
	}
	if tStart < MinTransitionStart {
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"transition start clamped to %.2fs, inside the first %.0fs of the outgoing track", tStart, MinTransitionStart))
	}
	p.TransitionStart = tStart

	p.StartA = tStart - p.LeadIn
	if p.StartA < 0 {
		p.StartA = 0
	}
	p.LengthA = in.DurationA - p.StartA
	p.TransitionPos = tStart - p.StartA

	// B enters slightly before the crossfade so the handoff overlap is
	// split evenly across the boundary.
	delaySec := p.TransitionPos - p.Overlap/2
	if delaySec < 0 {
		delaySec = 0
	}
	p.DelayBMs = int(math.Round(delaySec * 1000))

	// Where the next segment picks B up, and how far past that point this
	// segment keeps playing it.
	p.HandoffStart = (in.DurationB - p.TailBuffer) - p.LeadIn
	if p.HandoffStart < 0 {
		p.HandoffStart = 0
	}
	p.EndB = math.Min(in.DurationB, p.HandoffStart+p.Overlap)
	if p.EndB < MinBodyCoverage {
		// Very short incoming track: carry it whole.
		p.EndB = in.DurationB
	}
	p.HandoffGap = p.HandoffStart - p.EndB
	if p.HandoffGap > 0 {
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"incoming track coverage ends %.2fs before the next segment's start at %.2fs", p.HandoffGap, p.HandoffStart))
	}

	p.ExpectedDuration = math.Max(p.LengthA, delaySec+p.EndB)

	if in.VoiceDuration > 0 {
		lead := orDefault(in.VoiceLead, DefaultVoiceLead)
		start := p.TransitionPos - lead
		if start < 0 {
			start = 0
		}
		v := &VoiceTiming{
			Start:   start,
			End:     start + in.VoiceDuration,
			DelayMs: int(math.Round(start * 1000)),
		}
		if v.End > p.ExpectedDuration {
			p.Warnings = append(p.Warnings, fmt.Sprintf(
				"voice ends at %.2fs, past the expected segment end %.2fs", v.End, p.ExpectedDuration))
		}
		p.Voice = v
	}

	return p, nil
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
