package timeline

import "math"

// Bootstrap-only constants. The first segment of a session has no outgoing
// track: a voice intro plays alone, then the opening track enters under its
// tail.
const (
	// BootstrapOverlap is how long the opening track plays under the tail
	// of the voice intro.
	BootstrapOverlap = 1.0

	// VoiceFadeOut is the fade applied to the end of the voice intro.
	VoiceFadeOut = 0.5

	// ShortTrackMargin replaces the tail buffer when trimming would leave
	// less than MinBodyCoverage of the opening track.
	ShortTrackMargin = 15.0
)

// BootstrapInput describes the session-opening segment: an optional voice
// intro followed by the first track, trimmed so the next segment can carry
// its transition.
type BootstrapInput struct {
	DurationB     float64 // total length of the opening track
	VoiceDuration float64 // length of the voice intro; <=0 means no voice
	TailBuffer    float64 // tail reserved for the next segment; <=0 means DefaultTailBuffer
}

// BootstrapPlan is the resolved timing for the session-opening segment.
type BootstrapPlan struct {
	TailBuffer float64

	TrimB    float64 // B-time where the segment stops carrying the track
	DelayBMs int     // delay applied to the track so it enters under the voice tail
	FadeInB  float64 // fade-in applied to the head of the track

	Voice *BootstrapVoice // nil when no voice intro is mixed in

	ExpectedDuration float64
}

// BootstrapVoice places the fade on the voice intro's own clock.
type BootstrapVoice struct {
	Duration     float64
	FadeOutStart float64 // voice-time where the fade begins
	FadeOut      float64
}

// PlanBootstrap resolves the timing for the session-opening segment. The
// track is trimmed to leave the tail buffer for the next segment; when that
// would leave less than MinBodyCoverage, a smaller margin is used instead so
// short tracks still play most of the way through.
func PlanBootstrap(in BootstrapInput) (BootstrapPlan, error) {
	if in.DurationB <= 0 {
		return BootstrapPlan{}, ErrNonPositiveDuration
	}

	p := BootstrapPlan{
		TailBuffer: orDefault(in.TailBuffer, DefaultTailBuffer),
		FadeInB:    BootstrapOverlap,
	}

	p.TrimB = in.DurationB - p.TailBuffer
	if p.TrimB < MinBodyCoverage {
		p.TrimB = in.DurationB - ShortTrackMargin
	}
	if p.TrimB <= 0 {
		p.TrimB = in.DurationB
	}

	delaySec := 0.0
	if in.VoiceDuration > 0 {
		delaySec = in.VoiceDuration - BootstrapOverlap
		if delaySec < 0 {
			delaySec = 0
		}
		fadeStart := in.VoiceDuration - VoiceFadeOut
		if fadeStart < 0 {
			fadeStart = 0
		}
		p.Voice = &BootstrapVoice{
			Duration:     in.VoiceDuration,
			FadeOutStart: fadeStart,
			FadeOut:      VoiceFadeOut,
		}
	}
	p.DelayBMs = int(math.Round(delaySec * 1000))

	p.ExpectedDuration = delaySec + p.TrimB

	return p, nil
}
