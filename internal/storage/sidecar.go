package storage

import (
	"math"

	"github.com/jmylchreest/mixarr/internal/timeline"
)

// TransitionTypeIntro labels the transition block of a bootstrap segment,
// where a voice intro hands off to the opening track instead of one track
// crossfading into another.
const TransitionTypeIntro = "intro"

// Sidecar is the JSON contract written next to every rendered segment as
// `<segment>.json`. It tells the playout side exactly which parts of the
// source tracks the segment carries and where the seams sit: song1 is the
// outgoing track, song2 the incoming one, and all times are seconds on the
// named clock unless the field says ms.
//
// Bootstrap segments have no outgoing track, so song1 is omitted.
type Sidecar struct {
	Song1      *SidecarSong1     `json:"song1,omitempty"`
	Song2      SidecarSong2      `json:"song2"`
	Transition SidecarTransition `json:"transition"`
	TTS        *SidecarTTS       `json:"tts,omitempty"`
	Render     SidecarRender     `json:"render"`
}

// SidecarSong1 describes the slice of the outgoing track the segment
// carries, on that track's own clock (except SegmentTransitionPos, which is
// on the segment clock).
type SidecarSong1 struct {
	Start                float64 `json:"start"`
	End                  float64 `json:"end"`
	TransitionStart      float64 `json:"transition_start"`
	SegmentTransitionPos float64 `json:"segment_transition_pos"`
}

// SidecarSong2 describes the slice of the incoming track the segment
// carries. HandoffStart is where the next segment begins carrying the same
// track; OverlapWithNext is how far past that point this segment keeps
// playing it.
type SidecarSong2 struct {
	Start           float64 `json:"start"`
	End             float64 `json:"end"`
	HandoffStart    float64 `json:"handoff_start"`
	OverlapWithNext float64 `json:"overlap_with_next"`
}

// SidecarTransition records how the incoming track enters the segment.
type SidecarTransition struct {
	Type              string  `json:"type"`
	CrossfadeDuration float64 `json:"crossfade_duration"`
	DelayMs           int     `json:"delay_ms"`
	StartInSegment    float64 `json:"start_in_segment"`
}

// SidecarTTS places the voice clip on the segment clock.
type SidecarTTS struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	DelayMs int     `json:"delay_ms"`
}

// SidecarRender compares the planned segment length with what the render
// actually produced. ActualDuration is filled in after the render; the
// caller probes the output file and assigns it before writing the sidecar.
type SidecarRender struct {
	ExpectedDuration float64 `json:"expected_duration"`
	ActualDuration   float64 `json:"actual_duration"`
	HandoffGap       float64 `json:"handoff_gap"`
}

// NewSteadySidecar builds the sidecar for a steady-state segment from its
// resolved timing. kind is the transition type that was rendered. A negative
// handoff gap means deliberate overlap and is recorded as zero.
func NewSteadySidecar(p timeline.SteadyPlan, kind string) *Sidecar {
	sc := &Sidecar{
		Song1: &SidecarSong1{
			Start:                p.StartA,
			End:                  p.StartA + p.LengthA,
			TransitionStart:      p.TransitionStart,
			SegmentTransitionPos: p.TransitionPos,
		},
		Song2: SidecarSong2{
			Start:           0,
			End:             p.EndB,
			HandoffStart:    p.HandoffStart,
			OverlapWithNext: p.Overlap,
		},
		Transition: SidecarTransition{
			Type:              kind,
			CrossfadeDuration: p.Crossfade,
			DelayMs:           p.DelayBMs,
			StartInSegment:    float64(p.DelayBMs) / 1000.0,
		},
		Render: SidecarRender{
			ExpectedDuration: p.ExpectedDuration,
			HandoffGap:       math.Max(p.HandoffGap, 0),
		},
	}

	if p.Voice != nil {
		sc.TTS = &SidecarTTS{
			Start:   p.Voice.Start,
			End:     p.Voice.End,
			DelayMs: p.Voice.DelayMs,
		}
	}

	return sc
}

// NewBootstrapSidecar builds the sidecar for a session-opening segment.
// There is no outgoing track and no deliberate overlap with the next
// segment: the opening track is trimmed hard at the handoff point and the
// next segment's crossfade covers the seam.
func NewBootstrapSidecar(p timeline.BootstrapPlan) *Sidecar {
	sc := &Sidecar{
		Song2: SidecarSong2{
			Start:           0,
			End:             p.TrimB,
			HandoffStart:    p.TrimB,
			OverlapWithNext: 0,
		},
		Transition: SidecarTransition{
			Type:              TransitionTypeIntro,
			CrossfadeDuration: p.FadeInB,
			DelayMs:           p.DelayBMs,
			StartInSegment:    float64(p.DelayBMs) / 1000.0,
		},
		Render: SidecarRender{
			ExpectedDuration: p.ExpectedDuration,
		},
	}

	if p.Voice != nil {
		sc.TTS = &SidecarTTS{
			Start:   0,
			End:     p.Voice.Duration,
			DelayMs: 0,
		}
	}

	return sc
}
