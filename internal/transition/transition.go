// Package transition appends the mixing topology for each transition kind to
// a filter graph. Builders take two prepared streams and return the label of
// the mixed result. Sequential builders splice the outgoing stream into the
// incoming one with acrossfade and expect the incoming stream undelayed; the
// bass swap overlays time-gated copies on a shared clock and expects it
// delayed into position. Sequential reports which contract a kind follows.
//
// Filtering is only active inside the transition window; clean copies carry
// the audio outside it.
package transition

import (
	"fmt"

	"github.com/jmylchreest/mixarr/internal/fgraph"
	"github.com/jmylchreest/mixarr/internal/models"
)

const (
	// CrossoverHz splits lows from highs for the bass swap when the
	// caller does not pick a frequency.
	CrossoverHz = 250

	// BrakeDuration is the vinyl-stop fade length.
	BrakeDuration = 2.0

	// BrakeCrossfade is the short crossfade after the vinyl brake.
	BrakeCrossfade = 1.0
)

// Params carries the timing a builder needs. TransitionPos is on the
// segment's clock; Crossfade is the fade length. CrossoverHz tunes the
// bass swap's band split and falls back to the package constant when
// zero.
type Params struct {
	Crossfade     float64
	TransitionPos float64
	CrossoverHz   int
}

// Builder appends one transition's chains to the graph and returns the
// output label.
type Builder func(g *fgraph.Graph, a1, a2 string, p Params) string

var builders = map[models.TransitionKind]Builder{
	models.TransitionBlend:       Crossfade,
	models.TransitionBassSwap:    BassSwap,
	models.TransitionFilterSweep: FilterSweep,
	models.TransitionEchoOut:     EchoOut,
	models.TransitionVinylStop:   VinylStop,
}

// Build dispatches to the builder for kind. Unknown kinds collapse to the
// plain crossfade, which is always a valid graph.
func Build(g *fgraph.Graph, kind models.TransitionKind, a1, a2 string, p Params) string {
	if fn, ok := builders[kind]; ok {
		return fn(g, a1, a2, p)
	}
	return Crossfade(g, a1, a2, p)
}

// Sequential reports whether kind's builder splices its inputs back to back
// with acrossfade. The caller cuts the outgoing stream at the end of the
// transition window and leaves the incoming one undelayed; only the bass
// swap wants both streams positioned on the segment clock instead.
func Sequential(kind models.TransitionKind) bool {
	return kind != models.TransitionBassSwap
}

// CutLength returns how far past the transition point a sequential builder
// carries the outgoing stream.
func CutLength(kind models.TransitionKind, crossfade float64) float64 {
	if kind == models.TransitionVinylStop {
		return BrakeDuration
	}
	return crossfade
}

// Crossfade is the equal-power triangular crossfade, and the universal
// fallback.
func Crossfade(g *fgraph.Graph, a1, a2 string, p Params) string {
	g.Chain(a1, a2).
		Filter("acrossfade", "d="+fgraph.Float(p.Crossfade), "c1=tri", "c2=tri").
		Label("xfade")
	return "xfade"
}

// BassSwap crossfades the highs while swapping the lows at the window's
// midpoint. Each input splits into low, high and clean copies; the lows go
// through two stacked passes for a steeper slope, and time-gated volume
// expressions keep exactly one copy audible at any moment. All six streams
// sum at the end.
func BassSwap(g *fgraph.Graph, a1, a2 string, p Params) string {
	peak := p.TransitionPos + p.Crossfade/2
	fadeStart := peak - p.Crossfade/2
	fadeEnd := peak + p.Crossfade/2

	fs := fgraph.Float(fadeStart)
	fe := fgraph.Float(fadeEnd)
	pk := fgraph.Float(peak)
	dur := fgraph.Float(p.Crossfade)

	// Outgoing: highs fade out across the window, lows hold until the
	// swap point, the clean copy plays only before the window.
	hi1 := fmt.Sprintf("if(between(t,%s,%s),(%s-t)/%s,0)", fs, fe, fe, dur)
	lo1 := fmt.Sprintf("if(between(t,%s,%s),1,0)", fs, pk)
	cl1 := fmt.Sprintf("if(lt(t,%s),1,0)", fs)

	// Incoming: mirror image.
	hi2 := fmt.Sprintf("if(between(t,%s,%s),(t-%s)/%s,0)", fs, fe, fs, dur)
	lo2 := fmt.Sprintf("if(between(t,%s,%s),1,0)", pk, fe)
	cl2 := fmt.Sprintf("if(gt(t,%s),1,0)", fe)

	crossover := p.CrossoverHz
	if crossover <= 0 {
		crossover = CrossoverHz
	}
	hz := "f=" + fgraph.Float(float64(crossover))

	g.Chain(a1).Filter("asplit", "3").Labels("lo1", "hi1", "cl1")
	g.Chain("lo1").Filter("lowpass", hz).Filter("lowpass", hz).
		Filter("volume", fgraph.Quote(lo1), "eval=frame").Label("lo1g")
	g.Chain("hi1").Filter("highpass", hz).Filter("highpass", hz).
		Filter("volume", fgraph.Quote(hi1), "eval=frame").Label("hi1g")
	g.Chain("cl1").Filter("volume", fgraph.Quote(cl1), "eval=frame").Label("cl1g")

	g.Chain(a2).Filter("asplit", "3").Labels("lo2", "hi2", "cl2")
	g.Chain("lo2").Filter("lowpass", hz).Filter("lowpass", hz).
		Filter("volume", fgraph.Quote(lo2), "eval=frame").Label("lo2g")
	g.Chain("hi2").Filter("highpass", hz).Filter("highpass", hz).
		Filter("volume", fgraph.Quote(hi2), "eval=frame").Label("hi2g")
	g.Chain("cl2").Filter("volume", fgraph.Quote(cl2), "eval=frame").Label("cl2g")

	g.Chain("cl1g", "hi1g", "lo1g", "cl2g", "hi2g", "lo2g").
		Filter("amix", "inputs=6", "duration=longest", "normalize=0").
		Label("bass")
	return "bass"
}

// FilterSweep is currently the plain crossfade. A true animated sweep needs
// manual band mixing because acrossfade restarts the clock on its inputs.
func FilterSweep(g *fgraph.Graph, a1, a2 string, p Params) string {
	return Crossfade(g, a1, a2, p)
}

// EchoOut throws a feedback echo trail on the outgoing track from the
// transition point on, then crossfades. The echo input is gated so the trail
// builds only inside the window; a clean copy carries everything before it.
func EchoOut(g *fgraph.Graph, a1, a2 string, p Params) string {
	ts := fgraph.Float(p.TransitionPos)
	dry := fmt.Sprintf("if(lt(t,%s),1,0)", ts)
	wet := fmt.Sprintf("if(gte(t,%s),1,0)", ts)

	g.Chain(a1).Filter("asplit", "2").Labels("dry", "wet")
	g.Chain("dry").Filter("volume", fgraph.Quote(dry), "eval=frame").Label("dryg")
	g.Chain("wet").
		Filter("volume", fgraph.Quote(wet), "eval=frame").
		Filter("aecho", "0.8", "0.88", "500", "0.5").
		Label("wetg")
	g.Chain("dryg", "wetg").
		Filter("amix", "inputs=2", "duration=longest", "normalize=0").
		Label("echo")
	g.Chain("echo", a2).
		Filter("acrossfade", "d="+fgraph.Float(p.Crossfade), "c1=tri", "c2=tri").
		Label("xfade")
	return "xfade"
}

// VinylStop approximates a turntable brake at the transition point: fade
// the outgoing track over the brake window, drench it in a heavy echo wash,
// then cut across quickly.
func VinylStop(g *fgraph.Graph, a1, a2 string, p Params) string {
	g.Chain(a1).
		Filter("afade", "t=out",
			"st="+fgraph.Float(p.TransitionPos),
			"d="+fgraph.Float(BrakeDuration)).
		Filter("aecho", "0.8", "0.9", "100", "0.6").
		Label("brake")
	g.Chain("brake", a2).
		Filter("acrossfade", "d="+fgraph.Float(BrakeCrossfade), "c1=tri", "c2=tri").
		Label("xfade")
	return "xfade"
}
