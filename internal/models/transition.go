package models

// TransitionKind identifies one of the built-in transition styles used to
// join two tracks inside a rendered segment.
type TransitionKind string

const (
	// TransitionBlend is a symmetric equal-power crossfade. It is also the
	// universal fallback when a requested kind cannot be built.
	TransitionBlend TransitionKind = "blend"
	// TransitionBassSwap crossfades highs early while swapping the low band
	// at the transition midpoint.
	TransitionBassSwap TransitionKind = "bass_swap"
	// TransitionFilterSweep sweeps a filter across the overlap.
	TransitionFilterSweep TransitionKind = "filter_sweep"
	// TransitionEchoOut trails the outgoing track with echo before the fade.
	TransitionEchoOut TransitionKind = "echo_out"
	// TransitionVinylStop halts the outgoing track like a stopped turntable,
	// then cuts the incoming track in.
	TransitionVinylStop TransitionKind = "vinyl_stop"
)

// AllTransitionKinds lists every known transition kind.
func AllTransitionKinds() []TransitionKind {
	return []TransitionKind{
		TransitionBlend,
		TransitionBassSwap,
		TransitionFilterSweep,
		TransitionEchoOut,
		TransitionVinylStop,
	}
}

// IsValid returns true if the kind is one of the known transitions.
func (k TransitionKind) IsValid() bool {
	switch k {
	case TransitionBlend, TransitionBassSwap, TransitionFilterSweep, TransitionEchoOut, TransitionVinylStop:
		return true
	}
	return false
}

// String returns the string form of the kind.
func (k TransitionKind) String() string {
	return string(k)
}

// ParseTransitionKind parses a transition kind string. The second return is
// false for unknown kinds; callers decide whether that is an error or a
// fall-back-to-blend situation.
func ParseTransitionKind(s string) (TransitionKind, bool) {
	k := TransitionKind(s)
	return k, k.IsValid()
}

// OrBlend returns the kind itself when valid, TransitionBlend otherwise.
func (k TransitionKind) OrBlend() TransitionKind {
	if k.IsValid() {
		return k
	}
	return TransitionBlend
}
