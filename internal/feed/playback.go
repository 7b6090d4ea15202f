package feed

import "math"

// PlaybackState is one feed item's player state.
type PlaybackState int

const (
	Idle PlaybackState = iota
	Inactive
	Preloading
	Active
)

func (s PlaybackState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Preloading:
		return "preloading"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

// ActiveIndex maps a settled scroll offset to the item nearest the top of
// the viewport, clamped to [0, n-1]. It returns 0 for an empty list or a
// non-positive item height.
func ActiveIndex(scrollOffset, itemHeight float64, n int) int {
	if n <= 0 || itemHeight <= 0 {
		return 0
	}
	idx := int(math.Round(scrollOffset / itemHeight))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// PlaybackStates assigns a state to each of n items. The active item plays
// only while the screen is focused; the next item preloads; all others are
// inactive.
func PlaybackStates(n, activeIndex int, focused bool) []PlaybackState {
	states := make([]PlaybackState, n)
	for i := range states {
		switch {
		case !focused:
			states[i] = Inactive
		case i == activeIndex:
			states[i] = Active
		case i == activeIndex+1:
			states[i] = Preloading
		default:
			states[i] = Inactive
		}
	}
	return states
}
