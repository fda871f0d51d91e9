package domain

import "time"

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether End is strictly after Start.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether w and other share at least one instant.
func (w Window) Overlaps(other Window) bool {
	return Overlaps(w.Start, w.End, other.Start, other.End)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Windows that only touch (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
