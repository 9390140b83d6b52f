package ohme

import (
	"math"
	"time"
)

// InferWindows recovers charge start/end instants (epoch seconds) from the
// session's charge graph. The backend only exposes the graph, not the schedule.
//
// A boundary is emitted at the x of the point preceding an edge: a rise while
// idle opens a window, a repeated y while charging closes it. Boundaries
// alternate start, end, start, ...; an odd count leaves the last window open.
func InferWindows(snapshot DeviceSnapshot) []int64 {
	base := int64(math.RoundToEven(float64(snapshot.StartTimeMillis) / 1000))

	times := []int64{}
	if len(snapshot.Points) == 0 {
		return times
	}

	// The first point only seeds the scan; a graph that starts above zero
	// has not risen.
	first := snapshot.Points[0]
	previousY, lastX, lastY := first.Y, first.X, first.Y
	charging := false

	for _, p := range snapshot.Points[1:] {
		if p.Y > previousY && !charging {
			times = append(times, base+int64(math.RoundToEven(lastX)))
			charging = true
		} else if p.Y == lastY && charging {
			times = append(times, base+int64(math.RoundToEven(lastX)))
			charging = false
		}
		previousY = p.Y
		lastX = p.X
		lastY = p.Y
	}
	return times
}

// ChargeWindow gives guarded access to inferred boundaries
type ChargeWindow struct {
	Boundaries []int64
}

// NewChargeWindow infers the window for a snapshot
func NewChargeWindow(snapshot DeviceSnapshot) ChargeWindow {
	return ChargeWindow{Boundaries: InferWindows(snapshot)}
}

// Scheduled reports whether any charge was detected in the graph
func (w ChargeWindow) Scheduled() bool {
	return len(w.Boundaries) > 0
}

// NextStart is the first boundary
func (w ChargeWindow) NextStart() (time.Time, bool) {
	return w.at(0)
}

// NextEnd is the second boundary
func (w ChargeWindow) NextEnd() (time.Time, bool) {
	return w.at(1)
}

// FinalEnd is the last closing boundary. A trailing unmatched start is skipped.
func (w ChargeWindow) FinalEnd() (time.Time, bool) {
	n := len(w.Boundaries)
	if n%2 == 1 {
		n--
	}
	return w.at(n - 1)
}

func (w ChargeWindow) at(i int) (time.Time, bool) {
	if i < 0 || i >= len(w.Boundaries) {
		return time.Time{}, false
	}
	return time.Unix(w.Boundaries[i], 0).UTC(), true
}
