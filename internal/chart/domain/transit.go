package chart

import "time"

// TransitEvent is a moving body's aspect to a fixed natal point and the window it is within orb.
// Estimated is set when a boundary came from the duration table rather than a search.
type TransitEvent struct {
	TransitingBody Body
	NatalPoint     Body
	NatalLongitude float64
	Aspect         AspectType
	Orb            float64
	StartDate      time.Time
	ExactDate      time.Time
	EndDate        time.Time
	IsActive       bool
	Estimated      bool
}

// Covers reports whether t falls inside the event window.
func (e TransitEvent) Covers(t time.Time) bool {
	return !t.Before(e.StartDate) && !t.After(e.EndDate)
}
