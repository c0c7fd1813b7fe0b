package application

import (
	"time"

	"natal-engine/internal/chart/domain"
)

// transitDuration is the duration table for a whole transit window: the typical
// conjunction window of each body, shortened for the tighter aspects. It is
// the estimate used when a search horizon misses a boundary.
func transitDuration(body chart.Body, aspect chart.AspectType) time.Duration {
	if isSlowBody(body) {
		return slowTransitDuration(aspect)
	}
	const day = 24 * time.Hour
	var base time.Duration
	switch body {
	case chart.BodyMoon:
		base = 30 * time.Hour
	case chart.BodySun, chart.BodyMercury, chart.BodyVenus:
		base = 16 * day
	case chart.BodyMars:
		base = 30 * day
	case chart.BodyJupiter:
		base = 190 * day
	case chart.BodySaturn:
		base = 480 * day
	case chart.BodyUranus:
		base = 1370 * day
	case chart.BodyChiron:
		base = 820 * day
	case chart.BodyNorthNode, chart.BodySouthNode:
		base = 300 * day
	default:
		return 0
	}
	return time.Duration(float64(base) * aspectDurationFactor(aspect))
}

// aspectDurationFactor scales a conjunction window to the other aspects.
func aspectDurationFactor(aspect chart.AspectType) float64 {
	switch aspect {
	case chart.AspectSquare, chart.AspectTrine:
		return 0.82
	case chart.AspectSextile:
		return 0.62
	case chart.AspectQuincunx:
		return 0.41
	default:
		return 1
	}
}

// isSlowBody marks the bodies with orbital periods beyond a century, whose
// windows come from slowTransitDuration instead of a search.
func isSlowBody(body chart.Body) bool {
	return body == chart.BodyNeptune || body == chart.BodyPluto
}

// slowTransitDuration is the typical total window length of a slow-body transit.
func slowTransitDuration(aspect chart.AspectType) time.Duration {
	const day = 24 * time.Hour
	switch aspect {
	case chart.AspectConjunction, chart.AspectOpposition:
		return 730 * day
	case chart.AspectSquare, chart.AspectTrine:
		return 600 * day
	case chart.AspectSextile:
		return 450 * day
	case chart.AspectQuincunx:
		return 300 * day
	default:
		return 365 * day
	}
}

// stepFor returns the sampling step of a body; the Moon is sampled hourly-scale.
func stepFor(body chart.Body, base time.Duration) time.Duration {
	if body == chart.BodyMoon {
		return 2 * time.Hour
	}
	return base
}
