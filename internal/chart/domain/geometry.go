package chart

import "math"

// NormalizeDegrees maps any angle into [0,360).
func NormalizeDegrees(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// ShortestAngularDistance returns |((a − b + 180) mod 360) − 180|, always in [0,180].
func ShortestAngularDistance(a, b float64) float64 {
	d := math.Mod(a-b+180, 360)
	if d < 0 {
		d += 360
	}
	return math.Abs(d - 180)
}

// AspectType names an angular relationship between two bodies.
type AspectType string

const (
	AspectNone        AspectType = ""
	AspectConjunction AspectType = "conjunction"
	AspectSextile     AspectType = "sextile"
	AspectSquare      AspectType = "square"
	AspectTrine       AspectType = "trine"
	AspectOpposition  AspectType = "opposition"
	AspectQuincunx    AspectType = "quincunx"
)

// AspectTypes lists aspects in classification priority order.
func AspectTypes() []AspectType {
	return []AspectType{
		AspectConjunction,
		AspectOpposition,
		AspectSquare,
		AspectTrine,
		AspectSextile,
		AspectQuincunx,
	}
}

// Valid reports whether a is a named aspect.
func (a AspectType) Valid() bool {
	switch a {
	case AspectConjunction, AspectSextile, AspectSquare, AspectTrine, AspectOpposition, AspectQuincunx:
		return true
	default:
		return false
	}
}

// TargetAngle returns the exact angle of the aspect in degrees.
func (a AspectType) TargetAngle() float64 {
	switch a {
	case AspectConjunction:
		return 0
	case AspectSextile:
		return 60
	case AspectSquare:
		return 90
	case AspectTrine:
		return 120
	case AspectOpposition:
		return 180
	case AspectQuincunx:
		return 150
	default:
		return math.NaN()
	}
}

// Orb returns the default tolerance around the target angle.
func (a AspectType) Orb() float64 {
	switch a {
	case AspectConjunction:
		return 8
	case AspectSextile:
		return 4
	case AspectSquare:
		return 6
	case AspectTrine:
		return 8
	case AspectOpposition:
		return 8
	case AspectQuincunx:
		return 2
	default:
		return 0
	}
}

// Deviation returns how far distance is from the exact aspect angle.
// Conjunction and opposition also consider the 360°-wrapped distance.
func (a AspectType) Deviation(distance float64) float64 {
	target := a.TargetAngle()
	dev := math.Abs(distance - target)
	if a == AspectConjunction || a == AspectOpposition {
		if wrapped := math.Abs(360 - distance - target); wrapped < dev {
			dev = wrapped
		}
	}
	return dev
}

// Within reports whether distance falls inside the aspect's band for the given orb.
func (a AspectType) Within(distance, orb float64) bool {
	if !a.Valid() {
		return false
	}
	return a.Deviation(distance) <= orb
}

// Classify returns the first aspect, in priority order, whose orb band holds distance.
func Classify(distance float64) AspectType {
	for _, aspect := range AspectTypes() {
		if aspect.Within(distance, aspect.Orb()) {
			return aspect
		}
	}
	return AspectNone
}

// AspectRecord is the aspect found between two bodies. At most one exists per unordered pair.
type AspectRecord struct {
	BodyA     Body
	BodyB     Body
	Aspect    AspectType
	Distance  float64
	Deviation float64
}

// AspectBetween classifies the shortest distance between two longitudes.
func AspectBetween(a, b float64) (AspectType, float64) {
	distance := ShortestAngularDistance(a, b)
	return Classify(distance), distance
}
