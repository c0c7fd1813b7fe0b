package chart

// Body identifies a celestial body or chart angle.
// The string value is the identifier exchanged with ephemeris backends and storage.
type Body string

const (
	BodySun       Body = "sun"
	BodyMoon      Body = "moon"
	BodyMercury   Body = "mercury"
	BodyVenus     Body = "venus"
	BodyMars      Body = "mars"
	BodyJupiter   Body = "jupiter"
	BodySaturn    Body = "saturn"
	BodyUranus    Body = "uranus"
	BodyNeptune   Body = "neptune"
	BodyPluto     Body = "pluto"
	BodyAscendant Body = "ascendant"
	BodyMidheaven Body = "midheaven"
	BodyNorthNode Body = "north_node"
	BodySouthNode Body = "south_node"
	BodyChiron    Body = "chiron"
)

// AllBodies lists every body of a complete snapshot in canonical order.
func AllBodies() []Body {
	return []Body{
		BodySun, BodyMoon, BodyMercury, BodyVenus, BodyMars,
		BodyJupiter, BodySaturn, BodyUranus, BodyNeptune, BodyPluto,
		BodyAscendant, BodyMidheaven, BodyNorthNode, BodySouthNode, BodyChiron,
	}
}

// Planets lists the ten bodies that carry dignities, Sun and Moon included.
func Planets() []Body {
	return []Body{
		BodySun, BodyMoon, BodyMercury, BodyVenus, BodyMars,
		BodyJupiter, BodySaturn, BodyUranus, BodyNeptune, BodyPluto,
	}
}

// Valid reports whether b is a known body.
func (b Body) Valid() bool {
	return b.index() >= 0
}

// IsPlanet reports whether b is one of the ten planets.
func (b Body) IsPlanet() bool {
	switch b {
	case BodySun, BodyMoon, BodyMercury, BodyVenus, BodyMars,
		BodyJupiter, BodySaturn, BodyUranus, BodyNeptune, BodyPluto:
		return true
	default:
		return false
	}
}

// IsAngle reports whether b is a house angle (depends on the observer location).
func (b Body) IsAngle() bool {
	return b == BodyAscendant || b == BodyMidheaven
}

// Label returns the display name used in stored records.
func (b Body) Label() string {
	switch b {
	case BodySun:
		return "Sol"
	case BodyMoon:
		return "Lua"
	case BodyMercury:
		return "Mercúrio"
	case BodyVenus:
		return "Vênus"
	case BodyMars:
		return "Marte"
	case BodyJupiter:
		return "Júpiter"
	case BodySaturn:
		return "Saturno"
	case BodyUranus:
		return "Urano"
	case BodyNeptune:
		return "Netuno"
	case BodyPluto:
		return "Plutão"
	case BodyAscendant:
		return "Ascendente"
	case BodyMidheaven:
		return "Meio do Céu"
	case BodyNorthNode:
		return "Nodo Norte"
	case BodySouthNode:
		return "Nodo Sul"
	case BodyChiron:
		return "Quíron"
	default:
		return string(b)
	}
}

// ParseBody validates a body identifier.
func ParseBody(value string) (Body, error) {
	b := Body(value)
	if !b.Valid() {
		return "", NewInputError("body", "unknown body "+value)
	}
	return b, nil
}

// index is the canonical ordinal of b, or -1 when unknown.
func (b Body) index() int {
	switch b {
	case BodySun:
		return 0
	case BodyMoon:
		return 1
	case BodyMercury:
		return 2
	case BodyVenus:
		return 3
	case BodyMars:
		return 4
	case BodyJupiter:
		return 5
	case BodySaturn:
		return 6
	case BodyUranus:
		return 7
	case BodyNeptune:
		return 8
	case BodyPluto:
		return 9
	case BodyAscendant:
		return 10
	case BodyMidheaven:
		return 11
	case BodyNorthNode:
		return 12
	case BodySouthNode:
		return 13
	case BodyChiron:
		return 14
	default:
		return -1
	}
}

// Before orders bodies canonically.
func (b Body) Before(other Body) bool {
	return b.index() < other.index()
}
