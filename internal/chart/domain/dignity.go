package chart

// Dignity classifies a planet's strength in a sign.
type Dignity string

const (
	DignityDomicile   Dignity = "domicile"
	DignityExaltation Dignity = "exaltation"
	DignityDetriment  Dignity = "detriment"
	DignityFall       Dignity = "fall"
	DignityPeregrine  Dignity = "peregrine"
)

// Strong reports whether d is Domicile or Exaltation.
func (d Dignity) Strong() bool {
	return d == DignityDomicile || d == DignityExaltation
}

// Weak reports whether d is Detriment or Fall.
func (d Dignity) Weak() bool {
	return d == DignityDetriment || d == DignityFall
}

// DignityRecord is the dignity of a planet in the sign it occupies.
type DignityRecord struct {
	Planet  Body
	Sign    Sign
	Dignity Dignity
}

// DignityTable holds the essential dignities of one planet.
type DignityTable struct {
	Domicile   []Sign
	Exaltation Sign
	Detriment  []Sign
	Fall       Sign
}

// DignitiesOf returns the dignity table of a planet; ok is false for non-planets.
func DignitiesOf(planet Body) (DignityTable, bool) {
	switch planet {
	case BodySun:
		return DignityTable{Domicile: []Sign{SignLeo}, Exaltation: SignAries, Detriment: []Sign{SignAquarius}, Fall: SignLibra}, true
	case BodyMoon:
		return DignityTable{Domicile: []Sign{SignCancer}, Exaltation: SignTaurus, Detriment: []Sign{SignCapricorn}, Fall: SignScorpio}, true
	case BodyMercury:
		return DignityTable{Domicile: []Sign{SignGemini, SignVirgo}, Exaltation: SignVirgo, Detriment: []Sign{SignSagittarius, SignPisces}, Fall: SignPisces}, true
	case BodyVenus:
		return DignityTable{Domicile: []Sign{SignTaurus, SignLibra}, Exaltation: SignPisces, Detriment: []Sign{SignScorpio, SignAries}, Fall: SignVirgo}, true
	case BodyMars:
		return DignityTable{Domicile: []Sign{SignAries, SignScorpio}, Exaltation: SignCapricorn, Detriment: []Sign{SignLibra, SignTaurus}, Fall: SignCancer}, true
	case BodyJupiter:
		return DignityTable{Domicile: []Sign{SignSagittarius, SignPisces}, Exaltation: SignCancer, Detriment: []Sign{SignGemini, SignVirgo}, Fall: SignCapricorn}, true
	case BodySaturn:
		return DignityTable{Domicile: []Sign{SignCapricorn, SignAquarius}, Exaltation: SignLibra, Detriment: []Sign{SignCancer, SignLeo}, Fall: SignAries}, true
	case BodyUranus:
		return DignityTable{Domicile: []Sign{SignAquarius}, Exaltation: SignScorpio, Detriment: []Sign{SignLeo}, Fall: SignTaurus}, true
	case BodyNeptune:
		return DignityTable{Domicile: []Sign{SignPisces}, Exaltation: SignCancer, Detriment: []Sign{SignVirgo}, Fall: SignCapricorn}, true
	case BodyPluto:
		return DignityTable{Domicile: []Sign{SignScorpio}, Exaltation: SignLeo, Detriment: []Sign{SignTaurus}, Fall: SignAquarius}, true
	default:
		return DignityTable{}, false
	}
}

// DignityOf checks Domicile, Exaltation, Detriment then Fall; the first match wins.
// Non-planets are always Peregrine.
func DignityOf(planet Body, sign Sign) Dignity {
	table, ok := DignitiesOf(planet)
	if !ok {
		return DignityPeregrine
	}
	if containsSign(table.Domicile, sign) {
		return DignityDomicile
	}
	if table.Exaltation == sign {
		return DignityExaltation
	}
	if containsSign(table.Detriment, sign) {
		return DignityDetriment
	}
	if table.Fall == sign {
		return DignityFall
	}
	return DignityPeregrine
}

func containsSign(signs []Sign, sign Sign) bool {
	for _, s := range signs {
		if s == sign {
			return true
		}
	}
	return false
}

// Ruler is a traditional sign ruler. Only the seven visible planets exist,
// so Chiron and the outer planets cannot be returned as rulers.
type Ruler int

const (
	RulerSun Ruler = iota
	RulerMoon
	RulerMercury
	RulerVenus
	RulerMars
	RulerJupiter
	RulerSaturn
)

// Body returns the body of the ruling planet.
func (r Ruler) Body() Body {
	switch r {
	case RulerSun:
		return BodySun
	case RulerMoon:
		return BodyMoon
	case RulerMercury:
		return BodyMercury
	case RulerVenus:
		return BodyVenus
	case RulerMars:
		return BodyMars
	case RulerJupiter:
		return BodyJupiter
	case RulerSaturn:
		return BodySaturn
	default:
		return ""
	}
}

// RulerOf returns the traditional ruler of a sign.
func RulerOf(sign Sign) Ruler {
	switch sign {
	case SignAries, SignScorpio:
		return RulerMars
	case SignTaurus, SignLibra:
		return RulerVenus
	case SignGemini, SignVirgo:
		return RulerMercury
	case SignCancer:
		return RulerMoon
	case SignLeo:
		return RulerSun
	case SignSagittarius, SignPisces:
		return RulerJupiter
	case SignCapricorn, SignAquarius:
		return RulerSaturn
	default:
		return RulerSun
	}
}

// ChartRulerInfo describes the planet ruling the Ascendant sign.
type ChartRulerInfo struct {
	AscendantSign Sign
	Ruler         Ruler
	Planet        Body
	Position      CelestialLongitude
	Dignity       Dignity
	Present       bool
}

// ChartRuler looks up the ruler of ascendantSign and reads its current
// sign and degree from the snapshot's raw longitudes.
func ChartRuler(ascendantSign Sign, snap *ChartSnapshot) (ChartRulerInfo, error) {
	if !ascendantSign.Valid() {
		return ChartRulerInfo{}, NewInputError("sign", "ascendant sign out of range")
	}
	ruler := RulerOf(ascendantSign)
	info := ChartRulerInfo{
		AscendantSign: ascendantSign,
		Ruler:         ruler,
		Planet:        ruler.Body(),
	}
	if snap == nil {
		return info, ErrNilSnapshot
	}
	lon, ok := snap.Raw(info.Planet)
	if !ok {
		return info, nil
	}
	info.Position = NewCelestialLongitude(info.Planet, lon)
	info.Dignity = DignityOf(info.Planet, info.Position.Sign)
	info.Present = true
	return info, nil
}

// ChartRulerOf resolves the chart ruler from the snapshot's own Ascendant.
func ChartRulerOf(snap *ChartSnapshot) (ChartRulerInfo, error) {
	if snap == nil {
		return ChartRulerInfo{}, ErrNilSnapshot
	}
	asc, ok := snap.Raw(BodyAscendant)
	if !ok {
		return ChartRulerInfo{}, NewInputError("ascendant", "snapshot has no ascendant")
	}
	return ChartRuler(SignOf(asc), snap)
}
