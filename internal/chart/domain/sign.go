package chart

import "math"

// Sign is a 30° zodiac segment; SignAries is 0 and SignPisces is 11.
type Sign int

const (
	SignAries Sign = iota
	SignTaurus
	SignGemini
	SignCancer
	SignLeo
	SignVirgo
	SignLibra
	SignScorpio
	SignSagittarius
	SignCapricorn
	SignAquarius
	SignPisces
)

// AllSigns lists the twelve signs from Aries.
func AllSigns() []Sign {
	signs := make([]Sign, 12)
	for i := range signs {
		signs[i] = Sign(i)
	}
	return signs
}

// Valid reports whether s is in 0..11.
func (s Sign) Valid() bool {
	return s >= SignAries && s <= SignPisces
}

// SignOf returns the sign containing an ecliptic longitude.
func SignOf(longitude float64) Sign {
	return Sign(int(math.Floor(NormalizeDegrees(longitude)/30)) % 12)
}

// DegreeInSign returns the offset of a longitude inside its sign, in [0,30).
func DegreeInSign(longitude float64) float64 {
	return math.Mod(NormalizeDegrees(longitude), 30)
}

// Opposite returns the sign 180° away.
func (s Sign) Opposite() Sign {
	return Sign((int(s) + 6) % 12)
}

// Label returns the stored (Portuguese) sign name.
func (s Sign) Label() string {
	switch s {
	case SignAries:
		return "Áries"
	case SignTaurus:
		return "Touro"
	case SignGemini:
		return "Gêmeos"
	case SignCancer:
		return "Câncer"
	case SignLeo:
		return "Leão"
	case SignVirgo:
		return "Virgem"
	case SignLibra:
		return "Libra"
	case SignScorpio:
		return "Escorpião"
	case SignSagittarius:
		return "Sagitário"
	case SignCapricorn:
		return "Capricórnio"
	case SignAquarius:
		return "Aquário"
	case SignPisces:
		return "Peixes"
	default:
		return ""
	}
}

// String returns the English sign name.
func (s Sign) String() string {
	switch s {
	case SignAries:
		return "Aries"
	case SignTaurus:
		return "Taurus"
	case SignGemini:
		return "Gemini"
	case SignCancer:
		return "Cancer"
	case SignLeo:
		return "Leo"
	case SignVirgo:
		return "Virgo"
	case SignLibra:
		return "Libra"
	case SignScorpio:
		return "Scorpio"
	case SignSagittarius:
		return "Sagittarius"
	case SignCapricorn:
		return "Capricorn"
	case SignAquarius:
		return "Aquarius"
	case SignPisces:
		return "Pisces"
	default:
		return "invalid"
	}
}

// Element returns the classical element of s.
func (s Sign) Element() Element {
	switch s {
	case SignAries, SignLeo, SignSagittarius:
		return ElementFire
	case SignTaurus, SignVirgo, SignCapricorn:
		return ElementEarth
	case SignGemini, SignLibra, SignAquarius:
		return ElementAir
	case SignCancer, SignScorpio, SignPisces:
		return ElementWater
	default:
		return ""
	}
}

// ParseSign accepts the stored label or the English name, ignoring case and accents.
func ParseSign(value string) (Sign, error) {
	folded := foldText(value)
	for _, s := range AllSigns() {
		if folded == foldText(s.Label()) || folded == foldText(s.String()) {
			return s, nil
		}
	}
	return 0, NewInputError("sign", "unknown sign "+value)
}

// Element is one of the four temperament elements.
type Element string

const (
	ElementFire  Element = "fire"
	ElementEarth Element = "earth"
	ElementAir   Element = "air"
	ElementWater Element = "water"
)

// Elements lists the elements in canonical tie-break order.
func Elements() []Element {
	return []Element{ElementFire, ElementEarth, ElementAir, ElementWater}
}

// Label returns the stored (Portuguese) element name.
func (e Element) Label() string {
	switch e {
	case ElementFire:
		return "Fogo"
	case ElementEarth:
		return "Terra"
	case ElementAir:
		return "Ar"
	case ElementWater:
		return "Água"
	default:
		return ""
	}
}
