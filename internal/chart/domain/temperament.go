package chart

import (
	"fmt"
	"regexp"
	"strings"
)

// TemperamentWeight returns how many points a body contributes to its element.
func TemperamentWeight(body Body) int {
	switch body {
	case BodySun, BodyMoon, BodyAscendant:
		return 3
	case BodyMercury, BodyVenus, BodyMars, BodyJupiter, BodySaturn, BodyUranus, BodyNeptune, BodyPluto:
		return 1
	default:
		return 0
	}
}

// FullTemperamentPoints is the total when all eleven weighted positions are present.
const FullTemperamentPoints = 17

// TemperamentScore is the four-element point distribution of a chart.
// Invariant: an element with points > 0 is never Lacking.
type TemperamentScore struct {
	Points     map[Element]int
	Dominant   Element
	Lacking    Element
	HasLacking bool
}

// Total sums the points of every element.
func (t TemperamentScore) Total() int {
	total := 0
	for _, p := range t.Points {
		total += p
	}
	return total
}

// ScoreTemperament weighs the sign element of each present body using raw longitudes.
func ScoreTemperament(snap *ChartSnapshot) (TemperamentScore, error) {
	if snap == nil {
		return TemperamentScore{}, ErrNilSnapshot
	}
	points := make(map[Element]int, 4)
	for _, e := range Elements() {
		points[e] = 0
	}
	for _, body := range snap.Bodies() {
		weight := TemperamentWeight(body)
		if weight == 0 {
			continue
		}
		lon, _ := snap.Raw(body)
		points[SignOf(lon).Element()] += weight
	}

	score := TemperamentScore{Points: points}
	best := -1
	for _, e := range Elements() {
		if points[e] > best {
			best = points[e]
			score.Dominant = e
		}
	}
	var zero []Element
	for _, e := range Elements() {
		if points[e] == 0 {
			zero = append(zero, e)
		}
	}
	if len(zero) == 1 {
		score.Lacking = zero[0]
		score.HasLacking = true
	}
	return score, nil
}

type narrativePattern struct {
	element Element
	re      *regexp.Regexp
}

var narrativePatterns = buildNarrativePatterns()

func buildNarrativePatterns() []narrativePattern {
	names := map[Element][2]string{
		ElementFire:  {"fire", "fogo"},
		ElementEarth: {"earth", "terra"},
		ElementAir:   {"air", "ar"},
		ElementWater: {"water", "agua"},
	}
	var patterns []narrativePattern
	for _, e := range Elements() {
		en, pt := names[e][0], names[e][1]
		// The absence word must bind to the element itself, not to a later clause.
		exprs := []string{
			`\b` + en + `(\s+element)?\s+((is|was|remains|seems)\s+)?((completely|totally|entirely)\s+)?(absent|lacking|missing|nonexistent)\b`,
			`\b(lack of|lacking|absence of|missing)\s+(the\s+)?(element\s+(of\s+)?)?` + en + `\b`,
			`\b(no|without)\s+(the\s+)?(` + en + `\s+element|element\s+(of\s+)?` + en + `)\b`,
			`\b` + pt + `\s+((esta|e|fica|permanece)\s+)?((completamente|totalmente)\s+)?(ausente|inexistente|faltante)\b`,
			`\b(falta de|ausencia de|ausencia do elemento|carencia de)\s+(o\s+elemento\s+)?` + pt + `\b`,
			`\bsem\s+(o\s+)?elemento\s+` + pt + `\b`,
		}
		for _, expr := range exprs {
			patterns = append(patterns, narrativePattern{element: e, re: regexp.MustCompile(expr)})
		}
	}
	return patterns
}

// CheckNarrative rejects text that claims an element is absent while it has points.
func CheckNarrative(text string, score TemperamentScore) error {
	folded := foldText(text)
	var hits []string
	for _, p := range narrativePatterns {
		if score.Points[p.element] <= 0 {
			continue
		}
		if match := p.re.FindString(folded); match != "" {
			hits = append(hits, fmt.Sprintf("%q (%s has %d points)", match, p.element, score.Points[p.element]))
		}
	}
	if len(hits) > 0 {
		return fmt.Errorf("%w: %s", ErrNarrativeContradiction, strings.Join(hits, "; "))
	}
	return nil
}
