package validation

import (
	"fmt"
	"log"
	"math"

	"natal-engine/internal/chart/domain"
)

// positionTolerance absorbs float noise when comparing stored and recomputed degrees.
const positionTolerance = 1e-6

// Bounds are the maximum geocentric elongations in degrees.
type Bounds struct {
	MercurySun   float64
	VenusSun     float64
	VenusMercury float64
}

// DefaultBounds returns the physical elongation limits.
func DefaultBounds() Bounds {
	return Bounds{MercurySun: 28, VenusSun: 48, VenusMercury: 76}
}

type elongationRule struct {
	a, b      chart.Body
	limit     float64
	forbidden []chart.AspectType
}

func (b Bounds) rules() []elongationRule {
	return []elongationRule{
		{
			a: chart.BodyMercury, b: chart.BodySun, limit: b.MercurySun,
			forbidden: []chart.AspectType{chart.AspectSextile, chart.AspectSquare, chart.AspectTrine, chart.AspectOpposition},
		},
		{
			a: chart.BodyVenus, b: chart.BodySun, limit: b.VenusSun,
			forbidden: []chart.AspectType{chart.AspectSextile, chart.AspectSquare, chart.AspectTrine, chart.AspectOpposition},
		},
		{
			a: chart.BodyVenus, b: chart.BodyMercury, limit: b.VenusMercury,
			forbidden: []chart.AspectType{chart.AspectSquare, chart.AspectTrine, chart.AspectOpposition},
		},
	}
}

// Validator audits a snapshot against astronomical constraints and repairs
// sign and degree drift from the raw longitudes.
type Validator struct {
	bounds Bounds
	logger *log.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithBounds overrides the elongation bounds; non-positive fields keep their default.
func WithBounds(bounds Bounds) Option {
	return func(v *Validator) {
		if bounds.MercurySun > 0 {
			v.bounds.MercurySun = bounds.MercurySun
		}
		if bounds.VenusSun > 0 {
			v.bounds.VenusSun = bounds.VenusSun
		}
		if bounds.VenusMercury > 0 {
			v.bounds.VenusMercury = bounds.VenusMercury
		}
	}
}

// WithLogger logs every correction; nil disables logging.
func WithLogger(logger *log.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator constructs a validator with the physical bounds.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{bounds: DefaultBounds()}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Bounds returns the configured elongation bounds.
func (v *Validator) Bounds() Bounds { return v.bounds }

// Validate runs elongation, forbidden-aspect, sign/degree, dignity and aspect
// checks in that order. The input snapshot is never modified; when corrections
// are needed a corrected copy is returned, otherwise the input itself.
func (v *Validator) Validate(snap *chart.ChartSnapshot) (*chart.ChartSnapshot, *Report, error) {
	if snap == nil {
		return nil, nil, chart.ErrNilSnapshot
	}
	report := &Report{}

	for _, rule := range v.bounds.rules() {
		v.checkElongation(snap, rule, report)
	}
	for _, rule := range v.bounds.rules() {
		v.checkForbiddenAspects(snap, rule, report)
	}
	corrected := v.reconcilePositions(snap, report)
	v.classifyDignities(corrected, report)
	v.extractAspects(corrected, report)

	return corrected, report, nil
}

func (v *Validator) checkElongation(snap *chart.ChartSnapshot, rule elongationRule, report *Report) {
	a, okA := snap.Raw(rule.a)
	b, okB := snap.Raw(rule.b)
	if !okA || !okB {
		return
	}
	distance := chart.ShortestAngularDistance(a, b)
	pair := []chart.Body{rule.a, rule.b}
	if distance > rule.limit {
		report.add(Finding{
			Severity: SeverityError,
			Code:     CodeElongationExceeded,
			Bodies:   pair,
			Distance: distance,
			Limit:    rule.limit,
			Message:  fmt.Sprintf("%s-%s elongation %.2f° exceeds the %g° bound", rule.a, rule.b, distance, rule.limit),
		})
		return
	}
	report.add(Finding{
		Severity: SeverityValidation,
		Code:     CodeElongationWithin,
		Bodies:   pair,
		Distance: distance,
		Limit:    rule.limit,
		Message:  fmt.Sprintf("%s-%s elongation %.2f° within the %g° bound", rule.a, rule.b, distance, rule.limit),
	})
}

// checkForbiddenAspects flags distances that fall in the orb band of an aspect the pair can never form.
func (v *Validator) checkForbiddenAspects(snap *chart.ChartSnapshot, rule elongationRule, report *Report) {
	a, okA := snap.Raw(rule.a)
	b, okB := snap.Raw(rule.b)
	if !okA || !okB {
		return
	}
	distance := chart.ShortestAngularDistance(a, b)
	for _, aspect := range rule.forbidden {
		if !aspect.Within(distance, aspect.Orb()) {
			continue
		}
		report.add(Finding{
			Severity: SeverityError,
			Code:     CodeForbiddenAspect,
			Bodies:   []chart.Body{rule.a, rule.b},
			Aspect:   aspect,
			Distance: distance,
			Limit:    rule.limit,
			Message:  fmt.Sprintf("%s %s %s at %.2f° is geometrically impossible", rule.a, aspect, rule.b, distance),
		})
	}
}

// reconcilePositions derives every position from its raw longitude and records a
// correction wherever a stored sign or degree disagrees.
func (v *Validator) reconcilePositions(snap *chart.ChartSnapshot, report *Report) *chart.ChartSnapshot {
	var replacements []chart.CelestialLongitude
	for _, body := range snap.Bodies() {
		raw, _ := snap.Raw(body)
		want := chart.NewCelestialLongitude(body, raw)
		stored, ok := snap.Position(body)
		if !ok {
			replacements = append(replacements, want)
			continue
		}
		var finding *Finding
		switch {
		case stored.Sign != want.Sign:
			finding = &Finding{
				Severity: SeverityCorrection,
				Code:     CodeSignCorrected,
				Bodies:   []chart.Body{body},
				Message: fmt.Sprintf("%s stored in %s but raw longitude %.4f° is %s %.2f°",
					body, stored.SignLabel(), raw, want.SignLabel(), want.DegreeInSign),
			}
		case math.Abs(stored.DegreeInSign-want.DegreeInSign) > positionTolerance ||
			chart.ShortestAngularDistance(stored.Longitude, want.Longitude) > positionTolerance:
			finding = &Finding{
				Severity: SeverityCorrection,
				Code:     CodeDegreeCorrected,
				Bodies:   []chart.Body{body},
				Message: fmt.Sprintf("%s stored at %.4f° of %s but raw longitude gives %.4f°",
					body, stored.DegreeInSign, stored.SignLabel(), want.DegreeInSign),
			}
		}
		if finding == nil {
			continue
		}
		report.add(*finding)
		replacements = append(replacements, want)
		if v.logger != nil {
			v.logger.Printf("chart correction: key=%s code=%s %s", snap.Moment().Key(), finding.Code, finding.Message)
		}
	}
	if len(replacements) == 0 {
		return snap
	}
	return snap.WithPositions(replacements...)
}

func (v *Validator) classifyDignities(snap *chart.ChartSnapshot, report *Report) {
	for _, planet := range chart.Planets() {
		pos, ok := snap.Position(planet)
		if !ok {
			continue
		}
		dignity := chart.DignityOf(planet, pos.Sign)
		report.Dignities = append(report.Dignities, chart.DignityRecord{Planet: planet, Sign: pos.Sign, Dignity: dignity})
		switch {
		case dignity.Strong():
			report.add(Finding{
				Severity: SeverityValidation,
				Code:     CodeDignityStrong,
				Bodies:   []chart.Body{planet},
				Message:  fmt.Sprintf("%s in %s: %s", planet, pos.SignLabel(), dignity),
			})
		case dignity.Weak():
			report.add(Finding{
				Severity: SeverityWarning,
				Code:     CodeDignityWeak,
				Bodies:   []chart.Body{planet},
				Message:  fmt.Sprintf("%s in %s: %s", planet, pos.SignLabel(), dignity),
			})
		}
	}
}

// extractAspects records at most one aspect per unordered pair, skipping the
// always-opposed node axis and anything the errors already forbid.
func (v *Validator) extractAspects(snap *chart.ChartSnapshot, report *Report) {
	bodies := snap.Bodies()
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if isNodeAxis(a, b) {
				continue
			}
			lonA, _ := snap.Raw(a)
			lonB, _ := snap.Raw(b)
			aspect, distance := chart.AspectBetween(lonA, lonB)
			if aspect == chart.AspectNone || report.Forbids(a, b, aspect) {
				continue
			}
			report.Aspects = append(report.Aspects, chart.AspectRecord{
				BodyA:     a,
				BodyB:     b,
				Aspect:    aspect,
				Distance:  distance,
				Deviation: aspect.Deviation(distance),
			})
		}
	}
}

func isNodeAxis(a, b chart.Body) bool {
	return (a == chart.BodyNorthNode && b == chart.BodySouthNode) || (a == chart.BodySouthNode && b == chart.BodyNorthNode)
}
