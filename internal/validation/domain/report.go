package validation

import (
	"natal-engine/internal/chart/domain"
)

// Severity places a finding in one of the four report lists.
type Severity string

const (
	SeverityValidation Severity = "validation"
	SeverityCorrection Severity = "correction"
	SeverityWarning    Severity = "warning"
	SeverityError      Severity = "error"
)

// Finding codes.
const (
	CodeElongationWithin   = "elongation_within_bound"
	CodeElongationExceeded = "elongation_exceeded"
	CodeForbiddenAspect    = "forbidden_aspect"
	CodeSignCorrected      = "sign_corrected"
	CodeDegreeCorrected    = "degree_corrected"
	CodeDignityStrong      = "dignity_strong"
	CodeDignityWeak        = "dignity_weak"
)

// Finding is one entry of a validation report.
type Finding struct {
	Severity Severity         `json:"severity"`
	Code     string           `json:"code"`
	Bodies   []chart.Body     `json:"bodies"`
	Aspect   chart.AspectType `json:"aspect,omitempty"`
	Distance float64          `json:"distance,omitempty"`
	Limit    float64          `json:"limit,omitempty"`
	Message  string           `json:"message"`
}

// GeometricImpossibility reports whether the finding describes a configuration
// that cannot occur in the sky.
func (f Finding) GeometricImpossibility() bool {
	return f.Severity == SeverityError && (f.Code == CodeElongationExceeded || f.Code == CodeForbiddenAspect)
}

func (f Finding) involves(a, b chart.Body) bool {
	if len(f.Bodies) != 2 {
		return false
	}
	return (f.Bodies[0] == a && f.Bodies[1] == b) || (f.Bodies[0] == b && f.Bodies[1] == a)
}

// Report is the immutable outcome of validating one snapshot.
type Report struct {
	Validations []Finding             `json:"validations"`
	Corrections []Finding             `json:"corrections"`
	Warnings    []Finding             `json:"warnings"`
	Errors      []Finding             `json:"errors"`
	Aspects     []chart.AspectRecord  `json:"aspects"`
	Dignities   []chart.DignityRecord `json:"dignities"`
}

// IsValid is true when the report has no errors.
func (r *Report) IsValid() bool {
	return r != nil && len(r.Errors) == 0
}

// ErrorCount returns the number of errors.
func (r *Report) ErrorCount() int {
	if r == nil {
		return 0
	}
	return len(r.Errors)
}

// Forbids reports whether narrating aspect between a and b would contradict an error.
// An elongation error forbids every aspect of the pair; AspectNone asks about the pair itself.
func (r *Report) Forbids(a, b chart.Body, aspect chart.AspectType) bool {
	if r == nil {
		return false
	}
	for _, f := range r.Errors {
		if !f.involves(a, b) {
			continue
		}
		if f.Code == CodeElongationExceeded || aspect == chart.AspectNone || f.Aspect == aspect {
			return true
		}
	}
	return false
}

// AspectOf returns the recorded aspect of a pair.
func (r *Report) AspectOf(a, b chart.Body) (chart.AspectRecord, bool) {
	if r == nil {
		return chart.AspectRecord{}, false
	}
	for _, rec := range r.Aspects {
		if (rec.BodyA == a && rec.BodyB == b) || (rec.BodyA == b && rec.BodyB == a) {
			return rec, true
		}
	}
	return chart.AspectRecord{}, false
}

// All returns every finding in list order: validations, corrections, warnings, errors.
func (r *Report) All() []Finding {
	if r == nil {
		return nil
	}
	out := make([]Finding, 0, len(r.Validations)+len(r.Corrections)+len(r.Warnings)+len(r.Errors))
	out = append(out, r.Validations...)
	out = append(out, r.Corrections...)
	out = append(out, r.Warnings...)
	out = append(out, r.Errors...)
	return out
}

func (r *Report) add(f Finding) {
	switch f.Severity {
	case SeverityValidation:
		r.Validations = append(r.Validations, f)
	case SeverityCorrection:
		r.Corrections = append(r.Corrections, f)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, f)
	case SeverityError:
		r.Errors = append(r.Errors, f)
	}
}
