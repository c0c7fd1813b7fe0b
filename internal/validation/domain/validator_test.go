package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"natal-engine/internal/chart/domain"
)

func testMoment(t *testing.T) chart.BirthMoment {
	t.Helper()
	moment, err := chart.NewBirthMoment("1992-03-04", "08:45", -22.9, -43.2, "")
	if err != nil {
		t.Fatalf("moment: %v", err)
	}
	return moment
}

func mustSnapshot(t *testing.T, raw map[chart.Body]float64) *chart.ChartSnapshot {
	t.Helper()
	snap, err := chart.NewSnapshot(testMoment(t), raw, false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func findingWithCode(findings []Finding, code string) (Finding, bool) {
	for _, f := range findings {
		if f.Code == code {
			return f, true
		}
	}
	return Finding{}, false
}

func TestMercuryBeyondElongationIsError(t *testing.T) {
	snap := mustSnapshot(t, map[chart.Body]float64{chart.BodyMercury: 100, chart.BodySun: 140})
	_, report, err := NewValidator().Validate(snap)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.IsValid() {
		t.Fatalf("expected invalid report")
	}
	f, ok := findingWithCode(report.Errors, CodeElongationExceeded)
	if !ok {
		t.Fatalf("expected elongation error, got %+v", report.Errors)
	}
	if f.Limit != 28 || f.Distance != 40 {
		t.Fatalf("unexpected finding %+v", f)
	}
	if !strings.Contains(f.Message, "28") {
		t.Fatalf("message should cite the 28° bound: %q", f.Message)
	}
	if !f.GeometricImpossibility() {
		t.Fatalf("elongation error should be a geometric impossibility")
	}
}

func TestVenusSunSextileIsForbidden(t *testing.T) {
	snap := mustSnapshot(t, map[chart.Body]float64{chart.BodyVenus: 160, chart.BodySun: 100})
	_, report, _ := NewValidator().Validate(snap)
	f, ok := findingWithCode(report.Errors, CodeForbiddenAspect)
	if !ok {
		t.Fatalf("expected forbidden aspect error, got %+v", report.Errors)
	}
	if f.Aspect != chart.AspectSextile {
		t.Fatalf("expected sextile, got %s", f.Aspect)
	}
	if !report.Forbids(chart.BodySun, chart.BodyVenus, chart.AspectSextile) {
		t.Fatalf("report should forbid narrating the sextile")
	}
	if _, ok := report.AspectOf(chart.BodyVenus, chart.BodySun); ok {
		t.Fatalf("forbidden aspect must not be recorded")
	}
}

func TestForbiddenAspectReportedEvenWithinLooseBounds(t *testing.T) {
	v := NewValidator(WithBounds(Bounds{VenusMercury: 180}))
	snap := mustSnapshot(t, map[chart.Body]float64{chart.BodyVenus: 10, chart.BodyMercury: 100})
	_, report, _ := v.Validate(snap)
	if _, ok := findingWithCode(report.Errors, CodeElongationExceeded); ok {
		t.Fatalf("bound of 180 should not be exceeded")
	}
	f, ok := findingWithCode(report.Errors, CodeForbiddenAspect)
	if !ok || f.Aspect != chart.AspectSquare {
		t.Fatalf("expected forbidden square, got %+v", report.Errors)
	}
}

func TestWithinBoundsIsValidation(t *testing.T) {
	snap := mustSnapshot(t, map[chart.Body]float64{chart.BodyMercury: 135, chart.BodySun: 140})
	_, report, _ := NewValidator().Validate(snap)
	if !report.IsValid() {
		t.Fatalf("expected valid report, got %+v", report.Errors)
	}
	if _, ok := findingWithCode(report.Validations, CodeElongationWithin); !ok {
		t.Fatalf("expected elongation validation")
	}
	rec, ok := report.AspectOf(chart.BodySun, chart.BodyMercury)
	if !ok || rec.Aspect != chart.AspectConjunction {
		t.Fatalf("expected conjunction, got %+v", rec)
	}
}

func TestStoredSignIsCorrectedIdempotently(t *testing.T) {
	moment := testMoment(t)
	stored := []chart.CelestialLongitude{{Body: chart.BodySun, Longitude: 15, Sign: chart.SignTaurus, DegreeInSign: 15}}
	snap, err := chart.RestoreSnapshot(moment, map[chart.Body]float64{chart.BodySun: 15}, stored, false)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	v := NewValidator()
	corrected, report, err := v.Validate(snap)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.Corrections) != 1 || len(report.Errors) != 0 {
		t.Fatalf("expected one correction and no errors, got %d/%d", len(report.Corrections), len(report.Errors))
	}
	if report.Corrections[0].Code != CodeSignCorrected {
		t.Fatalf("unexpected correction %+v", report.Corrections[0])
	}
	sun, _ := corrected.Position(chart.BodySun)
	if sun.SignLabel() != "Áries" {
		t.Fatalf("expected Áries, got %s", sun.SignLabel())
	}
	if original, _ := snap.Position(chart.BodySun); original.Sign != chart.SignTaurus {
		t.Fatalf("input snapshot was mutated")
	}

	again, second, _ := v.Validate(corrected)
	if len(second.Corrections) != 0 {
		t.Fatalf("expected no further corrections, got %+v", second.Corrections)
	}
	if diff := cmp.Diff(corrected.Positions(), again.Positions()); diff != "" {
		t.Fatalf("revalidation changed positions (-first +second):\n%s", diff)
	}
}

func TestStoredRecordRoundTripCorrection(t *testing.T) {
	snap := mustSnapshot(t, map[chart.Body]float64{chart.BodySun: 15, chart.BodyMoon: 200})
	record, err := chart.NewChartRecord("user-1", snap, true, 0, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	for i := range record.Positions {
		if record.Positions[i].Body == chart.BodySun {
			record.Positions[i].Sign = "Touro"
		}
	}
	restored, err := record.Snapshot()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	corrected, report, _ := NewValidator().Validate(restored)
	if len(report.Corrections) != 1 {
		t.Fatalf("expected one correction, got %+v", report.Corrections)
	}
	if sun, _ := corrected.Position(chart.BodySun); sun.Sign != chart.SignAries {
		t.Fatalf("expected aries, got %s", sun.Sign)
	}
}

func TestDegreeDriftIsCorrected(t *testing.T) {
	stored := []chart.CelestialLongitude{{Body: chart.BodyMars, Longitude: 45, Sign: chart.SignTaurus, DegreeInSign: 15}}
	snap, _ := chart.RestoreSnapshot(testMoment(t), map[chart.Body]float64{chart.BodyMars: 47.5}, stored, false)
	corrected, report, _ := NewValidator().Validate(snap)
	if len(report.Corrections) != 1 || report.Corrections[0].Code != CodeDegreeCorrected {
		t.Fatalf("expected degree correction, got %+v", report.Corrections)
	}
	mars, _ := corrected.Position(chart.BodyMars)
	if mars.DegreeInSign != 17.5 {
		t.Fatalf("expected 17.5, got %v", mars.DegreeInSign)
	}
}

func TestMissingPositionsAreDerivedWithoutCorrection(t *testing.T) {
	snap, _ := chart.RestoreSnapshot(testMoment(t), map[chart.Body]float64{chart.BodyJupiter: 100}, nil, false)
	corrected, report, _ := NewValidator().Validate(snap)
	if len(report.Corrections) != 0 {
		t.Fatalf("expected no corrections, got %+v", report.Corrections)
	}
	if pos, ok := corrected.Position(chart.BodyJupiter); !ok || pos.Sign != chart.SignCancer {
		t.Fatalf("expected jupiter in cancer, got %+v", pos)
	}
}

func TestDignitiesSplitIntoValidationsAndWarnings(t *testing.T) {
	snap := mustSnapshot(t, map[chart.Body]float64{
		chart.BodySun:    130, // Leo, domicile
		chart.BodyMoon:   220, // Scorpio, fall
		chart.BodySaturn: 10,  // Aries, fall
		chart.BodyMars:   250, // Sagittarius, peregrine
	})
	_, report, _ := NewValidator().Validate(snap)
	if len(report.Dignities) != 4 {
		t.Fatalf("expected 4 dignity records, got %d", len(report.Dignities))
	}
	var strong, weak int
	for _, f := range report.Validations {
		if f.Code == CodeDignityStrong {
			strong++
		}
	}
	for _, f := range report.Warnings {
		if f.Code == CodeDignityWeak {
			weak++
		}
	}
	if strong != 1 || weak != 2 {
		t.Fatalf("expected 1 strong and 2 weak, got %d/%d", strong, weak)
	}
}

func TestAspectsSkipNodeAxisAndKeepOnePerPair(t *testing.T) {
	snap := mustSnapshot(t, map[chart.Body]float64{
		chart.BodyNorthNode: 10,
		chart.BodySouthNode: 190,
		chart.BodyMars:      130,
		chart.BodyJupiter:   250,
	})
	_, report, _ := NewValidator().Validate(snap)
	seen := map[[2]chart.Body]bool{}
	for _, rec := range report.Aspects {
		if isNodeAxis(rec.BodyA, rec.BodyB) {
			t.Fatalf("node axis should be skipped")
		}
		key := [2]chart.Body{rec.BodyA, rec.BodyB}
		if seen[key] {
			t.Fatalf("duplicate aspect for %v", key)
		}
		seen[key] = true
	}
	if rec, ok := report.AspectOf(chart.BodyMars, chart.BodyJupiter); !ok || rec.Aspect != chart.AspectTrine {
		t.Fatalf("expected mars-jupiter trine, got %+v", rec)
	}
	if rec, ok := report.AspectOf(chart.BodyNorthNode, chart.BodyMars); !ok || rec.Aspect != chart.AspectTrine {
		t.Fatalf("expected node-mars trine, got %+v", rec)
	}
}

func TestNilSnapshot(t *testing.T) {
	if _, _, err := NewValidator().Validate(nil); !errors.Is(err, chart.ErrNilSnapshot) {
		t.Fatalf("expected ErrNilSnapshot, got %v", err)
	}
}
