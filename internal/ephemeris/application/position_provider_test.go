package application

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"natal-engine/internal/chart/domain"
	"natal-engine/internal/ephemeris/domain"
	"natal-engine/internal/ephemeris/infrastructure/analytic"
)

type unavailableProvider struct {
	calls atomic.Int32
}

func (u *unavailableProvider) RawPosition(ctx context.Context, body string, instant time.Time, latitude, longitude float64) (ephemeris.Equatorial, error) {
	u.calls.Add(1)
	return ephemeris.Equatorial{}, ephemeris.ErrUnavailable
}

func (u *unavailableProvider) SiderealTime(ctx context.Context, instant time.Time, longitude float64) (float64, error) {
	u.calls.Add(1)
	return 0, ephemeris.ErrUnavailable
}

type fixedProvider struct {
	eq  ephemeris.Equatorial
	lst float64
}

func (f fixedProvider) RawPosition(ctx context.Context, body string, instant time.Time, latitude, longitude float64) (ephemeris.Equatorial, error) {
	return f.eq, nil
}

func (f fixedProvider) SiderealTime(ctx context.Context, instant time.Time, longitude float64) (float64, error) {
	return f.lst, nil
}

var (
	testInstant  = time.Date(1990, 5, 17, 14, 30, 0, 0, time.UTC)
	testLocation = chart.GeoLocation{Latitude: -23.55, Longitude: -46.63}
	quietLogger  = log.New(io.Discard, "", 0)
)

func newAnalyticProvider(t *testing.T, opts ...Option) *PositionProvider {
	t.Helper()
	p, err := NewPositionProvider(analytic.NewProvider(), opts...)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestEquatorialConvertsToEcliptic(t *testing.T) {
	p, _ := NewPositionProvider(fixedProvider{eq: ephemeris.Equatorial{RightAscension: 0, Declination: 0}})
	pos, err := p.Position(context.Background(), chart.BodySun, testInstant, testLocation)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Longitude != 0 || pos.Sign != chart.SignAries {
		t.Fatalf("expected 0° Aries, got %+v", pos)
	}

	p, _ = NewPositionProvider(fixedProvider{eq: ephemeris.Equatorial{RightAscension: math.Pi / 2, Declination: ephemeris.DegToRad(23.4)}})
	pos, _ = p.Position(context.Background(), chart.BodySun, testInstant, testLocation)
	if math.Abs(pos.Longitude-90) > 0.1 {
		t.Fatalf("expected ~90°, got %.4f", pos.Longitude)
	}
}

func TestAnglesAtZeroSiderealTime(t *testing.T) {
	p, _ := NewPositionProvider(fixedProvider{lst: 0})
	mc, err := p.Midheaven(context.Background(), testInstant, chart.GeoLocation{})
	if err != nil {
		t.Fatalf("midheaven: %v", err)
	}
	asc, err := p.Ascendant(context.Background(), testInstant, chart.GeoLocation{})
	if err != nil {
		t.Fatalf("ascendant: %v", err)
	}
	if math.Abs(mc) > 1e-9 || math.Abs(asc-90) > 1e-9 {
		t.Fatalf("expected MC=0 ASC=90 at the equator, got MC=%.6f ASC=%.6f", mc, asc)
	}
}

func TestFallbackMarksReadingDegraded(t *testing.T) {
	primary := &unavailableProvider{}
	p, _ := NewPositionProvider(primary, WithFallback(analytic.NewProvider()), WithLogger(quietLogger))

	reading, err := p.Locate(context.Background(), chart.BodyMars, testInstant, testLocation)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if !reading.Degraded || reading.Source != SourceFallback {
		t.Fatalf("expected degraded fallback reading, got %+v", reading)
	}
	want, _, _ := analytic.NewProvider().EclipticPosition("mars", testInstant)
	if chart.ShortestAngularDistance(reading.Position.Longitude, want) > 1e-6 {
		t.Fatalf("fallback longitude %.6f, want %.6f", reading.Position.Longitude, want)
	}
	if primary.calls.Load() == 0 {
		t.Fatalf("primary was never asked")
	}
}

func TestUnavailableWithoutFallbackFails(t *testing.T) {
	p, _ := NewPositionProvider(&unavailableProvider{})
	_, err := p.Position(context.Background(), chart.BodyVenus, testInstant, testLocation)
	if !errors.Is(err, ephemeris.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestChironFormulaWhenBackendLacksIt(t *testing.T) {
	p := newAnalyticProvider(t, WithLogger(quietLogger))
	reading, err := p.Locate(context.Background(), chart.BodyChiron, testInstant, testLocation)
	if err != nil {
		t.Fatalf("chiron: %v", err)
	}
	if reading.Source != SourceFormula || reading.Degraded {
		t.Fatalf("expected non-degraded formula reading, got %+v", reading)
	}
	if want := ephemeris.ChironLongitude(testInstant); math.Abs(reading.Position.Longitude-want) > 1e-9 {
		t.Fatalf("chiron %.6f, want %.6f", reading.Position.Longitude, want)
	}
}

func TestChironAfterFallbackIsDegraded(t *testing.T) {
	p, _ := NewPositionProvider(&unavailableProvider{}, WithFallback(analytic.NewProvider()))
	reading, err := p.Locate(context.Background(), chart.BodyChiron, testInstant, testLocation)
	if err != nil {
		t.Fatalf("chiron: %v", err)
	}
	if !reading.Degraded {
		t.Fatalf("expected degraded chiron reading")
	}
}

func TestInputErrors(t *testing.T) {
	p := newAnalyticProvider(t)
	cases := []struct {
		name    string
		body    chart.Body
		instant time.Time
		loc     chart.GeoLocation
	}{
		{"zero instant", chart.BodySun, time.Time{}, testLocation},
		{"latitude", chart.BodySun, testInstant, chart.GeoLocation{Latitude: 91}},
		{"longitude", chart.BodyMoon, testInstant, chart.GeoLocation{Longitude: -181}},
		{"unknown body", chart.Body("vulcan"), testInstant, testLocation},
	}
	for _, tc := range cases {
		_, err := p.Position(context.Background(), tc.body, tc.instant, tc.loc)
		if !errors.Is(err, chart.ErrInput) {
			t.Fatalf("%s: expected input error, got %v", tc.name, err)
		}
	}
	if _, _, err := p.LunarNodes(time.Time{}); !errors.Is(err, chart.ErrInput) {
		t.Fatalf("expected input error for nodes, got %v", err)
	}
}

func TestSnapshotHasEveryBody(t *testing.T) {
	p := newAnalyticProvider(t)
	moment, err := chart.NewBirthMoment("1990-05-17", "11:30", -23.55, -46.63, "")
	if err != nil {
		t.Fatalf("moment: %v", err)
	}
	snap, err := p.Snapshot(context.Background(), moment)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got := len(snap.Bodies()); got != len(chart.AllBodies()) {
		t.Fatalf("expected %d bodies, got %d", len(chart.AllBodies()), got)
	}
	if snap.Degraded() {
		t.Fatalf("analytic primary should not be degraded")
	}
	north, _ := snap.Raw(chart.BodyNorthNode)
	south, _ := snap.Raw(chart.BodySouthNode)
	if d := chart.ShortestAngularDistance(north, south); math.Abs(d-180) > 1e-9 {
		t.Fatalf("nodes %.4f apart", d)
	}
	for _, pos := range snap.Positions() {
		if pos.Sign != chart.SignOf(pos.Longitude) {
			t.Fatalf("%s sign %v does not match longitude %.4f", pos.Body, pos.Sign, pos.Longitude)
		}
	}
}

func TestSnapshotDegradedWhenPrimaryDown(t *testing.T) {
	p, _ := NewPositionProvider(&unavailableProvider{}, WithFallback(analytic.NewProvider()), WithLogger(quietLogger))
	moment, _ := chart.NewBirthMoment("1984-11-02", "06:15", 38.72, -9.14, "")
	snap, err := p.Snapshot(context.Background(), moment)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Degraded() {
		t.Fatalf("expected degraded snapshot")
	}
}

func TestNilPrimary(t *testing.T) {
	if _, err := NewPositionProvider(nil); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}
