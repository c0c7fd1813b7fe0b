package application

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"natal-engine/internal/chart/domain"
	ephemerisapp "natal-engine/internal/ephemeris/application"
	"natal-engine/internal/ephemeris/infrastructure/analytic"
)

var (
	reference = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	location  = chart.GeoLocation{Latitude: -23.55, Longitude: -46.63}
)

// linearSource moves each body at a constant rate from its longitude at the epoch.
type linearSource struct {
	epoch time.Time
	start map[chart.Body]float64
	rate  map[chart.Body]float64
	fail  func(time.Time) bool
}

func (s linearSource) Position(ctx context.Context, body chart.Body, instant time.Time, loc chart.GeoLocation) (chart.CelestialLongitude, error) {
	if s.fail != nil && s.fail(instant) {
		return chart.CelestialLongitude{}, errors.New("sample unavailable")
	}
	elapsed := instant.Sub(s.epoch).Hours() / 24
	return chart.NewCelestialLongitude(body, s.start[body]+s.rate[body]*elapsed), nil
}

func newLocator(t *testing.T, source LongitudeSource) *Locator {
	t.Helper()
	l, err := NewLocator(source, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("new locator: %v", err)
	}
	return l
}

func analyticSource(t *testing.T) *ephemerisapp.PositionProvider {
	t.Helper()
	p, err := ephemerisapp.NewPositionProvider(analytic.NewProvider())
	if err != nil {
		t.Fatalf("position provider: %v", err)
	}
	return p
}

func within(a, b time.Time, tolerance time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func TestSolarReturnConverges(t *testing.T) {
	source := analyticSource(t)
	birth := time.Date(1990, 5, 17, 14, 30, 0, 0, time.UTC)
	natal, err := source.Position(context.Background(), chart.BodySun, birth, location)
	if err != nil {
		t.Fatalf("natal sun: %v", err)
	}
	l := newLocator(t, source)

	for _, q := range []SolarReturnQuery{
		{NatalSunLongitude: natal.Longitude, TargetYear: 2025, Location: location, Birth: birth},
		{NatalSunLongitude: natal.Longitude, TargetYear: 2031, Location: location},
	} {
		got, err := l.SolarReturn(context.Background(), q)
		if err != nil {
			t.Fatalf("solar return: %v", err)
		}
		if !got.Converged || got.Residual >= 0.1 {
			t.Fatalf("expected convergence, got %+v", got)
		}
		sun, _ := source.Position(context.Background(), chart.BodySun, got.Instant, location)
		if d := chart.ShortestAngularDistance(sun.Longitude, natal.Longitude); d >= 0.1 {
			t.Fatalf("sun at located instant is %.4f° away", d)
		}
		if got.Instant.Year() != q.TargetYear || got.Instant.Month() != time.May {
			t.Fatalf("unexpected instant %s", got.Instant)
		}
	}
}

func TestSolarReturnAcrossEquinoxWithoutAnniversary(t *testing.T) {
	source := analyticSource(t)
	l := newLocator(t, source)
	for _, lon := range []float64{0.5, 90, 181, 270, 359.5} {
		got, err := l.SolarReturn(context.Background(), SolarReturnQuery{NatalSunLongitude: lon, TargetYear: 2026, Location: location})
		if err != nil {
			t.Fatalf("solar return %.1f: %v", lon, err)
		}
		if !got.Converged {
			t.Fatalf("longitude %.1f did not converge: %+v", lon, got)
		}
	}
}

func TestSolarReturnAllSamplesFail(t *testing.T) {
	source := linearSource{fail: func(time.Time) bool { return true }}
	got, err := newLocator(t, source).SolarReturn(context.Background(), SolarReturnQuery{NatalSunLongitude: 40, TargetYear: 2025, Location: location})
	if err != nil {
		t.Fatalf("solar return should not fail: %v", err)
	}
	if got.Converged || got.Residual != 180 {
		t.Fatalf("expected unconverged estimate, got %+v", got)
	}
}

func TestSolarReturnInputErrors(t *testing.T) {
	l := newLocator(t, linearSource{})
	for _, q := range []SolarReturnQuery{
		{NatalSunLongitude: math.NaN(), TargetYear: 2025},
		{NatalSunLongitude: 10, TargetYear: 0},
		{NatalSunLongitude: 10, TargetYear: 2025, Location: chart.GeoLocation{Latitude: 100}},
	} {
		if _, err := l.SolarReturn(context.Background(), q); !errors.Is(err, chart.ErrInput) {
			t.Fatalf("expected input error for %+v, got %v", q, err)
		}
	}
}

func marsAt100() linearSource {
	return linearSource{
		epoch: reference,
		start: map[chart.Body]float64{chart.BodyMars: 100, chart.BodySaturn: 100, chart.BodyPluto: 103},
		rate:  map[chart.Body]float64{chart.BodyMars: 0.5, chart.BodySaturn: 0.0335, chart.BodyPluto: 0.004},
	}
}

func TestTransitWindowBoundaries(t *testing.T) {
	l := newLocator(t, marsAt100())
	event, found, err := l.TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodyMars,
		NatalPoint:     chart.BodySun,
		NatalLongitude: 100,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
		Location:       location,
	})
	if err != nil || !found {
		t.Fatalf("transit window: found=%t err=%v", found, err)
	}
	day := 24 * time.Hour
	if !within(event.StartDate, reference.Add(-16*day), time.Minute) || !within(event.EndDate, reference.Add(16*day), time.Minute) {
		t.Fatalf("unexpected window %s .. %s", event.StartDate, event.EndDate)
	}
	if !within(event.ExactDate, reference, time.Minute) {
		t.Fatalf("unexpected exact date %s", event.ExactDate)
	}
	if !event.IsActive || event.Estimated || event.Orb != 8 {
		t.Fatalf("unexpected flags %+v", event)
	}
}

func TestTransitWindowSkipsFailedSamples(t *testing.T) {
	source := marsAt100()
	day := 24 * time.Hour
	source.fail = func(at time.Time) bool {
		return at.Equal(reference.Add(-16*day)) || at.Equal(reference.Add(18*day))
	}
	event, found, err := newLocator(t, source).TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodyMars,
		NatalLongitude: 100,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
	})
	if err != nil || !found {
		t.Fatalf("transit window: found=%t err=%v", found, err)
	}
	if !within(event.StartDate, reference.Add(-16*day), time.Minute) || !within(event.EndDate, reference.Add(16*day), time.Minute) {
		t.Fatalf("unexpected window %s .. %s", event.StartDate, event.EndDate)
	}
}

func TestTransitWindowAhead(t *testing.T) {
	event, found, _ := newLocator(t, marsAt100()).TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodyMars,
		NatalLongitude: 120,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
	})
	if !found {
		t.Fatalf("expected a window ahead")
	}
	day := 24 * time.Hour
	if event.IsActive {
		t.Fatalf("window ahead should not be active")
	}
	if !within(event.StartDate, reference.Add(24*day), time.Minute) || !within(event.ExactDate, reference.Add(40*day), time.Hour) {
		t.Fatalf("unexpected window %s exact %s", event.StartDate, event.ExactDate)
	}
}

func TestTransitWindowBeyondHorizonIsEstimated(t *testing.T) {
	event, found, err := newLocator(t, marsAt100()).TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodySaturn,
		NatalLongitude: 100,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
	})
	if err != nil || !found {
		t.Fatalf("transit window: found=%t err=%v", found, err)
	}
	if !event.Estimated {
		t.Fatalf("expected estimated boundaries")
	}
	half := transitDuration(chart.BodySaturn, chart.AspectConjunction) / 2
	if !within(event.StartDate, reference.Add(-half), 24*time.Hour) || !within(event.EndDate, reference.Add(half), 24*time.Hour) {
		t.Fatalf("unexpected estimate %s .. %s", event.StartDate, event.EndDate)
	}
}

func TestTransitDurationTable(t *testing.T) {
	if got := transitDuration(chart.BodyPluto, chart.AspectSquare); got != slowTransitDuration(chart.AspectSquare) {
		t.Fatalf("slow bodies must use the slow table, got %s", got)
	}
	conj := transitDuration(chart.BodyJupiter, chart.AspectConjunction)
	sextile := transitDuration(chart.BodyJupiter, chart.AspectSextile)
	if conj <= 0 || sextile >= conj {
		t.Fatalf("expected sextile window shorter than conjunction, got %s vs %s", sextile, conj)
	}
	if moon, sun := transitDuration(chart.BodyMoon, chart.AspectConjunction), transitDuration(chart.BodySun, chart.AspectConjunction); moon >= sun {
		t.Fatalf("expected the moon window shorter than the sun's, got %s vs %s", moon, sun)
	}
}

func TestSlowBodyUsesDurationTable(t *testing.T) {
	l := newLocator(t, marsAt100())
	event, found, err := l.TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodyPluto,
		NatalLongitude: 100,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
	})
	if err != nil || !found {
		t.Fatalf("slow window: found=%t err=%v", found, err)
	}
	half := slowTransitDuration(chart.AspectConjunction) / 2
	if !event.StartDate.Equal(reference.Add(-half)) || !event.EndDate.Equal(reference.Add(half)) || !event.Estimated {
		t.Fatalf("unexpected slow window %+v", event)
	}

	_, found, _ = l.TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodyPluto,
		NatalLongitude: 200,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
	})
	if found {
		t.Fatalf("pluto is not within orb of 200°")
	}
}

func TestTransitWindowNotFound(t *testing.T) {
	_, found, err := newLocator(t, marsAt100()).TransitWindow(context.Background(), TransitQuery{
		Body:           chart.BodyMars,
		NatalLongitude: 250,
		Aspect:         chart.AspectConjunction,
		Reference:      reference,
	})
	if err != nil || found {
		t.Fatalf("expected no window, found=%t err=%v", found, err)
	}
}

func TestTransitWindowInputErrors(t *testing.T) {
	l := newLocator(t, marsAt100())
	for _, q := range []TransitQuery{
		{Body: chart.BodyAscendant, Aspect: chart.AspectTrine, Reference: reference},
		{Body: chart.BodyMars, Aspect: chart.AspectType("semisquare"), Reference: reference},
		{Body: chart.BodyMars, Aspect: chart.AspectTrine},
		{Body: chart.BodyMars, Aspect: chart.AspectTrine, Reference: reference, Orb: -1},
	} {
		if _, _, err := l.TransitWindow(context.Background(), q); !errors.Is(err, chart.ErrInput) {
			t.Fatalf("expected input error for %+v, got %v", q, err)
		}
	}
}

func TestScanReportsActiveTransits(t *testing.T) {
	moment, _ := chart.NewBirthMoment("1990-05-17", "11:30", location.Latitude, location.Longitude, "")
	natal, err := chart.NewSnapshot(moment, map[chart.Body]float64{chart.BodySun: 100, chart.BodyMoon: 220}, false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	events, err := newLocator(t, marsAt100()).Scan(context.Background(), natal, reference, []chart.Body{chart.BodyMars})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[0].NatalPoint != chart.BodySun || events[0].Aspect != chart.AspectConjunction {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].NatalPoint != chart.BodyMoon || events[1].Aspect != chart.AspectTrine {
		t.Fatalf("unexpected second event %+v", events[1])
	}
	for _, e := range events {
		if !e.IsActive || !e.Covers(reference) {
			t.Fatalf("scan must only return active events: %+v", e)
		}
	}
}
