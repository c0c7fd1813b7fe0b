package analytic

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"natal-engine/internal/ephemeris/domain"
)

func angularGap(a, b float64) float64 {
	d := math.Mod(a-b+540, 360) - 180
	return math.Abs(d)
}

func TestEclipticPositionsAtJ2000(t *testing.T) {
	p := NewProvider()
	instant := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		body      string
		longitude float64
		tolerance float64
	}{
		{"sun", 280.37, 0.05},
		{"moon", 223.3, 1.0},
		{"mars", 327.9, 2.0},
		{"jupiter", 25.2, 2.0},
		{"saturn", 40.4, 2.0},
		{"pluto", 251.4, 2.0},
	}
	for _, tc := range cases {
		lon, _, err := p.EclipticPosition(tc.body, instant)
		if err != nil {
			t.Fatalf("%s: %v", tc.body, err)
		}
		if gap := angularGap(lon, tc.longitude); gap > tc.tolerance {
			t.Fatalf("%s longitude %.3f, want %.2f±%.2f", tc.body, lon, tc.longitude, tc.tolerance)
		}
	}
}

func TestInnerPlanetsStayWithinElongation(t *testing.T) {
	p := NewProvider()
	start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 3650; day += 5 {
		instant := start.AddDate(0, 0, day)
		sun, _, _ := p.EclipticPosition("sun", instant)
		mercury, _, _ := p.EclipticPosition("mercury", instant)
		venus, _, _ := p.EclipticPosition("venus", instant)
		if gap := angularGap(mercury, sun); gap > 28.5 {
			t.Fatalf("mercury elongation %.2f on %s", gap, instant.Format("2006-01-02"))
		}
		if gap := angularGap(venus, sun); gap > 48.5 {
			t.Fatalf("venus elongation %.2f on %s", gap, instant.Format("2006-01-02"))
		}
	}
}

func TestRawPositionRoundTripsToEcliptic(t *testing.T) {
	p := NewProvider()
	instant := time.Date(1987, 6, 14, 9, 30, 0, 0, time.UTC)
	eq, err := p.RawPosition(context.Background(), "sun", instant, -23.5, -46.6)
	if err != nil {
		t.Fatalf("raw position: %v", err)
	}
	lon, _, _ := p.EclipticPosition("sun", instant)
	got := ephemeris.EclipticLongitude(eq, ephemeris.Obliquity(ephemeris.JulianCenturies(instant)))
	if angularGap(got, lon) > 1e-6 {
		t.Fatalf("round trip %.8f, want %.8f", got, lon)
	}
}

func TestUnknownBody(t *testing.T) {
	p := NewProvider()
	for _, body := range []string{"chiron", "earth", "vulcan"} {
		_, err := p.RawPosition(context.Background(), body, time.Now(), 0, 0)
		if !errors.Is(err, ephemeris.ErrUnknownBody) {
			t.Fatalf("%s: expected ErrUnknownBody, got %v", body, err)
		}
	}
}

func TestSiderealTimeIsRadians(t *testing.T) {
	p := NewProvider()
	lst, err := p.SiderealTime(context.Background(), time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), -46.6)
	if err != nil {
		t.Fatalf("sidereal: %v", err)
	}
	if lst < 0 || lst >= 2*math.Pi {
		t.Fatalf("lst %.4f outside [0,2π)", lst)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().RawPosition(ctx, "sun", time.Now(), 0, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
