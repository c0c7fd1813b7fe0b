package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"natal-engine/internal/chart/domain"
	"natal-engine/internal/ephemeris/domain"
	"natal-engine/internal/observability/metrics"
)

// Source tells which path produced a reading.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceFormula  Source = "formula"
)

// Reading is a located body with its provenance.
type Reading struct {
	Position chart.CelestialLongitude
	Degraded bool
	Source   Source
}

// PositionProvider converts raw equatorial coordinates into ecliptic longitudes and chart angles.
type PositionProvider struct {
	primary  ephemeris.RawProvider
	fallback ephemeris.RawProvider
	logger   *log.Logger
}

// Option configures a PositionProvider.
type Option func(*PositionProvider)

// WithFallback sets the lower-precision provider used when the primary is unavailable.
func WithFallback(fallback ephemeris.RawProvider) Option {
	return func(p *PositionProvider) {
		p.fallback = fallback
	}
}

// WithLogger sets the logger; nil disables logging.
func WithLogger(logger *log.Logger) Option {
	return func(p *PositionProvider) {
		p.logger = logger
	}
}

// NewPositionProvider constructs the provider.
func NewPositionProvider(primary ephemeris.RawProvider, opts ...Option) (*PositionProvider, error) {
	if primary == nil {
		return nil, errors.New("position provider: nil raw provider")
	}
	p := &PositionProvider{primary: primary}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Position returns the ecliptic longitude of any chart body.
func (p *PositionProvider) Position(ctx context.Context, body chart.Body, instant time.Time, loc chart.GeoLocation) (chart.CelestialLongitude, error) {
	reading, err := p.Locate(ctx, body, instant, loc)
	if err != nil {
		return chart.CelestialLongitude{}, err
	}
	return reading.Position, nil
}

// Locate resolves a body and reports whether the fallback provider was needed.
func (p *PositionProvider) Locate(ctx context.Context, body chart.Body, instant time.Time, loc chart.GeoLocation) (Reading, error) {
	if err := checkRequest(instant, loc); err != nil {
		return Reading{}, err
	}
	switch body {
	case chart.BodyAscendant, chart.BodyMidheaven:
		lst, source, err := p.siderealTime(ctx, instant, loc.Longitude)
		if err != nil {
			return Reading{}, err
		}
		eps := ephemeris.Obliquity(ephemeris.JulianCenturies(instant))
		lon := ephemeris.Midheaven(lst, eps)
		if body == chart.BodyAscendant {
			lon = ephemeris.Ascendant(lst, loc.Latitude, eps)
		}
		return newReading(body, lon, source), nil
	case chart.BodyNorthNode, chart.BodySouthNode:
		north, south := ephemeris.LunarNodes(ephemeris.JulianCenturies(instant))
		if body == chart.BodySouthNode {
			return newReading(body, south, SourceFormula), nil
		}
		return newReading(body, north, SourceFormula), nil
	case chart.BodyChiron:
		lon, source, err := p.chiron(ctx, instant, loc)
		if err != nil {
			return Reading{}, err
		}
		return newReading(body, lon, source), nil
	}
	if !body.IsPlanet() {
		return Reading{}, chart.NewInputError("body", fmt.Sprintf("unknown body %q", body))
	}
	eq, source, err := p.rawPosition(ctx, body, instant, loc)
	if err != nil {
		if errors.Is(err, ephemeris.ErrUnknownBody) {
			return Reading{}, chart.NewInputError("body", err.Error())
		}
		return Reading{}, err
	}
	lon := ephemeris.EclipticLongitude(eq, ephemeris.Obliquity(ephemeris.JulianCenturies(instant)))
	return newReading(body, lon, source), nil
}

// Ascendant returns the rising ecliptic degree.
func (p *PositionProvider) Ascendant(ctx context.Context, instant time.Time, loc chart.GeoLocation) (float64, error) {
	pos, err := p.Position(ctx, chart.BodyAscendant, instant, loc)
	return pos.Longitude, err
}

// Midheaven returns the culminating ecliptic degree.
func (p *PositionProvider) Midheaven(ctx context.Context, instant time.Time, loc chart.GeoLocation) (float64, error) {
	pos, err := p.Position(ctx, chart.BodyMidheaven, instant, loc)
	return pos.Longitude, err
}

// LunarNodes returns the mean north and south nodes; they need no ephemeris call.
func (p *PositionProvider) LunarNodes(instant time.Time) (float64, float64, error) {
	if instant.IsZero() {
		return 0, 0, chart.NewInputError("instant", "zero time")
	}
	north, south := ephemeris.LunarNodes(ephemeris.JulianCenturies(instant))
	return north, south, nil
}

// Chiron returns Chiron's longitude, from the ephemeris when it has the body
// and from the mean-longitude model otherwise.
func (p *PositionProvider) Chiron(ctx context.Context, instant time.Time, loc chart.GeoLocation) (float64, error) {
	pos, err := p.Position(ctx, chart.BodyChiron, instant, loc)
	return pos.Longitude, err
}

// Snapshot computes all fifteen bodies in parallel and joins them into one snapshot.
func (p *PositionProvider) Snapshot(ctx context.Context, moment chart.BirthMoment) (*chart.ChartSnapshot, error) {
	if moment.IsZero() {
		return nil, chart.NewInputError("moment", "zero birth moment")
	}
	var (
		mu       sync.Mutex
		raw      = make(map[chart.Body]float64, len(chart.AllBodies()))
		degraded bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, body := range chart.AllBodies() {
		body := body
		g.Go(func() error {
			reading, err := p.Locate(gctx, body, moment.Instant(), moment.Location())
			if err != nil {
				return fmt.Errorf("position provider: %s: %w", body, err)
			}
			mu.Lock()
			raw[body] = reading.Position.Longitude
			degraded = degraded || reading.Degraded
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if degraded && p.logger != nil {
		p.logger.Printf("snapshot degraded: key=%s", moment.Key())
	}
	return chart.NewSnapshot(moment, raw, degraded)
}

func newReading(body chart.Body, lon float64, source Source) Reading {
	return Reading{
		Position: chart.NewCelestialLongitude(body, lon),
		Degraded: source == SourceFallback,
		Source:   source,
	}
}

func checkRequest(instant time.Time, loc chart.GeoLocation) error {
	if instant.IsZero() {
		return chart.NewInputError("instant", "zero time")
	}
	return loc.Validate()
}

func (p *PositionProvider) rawPosition(ctx context.Context, body chart.Body, instant time.Time, loc chart.GeoLocation) (ephemeris.Equatorial, Source, error) {
	eq, err := p.primary.RawPosition(ctx, string(body), instant, loc.Latitude, loc.Longitude)
	if err == nil {
		return eq, SourcePrimary, nil
	}
	if !p.canFallback(err) {
		return ephemeris.Equatorial{}, "", err
	}
	p.noteFallback(string(body), err)
	eq, err = p.fallback.RawPosition(ctx, string(body), instant, loc.Latitude, loc.Longitude)
	if err != nil {
		return ephemeris.Equatorial{}, "", err
	}
	return eq, SourceFallback, nil
}

func (p *PositionProvider) siderealTime(ctx context.Context, instant time.Time, longitude float64) (float64, Source, error) {
	lst, err := p.primary.SiderealTime(ctx, instant, longitude)
	if err == nil {
		return lst, SourcePrimary, nil
	}
	if !p.canFallback(err) {
		return 0, "", err
	}
	p.noteFallback("sidereal_time", err)
	lst, err = p.fallback.SiderealTime(ctx, instant, longitude)
	if err != nil {
		return 0, "", err
	}
	return lst, SourceFallback, nil
}

// chiron asks the ephemeris first; a backend without Chiron data falls through to the formula.
func (p *PositionProvider) chiron(ctx context.Context, instant time.Time, loc chart.GeoLocation) (float64, Source, error) {
	eps := ephemeris.Obliquity(ephemeris.JulianCenturies(instant))
	name := string(chart.BodyChiron)
	eq, err := p.primary.RawPosition(ctx, name, instant, loc.Latitude, loc.Longitude)
	if err == nil {
		return ephemeris.EclipticLongitude(eq, eps), SourcePrimary, nil
	}
	source := SourceFormula
	if p.canFallback(err) {
		p.noteFallback(name, err)
		source = SourceFallback
		eq, err = p.fallback.RawPosition(ctx, name, instant, loc.Latitude, loc.Longitude)
		if err == nil {
			return ephemeris.EclipticLongitude(eq, eps), SourceFallback, nil
		}
	}
	if !errors.Is(err, ephemeris.ErrUnknownBody) {
		return 0, "", err
	}
	if p.logger != nil {
		p.logger.Printf("chiron formula: instant=%s degraded=%t", instant.UTC().Format(time.RFC3339), source == SourceFallback)
	}
	return ephemeris.ChironLongitude(instant), source, nil
}

func (p *PositionProvider) canFallback(err error) bool {
	return p.fallback != nil && errors.Is(err, ephemeris.ErrUnavailable)
}

func (p *PositionProvider) noteFallback(what string, err error) {
	metrics.IncEphemerisFallback(what)
	if p.logger != nil {
		p.logger.Printf("ephemeris fallback: body=%s err=%v", what, err)
	}
}
