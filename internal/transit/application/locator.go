package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"natal-engine/internal/chart/domain"
	"natal-engine/internal/observability/metrics"
)

const (
	// ConvergenceTolerance is the residual below which a solar return counts as converged.
	ConvergenceTolerance = 0.1

	defaultBackSamples    = 15
	defaultForwardSamples = 30
	defaultStep           = 48 * time.Hour
	exactRefineSamples    = 24
	scanParallelism       = 4
	solarMotion           = 0.9856

	// newYearSolarLongitude is the Sun's mean longitude at 0h UTC on January 1.
	newYearSolarLongitude = 280.0
)

// LongitudeSource yields ecliptic longitudes; the ephemeris position provider satisfies it.
type LongitudeSource interface {
	Position(ctx context.Context, body chart.Body, instant time.Time, loc chart.GeoLocation) (chart.CelestialLongitude, error)
}

// Locator runs the bounded event searches.
type Locator struct {
	source         LongitudeSource
	step           time.Duration
	backSamples    int
	forwardSamples int
	logger         *log.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithHorizon sets the transit search horizon in days and the base step in days.
func WithHorizon(backDays, forwardDays, stepDays int) Option {
	return func(l *Locator) {
		if stepDays <= 0 || backDays <= 0 || forwardDays <= 0 {
			return
		}
		l.step = time.Duration(stepDays) * 24 * time.Hour
		l.backSamples = backDays / stepDays
		l.forwardSamples = forwardDays / stepDays
	}
}

// WithLogger sets the logger; nil disables logging.
func WithLogger(logger *log.Logger) Option {
	return func(l *Locator) {
		l.logger = logger
	}
}

// NewLocator constructs a locator over a longitude source.
func NewLocator(source LongitudeSource, opts ...Option) (*Locator, error) {
	if source == nil {
		return nil, errors.New("transit locator: nil longitude source")
	}
	l := &Locator{
		source:         source,
		step:           defaultStep,
		backSamples:    defaultBackSamples,
		forwardSamples: defaultForwardSamples,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// SolarReturnQuery describes one solar return search.
type SolarReturnQuery struct {
	NatalSunLongitude float64
	TargetYear        int
	Location          chart.GeoLocation
	// Birth, when set, gives the calendar anniversary; otherwise it is estimated
	// from the longitude.
	Birth time.Time
}

// SolarReturn is the located instant with its precision indicator.
type SolarReturn struct {
	Instant   time.Time
	Residual  float64
	Converged bool
	Samples   int
}

// SolarReturn finds the instant the Sun comes back to its natal longitude in
// the target year: a day-step scan over ±3 days around the anniversary, an
// hour-step scan over ±24h, then five-minute steps over ±1h. Samples that fail
// are skipped; if every sample fails the anniversary is returned unconverged.
func (l *Locator) SolarReturn(ctx context.Context, q SolarReturnQuery) (SolarReturn, error) {
	if math.IsNaN(q.NatalSunLongitude) || math.IsInf(q.NatalSunLongitude, 0) {
		return SolarReturn{}, chart.NewInputError("longitude", "natal sun longitude is not finite")
	}
	if q.TargetYear < 1 || q.TargetYear > 9999 {
		return SolarReturn{}, chart.NewInputError("year", fmt.Sprintf("target year %d out of range", q.TargetYear))
	}
	if err := q.Location.Validate(); err != nil {
		return SolarReturn{}, err
	}
	target := chart.NormalizeDegrees(q.NatalSunLongitude)
	anniversary := l.anniversaryOf(ctx, q, target)

	best := searchMin{residual: math.Inf(1)}
	best.scan(ctx, l, anniversary, 24*time.Hour, 3, target, q.Location)
	if best.found {
		best.scan(ctx, l, best.instant, time.Hour, 24, target, q.Location)
		best.scan(ctx, l, best.instant, 5*time.Minute, 12, target, q.Location)
	}
	metrics.AddTransitSamples("solar_return", metrics.ResultSuccess, best.samples)
	metrics.AddTransitSamples("solar_return", metrics.ResultError, best.failures)
	if err := ctx.Err(); err != nil {
		return SolarReturn{}, err
	}

	if !best.found {
		if l.logger != nil {
			l.logger.Printf("solar return unresolved: year=%d failures=%d", q.TargetYear, best.failures)
		}
		return SolarReturn{Instant: anniversary, Residual: 180, Samples: best.samples}, nil
	}
	metrics.ObserveSolarReturnResidual(best.residual)
	return SolarReturn{
		Instant:   best.instant,
		Residual:  best.residual,
		Converged: best.residual < ConvergenceTolerance,
		Samples:   best.samples,
	}, nil
}

// anniversaryOf re-years the birth date, or without one estimates the day from
// the Sun's longitude on January 1 at mean solar motion and corrects it once
// against the ephemeris.
func (l *Locator) anniversaryOf(ctx context.Context, q SolarReturnQuery, target float64) time.Time {
	if !q.Birth.IsZero() {
		b := q.Birth.UTC()
		return time.Date(q.TargetYear, b.Month(), b.Day(), b.Hour(), b.Minute(), b.Second(), 0, time.UTC)
	}
	newYear := time.Date(q.TargetYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	estimate := newYear.Add(days(chart.NormalizeDegrees(target-newYearSolarLongitude) / solarMotion))
	pos, err := l.source.Position(ctx, chart.BodySun, estimate, q.Location)
	if err != nil {
		return estimate
	}
	diff := math.Mod(target-pos.Longitude+540, 360) - 180
	return estimate.Add(days(diff / solarMotion))
}

func days(n float64) time.Duration {
	return time.Duration(n * float64(24*time.Hour))
}

type searchMin struct {
	instant  time.Time
	residual float64
	found    bool
	samples  int
	failures int
}

func (s *searchMin) scan(ctx context.Context, l *Locator, center time.Time, step time.Duration, radius int, target float64, loc chart.GeoLocation) {
	for k := -radius; k <= radius; k++ {
		t := center.Add(time.Duration(k) * step)
		pos, err := l.source.Position(ctx, chart.BodySun, t, loc)
		if err != nil {
			s.failures++
			continue
		}
		s.samples++
		if d := chart.ShortestAngularDistance(pos.Longitude, target); d < s.residual {
			s.residual = d
			s.instant = t
			s.found = true
		}
	}
}

// TransitQuery describes one transit window search.
type TransitQuery struct {
	Body           chart.Body
	NatalPoint     chart.Body
	NatalLongitude float64
	Aspect         chart.AspectType
	Reference      time.Time
	// Orb defaults to the aspect's own orb.
	Orb      float64
	Location chart.GeoLocation
}

func (q TransitQuery) validate() error {
	if !q.Body.Valid() || q.Body.IsAngle() {
		return chart.NewInputError("body", fmt.Sprintf("%q cannot transit", q.Body))
	}
	if !q.Aspect.Valid() {
		return chart.NewInputError("aspect", fmt.Sprintf("unknown aspect %q", q.Aspect))
	}
	if q.Reference.IsZero() {
		return chart.NewInputError("instant", "zero reference date")
	}
	if math.IsNaN(q.NatalLongitude) || math.IsInf(q.NatalLongitude, 0) {
		return chart.NewInputError("longitude", "natal longitude is not finite")
	}
	if q.Orb < 0 {
		return chart.NewInputError("orb", "negative orb")
	}
	return q.Location.Validate()
}

// TransitWindow finds the window around the reference date during which the
// transiting body holds the aspect to the natal longitude. found is false when
// no sample of the horizon is within orb.
func (l *Locator) TransitWindow(ctx context.Context, q TransitQuery) (chart.TransitEvent, bool, error) {
	if err := q.validate(); err != nil {
		return chart.TransitEvent{}, false, err
	}
	if q.Orb == 0 {
		q.Orb = q.Aspect.Orb()
	}
	if isSlowBody(q.Body) {
		return l.slowWindow(ctx, q)
	}
	grid := l.sampleGrid(ctx, q.Body, q.Reference, q.Location)
	if err := ctx.Err(); err != nil {
		return chart.TransitEvent{}, false, err
	}
	event, found := l.windowFromGrid(ctx, grid, q)
	return event, found, nil
}

// Scan reports every transit active at the reference date between the
// transiting bodies and the natal snapshot's points, searched in parallel.
func (l *Locator) Scan(ctx context.Context, natal *chart.ChartSnapshot, reference time.Time, transiting []chart.Body) ([]chart.TransitEvent, error) {
	if natal == nil {
		return nil, chart.ErrNilSnapshot
	}
	if reference.IsZero() {
		return nil, chart.NewInputError("instant", "zero reference date")
	}
	if len(transiting) == 0 {
		transiting = chart.Planets()
	}
	for _, body := range transiting {
		if !body.Valid() || body.IsAngle() {
			return nil, chart.NewInputError("body", fmt.Sprintf("%q cannot transit", body))
		}
	}
	loc := natal.Moment().Location()
	results := make([][]chart.TransitEvent, len(transiting))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for i, body := range transiting {
		i, body := i, body
		g.Go(func() error {
			events, err := l.scanBody(gctx, natal, body, reference, loc)
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []chart.TransitEvent
	for _, events := range results {
		out = append(out, events...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		if out[i].TransitingBody != out[j].TransitingBody {
			return out[i].TransitingBody.Before(out[j].TransitingBody)
		}
		return out[i].NatalPoint.Before(out[j].NatalPoint)
	})
	return out, nil
}

func (l *Locator) scanBody(ctx context.Context, natal *chart.ChartSnapshot, body chart.Body, reference time.Time, loc chart.GeoLocation) ([]chart.TransitEvent, error) {
	var grid []sample
	if !isSlowBody(body) {
		grid = l.sampleGrid(ctx, body, reference, loc)
	}
	var events []chart.TransitEvent
	for _, point := range natal.Bodies() {
		natalLon, _ := natal.Raw(point)
		for _, aspect := range chart.AspectTypes() {
			q := TransitQuery{
				Body:           body,
				NatalPoint:     point,
				NatalLongitude: natalLon,
				Aspect:         aspect,
				Reference:      reference,
				Orb:            aspect.Orb(),
				Location:       loc,
			}
			var (
				event chart.TransitEvent
				found bool
				err   error
			)
			if isSlowBody(body) {
				event, found, err = l.slowWindow(ctx, q)
				if err != nil {
					return nil, err
				}
			} else {
				event, found = l.windowFromGrid(ctx, grid, q)
			}
			if found && event.IsActive {
				events = append(events, event)
			}
		}
	}
	return events, ctx.Err()
}

type sample struct {
	at        time.Time
	deviation float64
	longitude float64
	ok        bool
}

// sampleGrid evaluates the body from -back to +forward steps around the reference.
func (l *Locator) sampleGrid(ctx context.Context, body chart.Body, reference time.Time, loc chart.GeoLocation) []sample {
	step := stepFor(body, l.step)
	grid := make([]sample, 0, l.backSamples+l.forwardSamples+1)
	var failures int
	for k := -l.backSamples; k <= l.forwardSamples; k++ {
		t := reference.Add(time.Duration(k) * step)
		pos, err := l.source.Position(ctx, body, t, loc)
		if err != nil {
			failures++
			grid = append(grid, sample{at: t})
			continue
		}
		grid = append(grid, sample{at: t, longitude: pos.Longitude, ok: true})
	}
	metrics.AddTransitSamples("transit", metrics.ResultSuccess, len(grid)-failures)
	metrics.AddTransitSamples("transit", metrics.ResultError, failures)
	if failures > 0 && l.logger != nil {
		l.logger.Printf("transit samples skipped: body=%s failures=%d", body, failures)
	}
	return grid
}

// windowFromGrid finds the in-orb run holding the reference (or the first one
// after it), interpolates its boundaries and refines the exact date.
func (l *Locator) windowFromGrid(ctx context.Context, grid []sample, q TransitQuery) (chart.TransitEvent, bool) {
	devs := make([]sample, len(grid))
	for i, s := range grid {
		devs[i] = s
		if s.ok {
			devs[i].deviation = q.Aspect.Deviation(chart.ShortestAngularDistance(s.longitude, q.NatalLongitude))
		}
	}
	in := func(i int) bool { return devs[i].ok && devs[i].deviation <= q.Orb }

	refIdx := l.backSamples
	if refIdx >= len(devs) {
		return chart.TransitEvent{}, false
	}
	start := -1
	for i := refIdx; i >= 0; i-- {
		if !devs[i].ok {
			continue
		}
		if in(i) {
			start = i
		}
		break
	}
	if start < 0 {
		for i := refIdx + 1; i < len(devs); i++ {
			if in(i) {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return chart.TransitEvent{}, false
	}

	// Extend the run across skipped samples in both directions.
	first, last := start, start
	entry, exit := -1, -1
	for i := start - 1; i >= 0; i-- {
		if !devs[i].ok {
			continue
		}
		if !in(i) {
			entry = i
			break
		}
		first = i
	}
	for i := start + 1; i < len(devs); i++ {
		if !devs[i].ok {
			continue
		}
		if !in(i) {
			exit = i
			break
		}
		last = i
	}

	best := first
	for i := first; i <= last; i++ {
		if devs[i].ok && devs[i].deviation < devs[best].deviation {
			best = i
		}
	}
	exact := l.refineExact(ctx, q, devs[best])

	event := chart.TransitEvent{
		TransitingBody: q.Body,
		NatalPoint:     q.NatalPoint,
		NatalLongitude: chart.NormalizeDegrees(q.NatalLongitude),
		Aspect:         q.Aspect,
		Orb:            q.Orb,
		ExactDate:      exact,
	}
	halfSpan := transitDuration(q.Body, q.Aspect) / 2
	if entry >= 0 {
		event.StartDate = crossing(devs[entry], devs[first], q.Orb)
	} else {
		event.StartDate = exact.Add(-halfSpan)
		event.Estimated = true
	}
	if exit >= 0 {
		event.EndDate = crossing(devs[last], devs[exit], q.Orb)
	} else {
		event.EndDate = exact.Add(halfSpan)
		event.Estimated = true
	}
	if event.StartDate.After(event.EndDate) {
		event.StartDate, event.EndDate = event.EndDate, event.StartDate
	}
	event.IsActive = event.Covers(q.Reference)
	return event, true
}

// refineExact scans one step either side of the best grid sample at a finer step.
func (l *Locator) refineExact(ctx context.Context, q TransitQuery, best sample) time.Time {
	step := stepFor(q.Body, l.step)
	fine := step / exactRefineSamples
	if fine <= 0 {
		return best.at
	}
	exact, bestDev := best.at, best.deviation
	for k := -exactRefineSamples; k <= exactRefineSamples; k++ {
		if k == 0 {
			continue
		}
		t := best.at.Add(time.Duration(k) * fine)
		pos, err := l.source.Position(ctx, q.Body, t, q.Location)
		if err != nil {
			continue
		}
		if d := q.Aspect.Deviation(chart.ShortestAngularDistance(pos.Longitude, q.NatalLongitude)); d < bestDev {
			bestDev = d
			exact = t
		}
	}
	return exact
}

// crossing interpolates the instant the deviation passes through the orb between two samples.
func crossing(a, b sample, orb float64) time.Time {
	span := b.at.Sub(a.at)
	delta := b.deviation - a.deviation
	if delta == 0 {
		return a.at
	}
	fraction := (orb - a.deviation) / delta
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return a.at.Add(time.Duration(fraction * float64(span)))
}

// slowWindow centers the duration-table window on the reference date.
func (l *Locator) slowWindow(ctx context.Context, q TransitQuery) (chart.TransitEvent, bool, error) {
	pos, err := l.source.Position(ctx, q.Body, q.Reference, q.Location)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return chart.TransitEvent{}, false, ctxErr
		}
		if errors.Is(err, chart.ErrInput) {
			return chart.TransitEvent{}, false, err
		}
		if l.logger != nil {
			l.logger.Printf("slow transit sample skipped: body=%s err=%v", q.Body, err)
		}
		return chart.TransitEvent{}, false, nil
	}
	metrics.AddTransitSamples("transit_slow", metrics.ResultSuccess, 1)
	deviation := q.Aspect.Deviation(chart.ShortestAngularDistance(pos.Longitude, q.NatalLongitude))
	if deviation > q.Orb {
		return chart.TransitEvent{}, false, nil
	}
	half := slowTransitDuration(q.Aspect) / 2
	return chart.TransitEvent{
		TransitingBody: q.Body,
		NatalPoint:     q.NatalPoint,
		NatalLongitude: chart.NormalizeDegrees(q.NatalLongitude),
		Aspect:         q.Aspect,
		Orb:            q.Orb,
		StartDate:      q.Reference.Add(-half),
		ExactDate:      q.Reference,
		EndDate:        q.Reference.Add(half),
		IsActive:       true,
		Estimated:      true,
	}, true, nil
}
