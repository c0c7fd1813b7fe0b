package chart

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// Clock provides time for domain services.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// GeoLocation is an observer position in degrees, east longitude positive.
type GeoLocation struct {
	Latitude  float64
	Longitude float64
}

// NewGeoLocation validates coordinate ranges.
func NewGeoLocation(latitude, longitude float64) (GeoLocation, error) {
	loc := GeoLocation{Latitude: latitude, Longitude: longitude}
	if err := loc.Validate(); err != nil {
		return GeoLocation{}, err
	}
	return loc, nil
}

// Validate checks latitude ∈ [-90,90] and longitude ∈ [-180,180].
func (g GeoLocation) Validate() error {
	if math.IsNaN(g.Latitude) || g.Latitude < -90 || g.Latitude > 90 {
		return NewInputError("latitude", fmt.Sprintf("%v out of range [-90,90]", g.Latitude))
	}
	if math.IsNaN(g.Longitude) || g.Longitude < -180 || g.Longitude > 180 {
		return NewInputError("longitude", fmt.Sprintf("%v out of range [-180,180]", g.Longitude))
	}
	return nil
}

// BirthMoment is a civil birth date and time at a place. It is immutable.
type BirthMoment struct {
	date     string
	clock    string
	zone     string
	location GeoLocation
	instant  time.Time
}

// NewBirthMoment parses a civil date (2006-01-02) and time (15:04 or 15:04:05)
// in the IANA zone; an empty zone means UTC.
func NewBirthMoment(date, clock string, latitude, longitude float64, zone string) (BirthMoment, error) {
	loc, err := NewGeoLocation(latitude, longitude)
	if err != nil {
		return BirthMoment{}, err
	}
	if zone == "" {
		zone = "UTC"
	}
	tz, err := time.LoadLocation(zone)
	if err != nil {
		return BirthMoment{}, NewInputError("zone", err.Error())
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return BirthMoment{}, NewInputError("date", err.Error())
	}
	tod, err := parseClock(clock)
	if err != nil {
		return BirthMoment{}, err
	}
	local := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, tz)
	return BirthMoment{
		date:     day.Format(dateLayout),
		clock:    tod.Format(clockLayout),
		zone:     zone,
		location: loc,
		instant:  local.UTC(),
	}, nil
}

// BirthMomentAt builds a moment from an absolute instant; the civil fields use the instant's zone.
// Zones that are not loadable by name, such as fixed offsets, fall back to UTC civil fields
// so the moment can be rebuilt from its stored form.
func BirthMomentAt(instant time.Time, location GeoLocation) (BirthMoment, error) {
	if instant.IsZero() {
		return BirthMoment{}, NewInputError("instant", "zero time")
	}
	if err := location.Validate(); err != nil {
		return BirthMoment{}, err
	}
	zone := instant.Location().String()
	if _, err := time.LoadLocation(zone); err != nil || zone == "Local" {
		instant = instant.UTC()
		zone = "UTC"
	}
	return BirthMoment{
		date:     instant.Format(dateLayout),
		clock:    instant.Format(clockLayout),
		zone:     zone,
		location: location,
		instant:  instant.UTC(),
	}, nil
}

func parseClock(value string) (time.Time, error) {
	for _, layout := range []string{clockLayout, "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewInputError("time", "expected HH:MM or HH:MM:SS, got "+value)
}

// Date returns the civil date as 2006-01-02.
func (m BirthMoment) Date() string { return m.date }

// Clock returns the local time of day as 15:04:05.
func (m BirthMoment) Clock() string { return m.clock }

// Zone returns the IANA zone name.
func (m BirthMoment) Zone() string { return m.zone }

// Location returns the birth coordinates.
func (m BirthMoment) Location() GeoLocation { return m.location }

// Instant returns the UTC instant.
func (m BirthMoment) Instant() time.Time { return m.instant }

// IsZero reports whether m was never initialized.
func (m BirthMoment) IsZero() bool { return m.instant.IsZero() }

// Key identifies the moment for caching and storage.
func (m BirthMoment) Key() string {
	return fmt.Sprintf("%s|%s|%.6f|%.6f|%s", m.date, m.clock, m.location.Latitude, m.location.Longitude, m.zone)
}

// CelestialLongitude is a body's ecliptic longitude with its derived sign and degree.
// Invariant: Sign == SignOf(Longitude) and DegreeInSign == Longitude mod 30.
type CelestialLongitude struct {
	Body         Body
	Longitude    float64
	Sign         Sign
	DegreeInSign float64
}

// NewCelestialLongitude normalizes longitude into [0,360) and derives sign and degree.
func NewCelestialLongitude(body Body, longitude float64) CelestialLongitude {
	lon := NormalizeDegrees(longitude)
	return CelestialLongitude{
		Body:         body,
		Longitude:    lon,
		Sign:         SignOf(lon),
		DegreeInSign: DegreeInSign(lon),
	}
}

// SignLabel returns the stored sign name.
func (c CelestialLongitude) SignLabel() string { return c.Sign.Label() }

// ChartSnapshot is an immutable set of positions for one birth moment.
// The raw longitude map is the source of truth; positions are derived from it
// unless restored from storage, in which case the validator reconciles them.
type ChartSnapshot struct {
	moment    BirthMoment
	raw       map[Body]float64
	positions map[Body]CelestialLongitude
	degraded  bool
}

// NewSnapshot builds a snapshot whose positions are derived from raw longitudes.
func NewSnapshot(moment BirthMoment, raw map[Body]float64, degraded bool) (*ChartSnapshot, error) {
	if err := checkRaw(raw); err != nil {
		return nil, err
	}
	s := &ChartSnapshot{
		moment:    moment,
		raw:       make(map[Body]float64, len(raw)),
		positions: make(map[Body]CelestialLongitude, len(raw)),
		degraded:  degraded,
	}
	for body, lon := range raw {
		pos := NewCelestialLongitude(body, lon)
		s.raw[body] = pos.Longitude
		s.positions[body] = pos
	}
	return s, nil
}

// RestoreSnapshot rebuilds a snapshot with previously stored positions, which may
// disagree with the raw longitudes. Bodies with a raw value but no stored position
// get no position until validated.
func RestoreSnapshot(moment BirthMoment, raw map[Body]float64, stored []CelestialLongitude, degraded bool) (*ChartSnapshot, error) {
	if err := checkRaw(raw); err != nil {
		return nil, err
	}
	s := &ChartSnapshot{
		moment:    moment,
		raw:       make(map[Body]float64, len(raw)),
		positions: make(map[Body]CelestialLongitude, len(stored)),
		degraded:  degraded,
	}
	for body, lon := range raw {
		s.raw[body] = NormalizeDegrees(lon)
	}
	for _, pos := range stored {
		if _, ok := s.raw[pos.Body]; !ok {
			return nil, NewInputError("positions", "stored position without raw longitude: "+string(pos.Body))
		}
		if !pos.Sign.Valid() {
			return nil, NewInputError("positions", "invalid sign for "+string(pos.Body))
		}
		s.positions[pos.Body] = pos
	}
	return s, nil
}

func checkRaw(raw map[Body]float64) error {
	for body, lon := range raw {
		if !body.Valid() {
			return NewInputError("body", "unknown body "+string(body))
		}
		if math.IsNaN(lon) || math.IsInf(lon, 0) {
			return NewInputError("longitude", "non-finite value for "+string(body))
		}
	}
	return nil
}

// Moment returns the birth moment the snapshot was computed for.
func (s *ChartSnapshot) Moment() BirthMoment { return s.moment }

// Degraded reports whether any position came from the lower-precision provider.
func (s *ChartSnapshot) Degraded() bool { return s.degraded }

// Raw returns the authoritative longitude of a body.
func (s *ChartSnapshot) Raw(body Body) (float64, bool) {
	lon, ok := s.raw[body]
	return lon, ok
}

// RawLongitudes returns a copy of the raw longitude map.
func (s *ChartSnapshot) RawLongitudes() map[Body]float64 {
	out := make(map[Body]float64, len(s.raw))
	for body, lon := range s.raw {
		out[body] = lon
	}
	return out
}

// Position returns the stored position of a body.
func (s *ChartSnapshot) Position(body Body) (CelestialLongitude, bool) {
	pos, ok := s.positions[body]
	return pos, ok
}

// Bodies returns the bodies with a raw longitude in canonical order.
func (s *ChartSnapshot) Bodies() []Body {
	bodies := make([]Body, 0, len(s.raw))
	for body := range s.raw {
		bodies = append(bodies, body)
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].Before(bodies[j]) })
	return bodies
}

// Positions returns stored positions in canonical order.
func (s *ChartSnapshot) Positions() []CelestialLongitude {
	out := make([]CelestialLongitude, 0, len(s.positions))
	for _, body := range s.Bodies() {
		if pos, ok := s.positions[body]; ok {
			out = append(out, pos)
		}
	}
	return out
}

// WithPositions returns a copy of s with the given positions replaced.
func (s *ChartSnapshot) WithPositions(replacements ...CelestialLongitude) *ChartSnapshot {
	next := &ChartSnapshot{
		moment:    s.moment,
		raw:       s.RawLongitudes(),
		positions: make(map[Body]CelestialLongitude, len(s.positions)+len(replacements)),
		degraded:  s.degraded,
	}
	for body, pos := range s.positions {
		next.positions[body] = pos
	}
	for _, pos := range replacements {
		next.positions[pos.Body] = pos
	}
	return next
}
