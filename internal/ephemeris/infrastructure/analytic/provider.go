package analytic

import (
	"context"
	"fmt"
	"math"
	"time"

	"natal-engine/internal/ephemeris/domain"
)

// generalPrecession is the precession in longitude per Julian century, in degrees.
const generalPrecession = 1.396971

// Provider is a lower-precision ephemeris computed from analytic series:
// the Sun from the low-precision solar theory, the Moon from its principal
// periodic terms and the planets from Keplerian mean elements. Accuracy is
// roughly 0.01° for the Sun, 0.3° for the Moon and under 1° for the planets
// between 1800 and 2050. It has no data for Chiron.
type Provider struct{}

// NewProvider constructs the analytic provider.
func NewProvider() *Provider {
	return &Provider{}
}

// RawPosition returns the geocentric equatorial position of body, mean equinox of date.
func (p *Provider) RawPosition(ctx context.Context, body string, instant time.Time, latitude, longitude float64) (ephemeris.Equatorial, error) {
	if err := ctx.Err(); err != nil {
		return ephemeris.Equatorial{}, err
	}
	if instant.IsZero() {
		return ephemeris.Equatorial{}, fmt.Errorf("analytic ephemeris: zero instant")
	}
	lambda, beta, err := p.EclipticPosition(body, instant)
	if err != nil {
		return ephemeris.Equatorial{}, err
	}
	T := ephemeris.JulianCenturies(instant)
	return ephemeris.EquatorialFromEcliptic(lambda, beta, ephemeris.Obliquity(T)), nil
}

// SiderealTime returns the local mean sidereal time in radians.
func (p *Provider) SiderealTime(ctx context.Context, instant time.Time, longitude float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if instant.IsZero() {
		return 0, fmt.Errorf("analytic ephemeris: zero instant")
	}
	return ephemeris.LocalSiderealTime(instant, longitude), nil
}

// EclipticPosition returns geocentric ecliptic longitude and latitude in degrees.
func (p *Provider) EclipticPosition(body string, instant time.Time) (float64, float64, error) {
	T := ephemeris.JulianCenturies(instant)
	switch body {
	case "sun":
		return sunLongitude(T), 0, nil
	case "moon":
		lambda, beta := moonPosition(T)
		return lambda, beta, nil
	}
	planet, ok := elementsByBody[body]
	if !ok || body == "earth" {
		return 0, 0, fmt.Errorf("analytic ephemeris: %w: %s", ephemeris.ErrUnknownBody, body)
	}
	px, py, pz := heliocentric(planet, T)
	ex, ey, ez := heliocentric(elementsByBody["earth"], T)
	x, y, z := px-ex, py-ey, pz-ez
	lambda := math.Atan2(y, x)*180/math.Pi + generalPrecession*T
	beta := math.Atan2(z, math.Hypot(x, y)) * 180 / math.Pi
	return ephemeris.Normalize(lambda), beta, nil
}

// sunLongitude is the Sun's geometric longitude, mean equinox of date (Meeus ch. 25).
func sunLongitude(T float64) float64 {
	l0 := 280.46646 + 36000.76983*T + 0.0003032*T*T
	m := ephemeris.DegToRad(357.52911 + 35999.05029*T - 0.0001537*T*T)
	c := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(m) +
		(0.019993-0.000101*T)*math.Sin(2*m) +
		0.000289*math.Sin(3*m)
	return ephemeris.Normalize(l0 + c)
}

// moonPosition uses the largest periodic terms of the lunar theory.
func moonPosition(T float64) (float64, float64) {
	lp := 218.3164477 + 481267.88123421*T
	d := ephemeris.DegToRad(297.8501921 + 445267.1114034*T)
	m := ephemeris.DegToRad(357.5291092 + 35999.0502909*T)
	mp := ephemeris.DegToRad(134.9633964 + 477198.8675055*T)
	f := ephemeris.DegToRad(93.2720950 + 483202.0175233*T)

	lambda := lp +
		6.288774*math.Sin(mp) +
		1.274027*math.Sin(2*d-mp) +
		0.658314*math.Sin(2*d) +
		0.213618*math.Sin(2*mp) -
		0.185116*math.Sin(m) -
		0.114332*math.Sin(2*f) +
		0.058793*math.Sin(2*d-2*mp) +
		0.057066*math.Sin(2*d-m-mp) +
		0.053322*math.Sin(2*d+mp) +
		0.045758*math.Sin(2*d-m)
	beta := 5.128122*math.Sin(f) +
		0.280602*math.Sin(mp+f) +
		0.277693*math.Sin(mp-f) +
		0.173237*math.Sin(2*d-f)
	return ephemeris.Normalize(lambda), beta
}

// heliocentric returns J2000 ecliptic coordinates in AU.
func heliocentric(el orbitalElements, T float64) (float64, float64, float64) {
	a := el.a + el.aDot*T
	e := el.e + el.eDot*T
	inc := ephemeris.DegToRad(el.i + el.iDot*T)
	l := el.l + el.lDot*T
	peri := el.peri + el.periDot*T
	node := el.node + el.nodeDot*T

	omega := ephemeris.DegToRad(peri - node)
	bigOmega := ephemeris.DegToRad(node)
	m := ephemeris.DegToRad(ephemeris.Normalize(l - peri))

	ecc := solveKepler(m, e)
	xp := a * (math.Cos(ecc) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(ecc)

	cw, sw := math.Cos(omega), math.Sin(omega)
	cn, sn := math.Cos(bigOmega), math.Sin(bigOmega)
	ci, si := math.Cos(inc), math.Sin(inc)

	x := (cw*cn-sw*sn*ci)*xp + (-sw*cn-cw*sn*ci)*yp
	y := (cw*sn+sw*cn*ci)*xp + (-sw*sn+cw*cn*ci)*yp
	z := (sw*si)*xp + (cw*si)*yp
	return x, y, z
}

func solveKepler(m, e float64) float64 {
	ecc := m + e*math.Sin(m)
	for i := 0; i < 12; i++ {
		delta := (ecc - e*math.Sin(ecc) - m) / (1 - e*math.Cos(ecc))
		ecc -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return ecc
}
