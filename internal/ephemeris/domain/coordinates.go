package ephemeris

import (
	"math"
	"time"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	// J2000 is the Julian day of 2000-01-01T12:00 TT.
	J2000 = 2451545.0

	chironEccentricity       = 0.3786
	chironPerihelion         = 339.56
	chironMeanLongitudeJ2000 = 293.5
	chironMeanMotion         = 0.0195485 // degrees per day, ≈50.42 year period
)

// JulianDay converts an instant to a Julian day number. UTC is used for TT;
// the ~69s difference is below the precision of every consumer.
func JulianDay(t time.Time) float64 {
	u := t.UTC()
	return float64(u.Unix())/86400 + float64(u.Nanosecond())/86400e9 + 2440587.5
}

// JulianCenturies returns Julian centuries since J2000.0.
func JulianCenturies(t time.Time) float64 {
	return (JulianDay(t) - J2000) / 36525
}

// Obliquity returns the mean obliquity of the ecliptic in degrees.
func Obliquity(T float64) float64 {
	return 23.439291 - 0.0130042*T - 1.64e-7*T*T + 5.04e-7*T*T*T
}

// Normalize maps degrees into [0,360).
func Normalize(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// EclipticLongitude converts an equatorial position to ecliptic longitude in degrees:
// λ = atan2(sinRA·cosε + tanDec·sinε, cosRA).
func EclipticLongitude(eq Equatorial, obliquityDeg float64) float64 {
	eps := obliquityDeg * degToRad
	y := math.Sin(eq.RightAscension)*math.Cos(eps) + math.Tan(eq.Declination)*math.Sin(eps)
	x := math.Cos(eq.RightAscension)
	return Normalize(math.Atan2(y, x) * radToDeg)
}

// EquatorialFromEcliptic converts ecliptic longitude/latitude in degrees to an equatorial position.
func EquatorialFromEcliptic(lambdaDeg, betaDeg, obliquityDeg float64) Equatorial {
	lambda := lambdaDeg * degToRad
	beta := betaDeg * degToRad
	eps := obliquityDeg * degToRad
	ra := math.Atan2(math.Sin(lambda)*math.Cos(eps)-math.Tan(beta)*math.Sin(eps), math.Cos(lambda))
	dec := math.Asin(math.Sin(beta)*math.Cos(eps) + math.Cos(beta)*math.Sin(eps)*math.Sin(lambda))
	if ra < 0 {
		ra += 2 * math.Pi
	}
	return Equatorial{RightAscension: ra, Declination: dec}
}

// Ascendant returns the ecliptic longitude rising in the east:
// λ = atan2(cosLST, −(sinLST·cosε + tanLat·sinε)).
func Ascendant(lst, latitudeDeg, obliquityDeg float64) float64 {
	eps := obliquityDeg * degToRad
	lat := latitudeDeg * degToRad
	y := math.Cos(lst)
	x := -(math.Sin(lst)*math.Cos(eps) + math.Tan(lat)*math.Sin(eps))
	return Normalize(math.Atan2(y, x) * radToDeg)
}

// Midheaven returns the ecliptic longitude culminating on the meridian,
// the point whose right ascension equals the LST: tanλ = tanLST / cosε.
func Midheaven(lst, obliquityDeg float64) float64 {
	eps := obliquityDeg * degToRad
	return Normalize(math.Atan2(math.Sin(lst), math.Cos(lst)*math.Cos(eps)) * radToDeg)
}

// MeanLunarNode returns the longitude of the mean ascending lunar node in degrees.
func MeanLunarNode(T float64) float64 {
	return Normalize(125.04452 - 1934.136261*T + 0.0020708*T*T + T*T*T/450000)
}

// LunarNodes returns the north and south mean node longitudes.
func LunarNodes(T float64) (north, south float64) {
	omega := MeanLunarNode(T)
	return omega, Normalize(omega + 180)
}

// ChironLongitude is the mean-longitude model used when the backend has no Chiron data.
// The mean anomaly gets a 3rd-order equation-of-center correction.
func ChironLongitude(t time.Time) float64 {
	days := JulianDay(t) - J2000
	meanLongitude := Normalize(chironMeanLongitudeJ2000 + chironMeanMotion*days)
	m := (meanLongitude - chironPerihelion) * degToRad
	e := chironEccentricity
	center := (2*e-e*e*e/4)*math.Sin(m) +
		(5.0/4.0)*e*e*math.Sin(2*m) +
		(13.0/12.0)*e*e*e*math.Sin(3*m)
	return Normalize(meanLongitude + center*radToDeg)
}

// GreenwichSiderealTime returns GMST in degrees (Meeus 12.4).
func GreenwichSiderealTime(t time.Time) float64 {
	jd := JulianDay(t)
	T := (jd - J2000) / 36525
	gmst := 280.46061837 + 360.98564736629*(jd-J2000) + 0.000387933*T*T - T*T*T/38710000
	return Normalize(gmst)
}

// LocalSiderealTime returns the LST in radians for an east-positive longitude.
func LocalSiderealTime(t time.Time, longitudeDeg float64) float64 {
	return Normalize(GreenwichSiderealTime(t)+longitudeDeg) * degToRad
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * degToRad }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * radToDeg }
