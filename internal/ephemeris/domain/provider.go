package ephemeris

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the ephemeris backend cannot be reached.
	ErrUnavailable = errors.New("ephemeris: backend unavailable")
	// ErrUnknownBody is returned when the backend has no data for a body.
	ErrUnknownBody = errors.New("ephemeris: unknown body")
)

// Equatorial is a geocentric apparent position in radians.
type Equatorial struct {
	RightAscension float64
	Declination    float64
}

// RawProvider is the numeric ephemeris oracle.
// Implementations fail explicitly on unknown bodies or an unreachable backend;
// they never return zero coordinates in place of an error.
type RawProvider interface {
	RawPosition(ctx context.Context, body string, instant time.Time, latitude, longitude float64) (Equatorial, error)
	// SiderealTime returns the local sidereal time in radians.
	SiderealTime(ctx context.Context, instant time.Time, longitude float64) (float64, error)
}
