package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"natal-engine/internal/chart/application"
	"natal-engine/internal/chart/domain"
)

const issuer = "natal-engine"

var (
	// ErrEmptySecret is returned when a signer is built without a secret.
	ErrEmptySecret = errors.New("attestation: empty secret")
	// ErrDigestMismatch is returned when a chart no longer matches its attestation.
	ErrDigestMismatch = errors.New("attestation: chart digest mismatch")
)

// Claims bind a text generator to the exact validated numbers of one chart.
type Claims struct {
	ChartKey   string `json:"chart_key"`
	Digest     string `json:"digest"`
	Valid      bool   `json:"valid"`
	ErrorCount int    `json:"error_count"`
	Degraded   bool   `json:"degraded"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 chart attestations.
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  chart.Clock
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the clock.
func WithClock(clock chart.Clock) Option {
	return func(s *Signer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSigner constructs a signer; ttl <= 0 means tokens never expire.
func NewSigner(secret []byte, ttl time.Duration, opts ...Option) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	s := &Signer{secret: secret, ttl: ttl, clock: chart.SystemClock{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Digest hashes the raw longitudes and the report of a chart.
func Digest(natal *application.NatalChart) (string, error) {
	if natal == nil || natal.Snapshot == nil {
		return "", errors.New("attestation: nil chart")
	}
	payload := struct {
		Key    string                 `json:"key"`
		Raw    map[chart.Body]float64 `json:"raw"`
		Report any                    `json:"report"`
	}{
		Key:    natal.Key,
		Raw:    natal.Snapshot.RawLongitudes(),
		Report: natal.Report,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Issue signs an attestation for a chart.
func (s *Signer) Issue(natal *application.NatalChart) (string, *Claims, error) {
	digest, err := Digest(natal)
	if err != nil {
		return "", nil, err
	}
	now := s.clock.Now()
	claims := &Claims{
		ChartKey:   natal.Key,
		Digest:     digest,
		Valid:      natal.Report.IsValid(),
		ErrorCount: natal.Report.ErrorCount(),
		Degraded:   natal.Snapshot.Degraded(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   issuer,
			Subject:  natal.Key,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("attestation: sign: %w", err)
	}
	return token, claims, nil
}

// Parse validates a token's signature and expiry and returns its claims.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("attestation: empty token")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("attestation: invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("attestation: invalid token")
	}
	if claims.ChartKey == "" || claims.Digest == "" {
		return nil, errors.New("attestation: missing chart claims")
	}
	return claims, nil
}

// Verify parses the token and checks it still matches the chart.
func (s *Signer) Verify(tokenString string, natal *application.NatalChart) (*Claims, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	digest, err := Digest(natal)
	if err != nil {
		return nil, err
	}
	if claims.ChartKey != natal.Key || claims.Digest != digest {
		return nil, ErrDigestMismatch
	}
	return claims, nil
}
