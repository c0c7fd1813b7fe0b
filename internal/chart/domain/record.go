package chart

import (
	"context"
	"errors"
	"time"
)

// PositionRecord is the persisted form of a CelestialLongitude.
type PositionRecord struct {
	Body         Body    `json:"body"`
	Longitude    float64 `json:"longitude"`
	Sign         string  `json:"sign"`
	DegreeInSign float64 `json:"degree_in_sign"`
}

// ChartRecord is the serializable form of a validated snapshot, keyed by user and birth moment.
type ChartRecord struct {
	UserID     string           `json:"user_id"`
	BirthKey   string           `json:"birth_key"`
	BirthDate  string           `json:"birth_date"`
	BirthTime  string           `json:"birth_time"`
	Zone       string           `json:"zone"`
	Latitude   float64          `json:"latitude"`
	Longitude  float64          `json:"longitude"`
	Raw        map[Body]float64 `json:"raw"`
	Positions  []PositionRecord `json:"positions"`
	IsValid    bool             `json:"is_valid"`
	ErrorCount int              `json:"error_count"`
	Degraded   bool             `json:"degraded"`
	ComputedAt time.Time        `json:"computed_at"`
}

// NewChartRecord captures a snapshot and its validation outcome for storage.
func NewChartRecord(userID string, snap *ChartSnapshot, isValid bool, errorCount int, computedAt time.Time) (ChartRecord, error) {
	if userID == "" {
		return ChartRecord{}, errors.New("chart record: empty user id")
	}
	if snap == nil {
		return ChartRecord{}, ErrNilSnapshot
	}
	moment := snap.Moment()
	positions := snap.Positions()
	record := ChartRecord{
		UserID:     userID,
		BirthKey:   moment.Key(),
		BirthDate:  moment.Date(),
		BirthTime:  moment.Clock(),
		Zone:       moment.Zone(),
		Latitude:   moment.Location().Latitude,
		Longitude:  moment.Location().Longitude,
		Raw:        snap.RawLongitudes(),
		Positions:  make([]PositionRecord, 0, len(positions)),
		IsValid:    isValid,
		ErrorCount: errorCount,
		Degraded:   snap.Degraded(),
		ComputedAt: computedAt.UTC(),
	}
	for _, pos := range positions {
		record.Positions = append(record.Positions, PositionRecord{
			Body:         pos.Body,
			Longitude:    pos.Longitude,
			Sign:         pos.SignLabel(),
			DegreeInSign: pos.DegreeInSign,
		})
	}
	return record, nil
}

// Moment rebuilds the birth moment of the record.
func (r ChartRecord) Moment() (BirthMoment, error) {
	return NewBirthMoment(r.BirthDate, r.BirthTime, r.Latitude, r.Longitude, r.Zone)
}

// Snapshot restores the stored snapshot. Stored signs are kept as-is so the
// validator can reconcile them against the raw longitudes.
func (r ChartRecord) Snapshot() (*ChartSnapshot, error) {
	moment, err := r.Moment()
	if err != nil {
		return nil, err
	}
	stored := make([]CelestialLongitude, 0, len(r.Positions))
	for _, p := range r.Positions {
		sign, err := ParseSign(p.Sign)
		if err != nil {
			return nil, err
		}
		stored = append(stored, CelestialLongitude{
			Body:         p.Body,
			Longitude:    p.Longitude,
			Sign:         sign,
			DegreeInSign: p.DegreeInSign,
		})
	}
	return RestoreSnapshot(moment, r.Raw, stored, r.Degraded)
}

// SignOfBody returns the stored sign label of a body, or "".
func (r ChartRecord) SignOfBody(body Body) string {
	for _, p := range r.Positions {
		if p.Body == body {
			return p.Sign
		}
	}
	return ""
}

// ChartRepository persists chart records.
type ChartRepository interface {
	Save(ctx context.Context, record ChartRecord) error
	Get(ctx context.Context, userID, birthKey string) (*ChartRecord, error)
	ListByUser(ctx context.Context, userID string) ([]ChartRecord, error)
}
