package application

import "time"

// ChartValidated is emitted after a natal chart is computed and validated.
type ChartValidated struct {
	ID          string
	Key         string
	IsValid     bool
	ErrorCount  int
	Corrections int
	Degraded    bool
	OccurredAt  time.Time
}

// EventID implements eventing.Identified.
func (e ChartValidated) EventID() string { return e.ID }

// ChartStored is emitted after a chart record is persisted for a user.
type ChartStored struct {
	ID         string
	UserID     string
	Key        string
	IsValid    bool
	ErrorCount int
	OccurredAt time.Time
}

// EventID implements eventing.Identified.
func (e ChartStored) EventID() string { return e.ID }
