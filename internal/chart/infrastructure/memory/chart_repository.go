package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"natal-engine/internal/chart/domain"
)

// ChartRepository is an in-memory chart store for development and tests.
type ChartRepository struct {
	mu   sync.RWMutex
	data map[string]chart.ChartRecord
}

// NewChartRepository constructs a repository.
func NewChartRepository() *ChartRepository {
	return &ChartRepository{data: make(map[string]chart.ChartRecord)}
}

func recordKey(userID, birthKey string) string {
	return userID + "\x00" + birthKey
}

// Save upserts a record.
func (r *ChartRepository) Save(ctx context.Context, record chart.ChartRecord) error {
	_ = ctx
	if record.UserID == "" || record.BirthKey == "" {
		return errors.New("memory chart repo: empty key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[recordKey(record.UserID, record.BirthKey)] = cloneRecord(record)
	return nil
}

// Get loads a record by user and birth key.
func (r *ChartRepository) Get(ctx context.Context, userID, birthKey string) (*chart.ChartRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.data[recordKey(userID, birthKey)]
	if !ok {
		return nil, chart.ErrChartNotFound
	}
	out := cloneRecord(record)
	return &out, nil
}

// ListByUser returns a user's records ordered by birth key.
func (r *ChartRepository) ListByUser(ctx context.Context, userID string) ([]chart.ChartRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []chart.ChartRecord
	for _, record := range r.data {
		if record.UserID == userID {
			out = append(out, cloneRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BirthKey < out[j].BirthKey })
	return out, nil
}

func cloneRecord(record chart.ChartRecord) chart.ChartRecord {
	out := record
	out.Positions = append([]chart.PositionRecord(nil), record.Positions...)
	out.Raw = make(map[chart.Body]float64, len(record.Raw))
	for body, lon := range record.Raw {
		out.Raw[body] = lon
	}
	return out
}
