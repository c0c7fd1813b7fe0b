package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"natal-engine/internal/chart/domain"
)

func TestChartRepositoryRoundTrip(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "charts.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	moment, err := chart.NewBirthMoment("1975-07-21", "23:10", 40.71, -74.0, "America/New_York")
	if err != nil {
		t.Fatalf("moment: %v", err)
	}
	snap, err := chart.NewSnapshot(moment, map[chart.Body]float64{
		chart.BodySun:  118.9,
		chart.BodyMoon: 301.2,
	}, false)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	computedAt := time.Date(2025, time.June, 1, 12, 30, 0, 0, time.UTC)
	record, err := chart.NewChartRecord("u1", snap, true, 0, computedAt)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	record.ErrorCount = 1
	record.IsValid = false
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.Get(ctx, "u1", moment.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsValid || got.ErrorCount != 1 {
		t.Fatalf("upsert not applied: %+v", got)
	}
	if !got.ComputedAt.Equal(computedAt) {
		t.Fatalf("computed_at: got=%v want=%v", got.ComputedAt, computedAt)
	}
	if got.SignOfBody(chart.BodySun) != "Câncer" {
		t.Fatalf("sun sign: %s", got.SignOfBody(chart.BodySun))
	}
	restored, err := got.Snapshot()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if lon, _ := restored.Raw(chart.BodyMoon); lon != 301.2 {
		t.Fatalf("moon raw: %v", lon)
	}

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if _, err := repo.Get(ctx, "u2", moment.Key()); !errors.Is(err, chart.ErrChartNotFound) {
		t.Fatalf("expected ErrChartNotFound, got %v", err)
	}
}
