package application

import (
	"context"
	"encoding/json"

	"natal-engine/internal/audit"
	"natal-engine/internal/eventing"
)

// WireChartEventBus records every validated chart in the audit log.
func WireChartEventBus(bus eventing.EventBus, logger audit.Logger, processed eventing.ProcessedStore) {
	if bus == nil || logger == nil {
		return
	}
	eventing.Subscribe(bus, eventing.EventTypeOf[ChartValidated](), "chart.audit", func(ctx context.Context, event any) error {
		evt, ok := event.(ChartValidated)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		meta, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return logger.Log(ctx, audit.Entry{
			Action:      audit.ActionChartValidated,
			BirthKey:    evt.Key,
			IsValid:     evt.IsValid,
			ErrorCount:  evt.ErrorCount,
			Corrections: evt.Corrections,
			Degraded:    evt.Degraded,
			Metadata:    meta,
			CreatedAt:   evt.OccurredAt,
		})
	}, processed)
}
