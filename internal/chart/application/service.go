package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"natal-engine/internal/audit"
	"natal-engine/internal/chart/domain"
	"natal-engine/internal/observability/metrics"
	transitapp "natal-engine/internal/transit/application"
	"natal-engine/internal/validation/domain"
)

// SnapshotSource computes a raw snapshot for a birth moment.
type SnapshotSource interface {
	Snapshot(ctx context.Context, moment chart.BirthMoment) (*chart.ChartSnapshot, error)
}

// EventPublisher emits chart events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// NatalChart is a validated snapshot with everything derived from it.
// It is shared through the cache and must be treated as read-only.
type NatalChart struct {
	Key         string
	Moment      chart.BirthMoment
	Snapshot    *chart.ChartSnapshot
	Report      *validation.Report
	Temperament chart.TemperamentScore
	Ruler       chart.ChartRulerInfo
	ComputedAt  time.Time
}

// CheckNarrative rejects text that contradicts the chart's temperament.
func (n *NatalChart) CheckNarrative(text string) error {
	return chart.CheckNarrative(text, n.Temperament)
}

// Service assembles natal charts: cache, positions, validation, scoring.
type Service struct {
	source    SnapshotSource
	validator *validation.Validator
	cache     *ChartCache
	repo      chart.ChartRepository
	audit     audit.Logger
	publisher EventPublisher
	locator   *transitapp.Locator
	clock     chart.Clock
	logger    *log.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRepository enables Store and Load.
func WithRepository(repo chart.ChartRepository) ServiceOption {
	return func(s *Service) { s.repo = repo }
}

// WithAuditLogger records stored charts.
func WithAuditLogger(logger audit.Logger) ServiceOption {
	return func(s *Service) { s.audit = logger }
}

// WithPublisher emits ChartValidated and ChartStored events.
func WithPublisher(publisher EventPublisher) ServiceOption {
	return func(s *Service) { s.publisher = publisher }
}

// WithLocator enables transit and solar return lookups on cached charts.
func WithLocator(locator *transitapp.Locator) ServiceOption {
	return func(s *Service) { s.locator = locator }
}

// WithClock overrides the clock.
func WithClock(clock chart.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger; nil disables logging.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// ErrNoRepository is returned by Store and Load when no repository is configured.
var ErrNoRepository = errors.New("chart service: no repository")

// ErrNoLocator is returned by event lookups when no locator is configured.
var ErrNoLocator = errors.New("chart service: no locator")

// NewService constructs the service.
func NewService(source SnapshotSource, validator *validation.Validator, cache *ChartCache, opts ...ServiceOption) (*Service, error) {
	if source == nil {
		return nil, errors.New("chart service: nil snapshot source")
	}
	if validator == nil {
		validator = validation.NewValidator()
	}
	if cache == nil {
		return nil, errors.New("chart service: nil cache")
	}
	s := &Service{
		source:    source,
		validator: validator,
		cache:     cache,
		clock:     chart.SystemClock{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Natal returns the validated chart of a birth moment, computing it at most once.
func (s *Service) Natal(ctx context.Context, moment chart.BirthMoment) (*NatalChart, error) {
	if moment.IsZero() {
		return nil, chart.NewInputError("moment", "zero birth moment")
	}
	natal, _, err := s.cache.GetOrCompute(ctx, moment.Key(), func(ctx context.Context) (*NatalChart, error) {
		start := time.Now()
		snap, err := s.source.Snapshot(ctx, moment)
		if err != nil {
			metrics.ObserveChartCompute(metrics.ResultError, time.Since(start))
			return nil, err
		}
		natal, err := s.assemble(ctx, snap)
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveChartCompute(result, time.Since(start))
		return natal, err
	})
	return natal, err
}

// assemble validates a snapshot and derives temperament and chart ruler from the corrected copy.
func (s *Service) assemble(ctx context.Context, snap *chart.ChartSnapshot) (*NatalChart, error) {
	corrected, report, err := s.validator.Validate(snap)
	if err != nil {
		return nil, err
	}
	temperament, err := chart.ScoreTemperament(corrected)
	if err != nil {
		return nil, err
	}
	ruler, err := chart.ChartRulerOf(corrected)
	if err != nil && !errors.Is(err, chart.ErrInput) {
		return nil, err
	}
	moment := corrected.Moment()
	natal := &NatalChart{
		Key:         moment.Key(),
		Moment:      moment,
		Snapshot:    corrected,
		Report:      report,
		Temperament: temperament,
		Ruler:       ruler,
		ComputedAt:  s.clock.Now(),
	}
	recordFindings(report)
	if s.logger != nil {
		s.logger.Printf("chart computed: key=%s degraded=%t corrections=%d errors=%d",
			natal.Key, corrected.Degraded(), len(report.Corrections), len(report.Errors))
	}
	s.publish(ctx, ChartValidated{
		ID:          uuid.NewString(),
		Key:         natal.Key,
		IsValid:     report.IsValid(),
		ErrorCount:  report.ErrorCount(),
		Corrections: len(report.Corrections),
		Degraded:    corrected.Degraded(),
		OccurredAt:  natal.ComputedAt,
	})
	return natal, nil
}

// Store persists the chart's serializable record for a user and audits it.
func (s *Service) Store(ctx context.Context, userID string, natal *NatalChart) error {
	if s.repo == nil {
		return ErrNoRepository
	}
	if natal == nil {
		return chart.ErrNilSnapshot
	}
	record, err := chart.NewChartRecord(userID, natal.Snapshot, natal.Report.IsValid(), natal.Report.ErrorCount(), natal.ComputedAt)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return fmt.Errorf("chart service: save: %w", err)
	}
	if s.audit != nil {
		entry := audit.Entry{
			UserID:      userID,
			Action:      audit.ActionChartStored,
			BirthKey:    record.BirthKey,
			IsValid:     record.IsValid,
			ErrorCount:  record.ErrorCount,
			Corrections: len(natal.Report.Corrections),
			Degraded:    record.Degraded,
			CreatedAt:   s.clock.Now(),
		}
		if err := s.audit.Log(ctx, entry); err != nil && s.logger != nil {
			s.logger.Printf("chart audit failed: user=%s key=%s err=%v", userID, record.BirthKey, err)
		}
	}
	s.publish(ctx, ChartStored{
		ID:         uuid.NewString(),
		UserID:     userID,
		Key:        record.BirthKey,
		IsValid:    record.IsValid,
		ErrorCount: record.ErrorCount,
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// Load restores a stored chart and re-validates it, so stale signs are corrected.
// The user must own a record for the moment; a chart already cached for the
// moment then wins over the stored one.
func (s *Service) Load(ctx context.Context, userID string, moment chart.BirthMoment) (*NatalChart, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	if moment.IsZero() {
		return nil, chart.NewInputError("moment", "zero birth moment")
	}
	record, err := s.repo.Get(ctx, userID, moment.Key())
	if err != nil {
		return nil, err
	}
	natal, _, err := s.cache.GetOrCompute(ctx, moment.Key(), func(ctx context.Context) (*NatalChart, error) {
		snap, err := record.Snapshot()
		if err != nil {
			return nil, err
		}
		return s.assemble(ctx, snap)
	})
	return natal, err
}

// Transits scans the transits active at reference against the cached natal chart.
func (s *Service) Transits(ctx context.Context, moment chart.BirthMoment, reference time.Time, bodies []chart.Body) ([]chart.TransitEvent, error) {
	if s.locator == nil {
		return nil, ErrNoLocator
	}
	natal, err := s.Natal(ctx, moment)
	if err != nil {
		return nil, err
	}
	return s.locator.Scan(ctx, natal.Snapshot, reference, bodies)
}

// SolarReturn locates the solar return of the cached natal Sun in year.
func (s *Service) SolarReturn(ctx context.Context, moment chart.BirthMoment, year int) (transitapp.SolarReturn, error) {
	if s.locator == nil {
		return transitapp.SolarReturn{}, ErrNoLocator
	}
	natal, err := s.Natal(ctx, moment)
	if err != nil {
		return transitapp.SolarReturn{}, err
	}
	sun, ok := natal.Snapshot.Raw(chart.BodySun)
	if !ok {
		return transitapp.SolarReturn{}, chart.NewInputError("sun", "natal chart has no sun")
	}
	return s.locator.SolarReturn(ctx, transitapp.SolarReturnQuery{
		NatalSunLongitude: sun,
		TargetYear:        year,
		Location:          moment.Location(),
		Birth:             moment.Instant(),
	})
}

func (s *Service) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("chart event publish failed: type=%T err=%v", event, err)
	}
}

func recordFindings(report *validation.Report) {
	for _, f := range report.All() {
		metrics.AddValidationFindings(string(f.Severity), f.Code, 1)
	}
}
