package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"natal-engine/internal/audit"
	chartapp "natal-engine/internal/chart/application"
	"natal-engine/internal/chart/domain"
	"natal-engine/internal/chart/infrastructure/memory"
	chartpostgres "natal-engine/internal/chart/infrastructure/postgres"
	chartsqlite "natal-engine/internal/chart/infrastructure/sqlite"
	"natal-engine/internal/chart/interfaces/attestation"
	"natal-engine/internal/chart/interfaces/export"
	"natal-engine/internal/config"
	ephemerisapp "natal-engine/internal/ephemeris/application"
	"natal-engine/internal/ephemeris/domain"
	"natal-engine/internal/ephemeris/infrastructure/analytic"
	"natal-engine/internal/ephemeris/infrastructure/remote"
	"natal-engine/internal/eventing"
	"natal-engine/internal/observability/metrics"
	transitapp "natal-engine/internal/transit/application"
	"natal-engine/internal/validation/domain"
)

type options struct {
	date        string
	clock       string
	zone        string
	latitude    float64
	longitude   float64
	userID      string
	store       bool
	load        bool
	transitsAt  string
	bodies      string
	solarReturn int
	exportPath  string
	attest      bool
	narrative   string
	verbose     bool
}

type output struct {
	Key         string                  `json:"key"`
	Degraded    bool                    `json:"degraded"`
	Positions   []chart.PositionRecord  `json:"positions"`
	Report      *validation.Report      `json:"report"`
	Temperament map[string]int          `json:"temperament"`
	Dominant    string                  `json:"dominant"`
	Lacking     string                  `json:"lacking,omitempty"`
	Ruler       string                  `json:"ruler,omitempty"`
	Narrative   string                  `json:"narrative_check,omitempty"`
	Transits    []chart.TransitEvent    `json:"transits,omitempty"`
	SolarReturn *transitapp.SolarReturn `json:"solar_return,omitempty"`
	Export      string                  `json:"export,omitempty"`
	Attestation string                  `json:"attestation,omitempty"`
	Stored      bool                    `json:"stored,omitempty"`
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	if err := run(context.Background(), cfg, opts, logger, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.StringVar(&opts.date, "date", "", "birth date in YYYY-MM-DD")
	flag.StringVar(&opts.clock, "time", "12:00", "birth time in HH:MM[:SS]")
	flag.StringVar(&opts.zone, "tz", "UTC", "IANA time zone of the birth time")
	flag.Float64Var(&opts.latitude, "lat", 0, "birth latitude in degrees, north positive")
	flag.Float64Var(&opts.longitude, "lon", 0, "birth longitude in degrees, east positive")
	flag.StringVar(&opts.userID, "user", "", "user id for -store and -load")
	flag.BoolVar(&opts.store, "store", false, "persist the validated chart")
	flag.BoolVar(&opts.load, "load", false, "load and re-validate the stored chart instead of computing it")
	flag.StringVar(&opts.transitsAt, "transits", "", "reference date (YYYY-MM-DD) for active transits")
	flag.StringVar(&opts.bodies, "bodies", "sun,moon,mercury,venus,mars,jupiter,saturn", "comma separated transiting bodies")
	flag.IntVar(&opts.solarReturn, "solar-return", 0, "locate the solar return in this year")
	flag.StringVar(&opts.exportPath, "export", "", "write the chart to this .xlsx or .pdf file")
	flag.BoolVar(&opts.attest, "attest", false, "issue a signed attestation for the chart")
	flag.StringVar(&opts.narrative, "narrative", "", "text to check against the chart temperament")
	flag.BoolVar(&opts.verbose, "v", false, "log to stderr")
	flag.Parse()

	if opts.date == "" {
		return opts, errors.New("-date is required")
	}
	if (opts.store || opts.load) && opts.userID == "" {
		return opts, errors.New("-user is required with -store or -load")
	}
	return opts, nil
}

func run(ctx context.Context, cfg config.Config, opts options, logger *log.Logger, w io.Writer) error {
	moment, err := chart.NewBirthMoment(opts.date, opts.clock, opts.latitude, opts.longitude, opts.zone)
	if err != nil {
		return err
	}

	provider, err := newPositionProvider(cfg, logger)
	if err != nil {
		return err
	}
	repo, auditLogger, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := eventing.NewInMemoryBus()
	chartapp.WireChartEventBus(bus, auditLogger, eventing.NewMemoryProcessedStore())

	locator, err := transitapp.NewLocator(provider,
		transitapp.WithHorizon(cfg.Transit.BackHorizonDays, cfg.Transit.ForwardHorizonDays, cfg.Transit.StepDays),
		transitapp.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	validator := validation.NewValidator(
		validation.WithBounds(validation.Bounds{
			MercurySun:   cfg.Validation.MercurySunMax,
			VenusSun:     cfg.Validation.VenusSunMax,
			VenusMercury: cfg.Validation.VenusMercuryMax,
		}),
		validation.WithLogger(logger),
	)
	svc, err := chartapp.NewService(provider, validator, chartapp.NewChartCache(cfg.Cache.MaxEntries),
		chartapp.WithRepository(repo),
		chartapp.WithAuditLogger(auditLogger),
		chartapp.WithPublisher(bus),
		chartapp.WithLocator(locator),
		chartapp.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var natal *chartapp.NatalChart
	if opts.load {
		natal, err = svc.Load(ctx, opts.userID, moment)
	} else {
		natal, err = svc.Natal(ctx, moment)
	}
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	out := describe(natal)

	if opts.narrative != "" {
		out.Narrative = "ok"
		if err := natal.CheckNarrative(opts.narrative); err != nil {
			out.Narrative = err.Error()
		}
	}
	if opts.store {
		if err := svc.Store(ctx, opts.userID, natal); err != nil {
			return err
		}
		out.Stored = true
	}
	if opts.transitsAt != "" {
		reference, err := time.Parse("2006-01-02", opts.transitsAt)
		if err != nil {
			return fmt.Errorf("-transits: %w", err)
		}
		bodies, err := parseBodies(opts.bodies)
		if err != nil {
			return err
		}
		out.Transits, err = svc.Transits(ctx, moment, reference, bodies)
		if err != nil {
			return fmt.Errorf("transits: %w", err)
		}
	}
	if opts.solarReturn != 0 {
		ret, err := svc.SolarReturn(ctx, moment, opts.solarReturn)
		if err != nil {
			return fmt.Errorf("solar return: %w", err)
		}
		out.SolarReturn = &ret
	}
	if opts.exportPath != "" {
		format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.exportPath), "."))
		if err != nil {
			return err
		}
		data, err := export.Render(format, natal)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.exportPath, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		out.Export = opts.exportPath
	}
	if opts.attest {
		signer, err := attestation.NewSigner([]byte(cfg.Attestation.Secret), cfg.Attestation.TTL)
		if err != nil {
			return err
		}
		out.Attestation, _, err = signer.Issue(natal)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newPositionProvider(cfg config.Config, logger *log.Logger) (*ephemerisapp.PositionProvider, error) {
	fallback := analytic.NewProvider()
	if cfg.Ephemeris.RemoteBaseURL == "" {
		return ephemerisapp.NewPositionProvider(fallback, ephemerisapp.WithLogger(logger))
	}
	client, err := remote.NewClient(cfg.Ephemeris.RemoteBaseURL, cfg.Ephemeris.RemoteToken,
		remote.WithTimeout(cfg.Ephemeris.RequestTimeout))
	if err != nil {
		return nil, err
	}
	var primary ephemeris.RawProvider = client
	return ephemerisapp.NewPositionProvider(primary,
		ephemerisapp.WithFallback(fallback),
		ephemerisapp.WithLogger(logger),
	)
}

func openStore(cfg config.Config, logger *log.Logger) (chart.ChartRepository, audit.Logger, func(), error) {
	switch cfg.Database.Store() {
	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("db ping: %w", err)
		}
		metrics.Init(db, logger)
		return chartpostgres.NewChartRepository(db), audit.NewRepository(db), func() { db.Close() }, nil
	case config.StoreSQLite:
		repo, err := chartsqlite.Open(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		metrics.Init(repo.DB(), logger)
		return repo, audit.NewMemoryLogger(), func() { repo.Close() }, nil
	default:
		metrics.Init(nil, logger)
		return memory.NewChartRepository(), audit.NewMemoryLogger(), func() {}, nil
	}
}

func describe(natal *chartapp.NatalChart) output {
	out := output{
		Key:         natal.Key,
		Degraded:    natal.Snapshot.Degraded(),
		Report:      natal.Report,
		Temperament: make(map[string]int, 4),
		Dominant:    natal.Temperament.Dominant.Label(),
	}
	for _, pos := range natal.Snapshot.Positions() {
		out.Positions = append(out.Positions, chart.PositionRecord{
			Body:         pos.Body,
			Longitude:    pos.Longitude,
			Sign:         pos.SignLabel(),
			DegreeInSign: pos.DegreeInSign,
		})
	}
	for _, e := range chart.Elements() {
		out.Temperament[e.Label()] = natal.Temperament.Points[e]
	}
	if natal.Temperament.HasLacking {
		out.Lacking = natal.Temperament.Lacking.Label()
	}
	if natal.Ruler.Present {
		out.Ruler = fmt.Sprintf("%s in %s (%s)", natal.Ruler.Planet.Label(), natal.Ruler.Position.SignLabel(), natal.Ruler.Dignity)
	}
	return out
}

func parseBodies(value string) ([]chart.Body, error) {
	var bodies []chart.Body
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		body, err := chart.ParseBody(part)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}
	if len(bodies) == 0 {
		return nil, errors.New("-bodies: no bodies")
	}
	return bodies, nil
}
