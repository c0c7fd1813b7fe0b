package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	Ephemeris   EphemerisConfig   `yaml:"ephemeris"`
	Validation  ValidationConfig  `yaml:"validation"`
	Transit     TransitConfig     `yaml:"transit"`
	Cache       CacheConfig       `yaml:"cache"`
	Database    DatabaseConfig    `yaml:"database"`
	Attestation AttestationConfig `yaml:"attestation"`
}

// EphemerisConfig selects the remote backend. An empty base URL means analytic only.
type EphemerisConfig struct {
	RemoteBaseURL  string        `yaml:"remote_base_url"`
	RemoteToken    string        `yaml:"remote_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ValidationConfig holds the maximum elongations in degrees.
type ValidationConfig struct {
	MercurySunMax   float64 `yaml:"mercury_sun_max"`
	VenusSunMax     float64 `yaml:"venus_sun_max"`
	VenusMercuryMax float64 `yaml:"venus_mercury_max"`
}

// TransitConfig sizes the transit search grid.
type TransitConfig struct {
	BackHorizonDays    int `yaml:"back_horizon_days"`
	ForwardHorizonDays int `yaml:"forward_horizon_days"`
	StepDays           int `yaml:"step_days"`
}

// CacheConfig bounds the chart cache; 0 means unbounded.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// DatabaseConfig picks the chart store: Postgres when URL is set, else SQLite, else memory.
type DatabaseConfig struct {
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// AttestationConfig signs chart attestations.
type AttestationConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// StoreKind names the configured chart store.
type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreSQLite   StoreKind = "sqlite"
	StoreMemory   StoreKind = "memory"
)

// Store returns the chart store selected by the database section.
func (d DatabaseConfig) Store() StoreKind {
	switch {
	case d.URL != "":
		return StorePostgres
	case d.SQLitePath != "":
		return StoreSQLite
	default:
		return StoreMemory
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ephemeris: EphemerisConfig{RequestTimeout: 10 * time.Second},
		Validation: ValidationConfig{
			MercurySunMax:   28,
			VenusSunMax:     48,
			VenusMercuryMax: 76,
		},
		Transit: TransitConfig{
			BackHorizonDays:    30,
			ForwardHorizonDays: 60,
			StepDays:           2,
		},
		Cache:       CacheConfig{MaxEntries: 1024},
		Attestation: AttestationConfig{TTL: 24 * time.Hour},
	}
}

// Load reads the YAML file named by NATAL_CONFIG, if any, then applies environment overrides.
func Load() (Config, error) {
	return LoadFile(os.Getenv("NATAL_CONFIG"))
}

// LoadFile reads path (empty means defaults only) and applies environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Ephemeris.RemoteBaseURL = getenvDefault("EPHEMERIS_BASE_URL", cfg.Ephemeris.RemoteBaseURL)
	cfg.Ephemeris.RemoteToken = getenvDefault("EPHEMERIS_TOKEN", cfg.Ephemeris.RemoteToken)
	cfg.Ephemeris.RequestTimeout = getenvDuration("EPHEMERIS_TIMEOUT", cfg.Ephemeris.RequestTimeout)

	cfg.Validation.MercurySunMax = getenvFloatDefault("VALIDATION_MERCURY_SUN_MAX", cfg.Validation.MercurySunMax)
	cfg.Validation.VenusSunMax = getenvFloatDefault("VALIDATION_VENUS_SUN_MAX", cfg.Validation.VenusSunMax)
	cfg.Validation.VenusMercuryMax = getenvFloatDefault("VALIDATION_VENUS_MERCURY_MAX", cfg.Validation.VenusMercuryMax)

	cfg.Transit.BackHorizonDays = getenvIntDefault("TRANSIT_BACK_DAYS", cfg.Transit.BackHorizonDays)
	cfg.Transit.ForwardHorizonDays = getenvIntDefault("TRANSIT_FORWARD_DAYS", cfg.Transit.ForwardHorizonDays)
	cfg.Transit.StepDays = getenvIntDefault("TRANSIT_STEP_DAYS", cfg.Transit.StepDays)

	cfg.Cache.MaxEntries = getenvIntDefault("CHART_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)

	cfg.Database.URL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Database.URL))
	cfg.Database.SQLitePath = getenvDefault("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Attestation.Secret = getenvDefault("ATTESTATION_SECRET", cfg.Attestation.Secret)
	cfg.Attestation.TTL = getenvDuration("ATTESTATION_TTL", cfg.Attestation.TTL)
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Validation.MercurySunMax <= 0 || c.Validation.VenusSunMax <= 0 || c.Validation.VenusMercuryMax <= 0 {
		return errors.New("config: elongation bounds must be positive")
	}
	if c.Transit.BackHorizonDays <= 0 || c.Transit.ForwardHorizonDays <= 0 || c.Transit.StepDays <= 0 {
		return errors.New("config: transit horizon and step must be positive")
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New("config: cache max_entries must be >= 0")
	}
	if c.Ephemeris.RequestTimeout <= 0 {
		return errors.New("config: ephemeris request_timeout must be positive")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
