// Package config loads the wagecheck configuration from a YAML file with
// WAGECHECK_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/wage-compliance/compliance"
	"github.com/warp/wage-compliance/export"
)

const envPrefix = "WAGECHECK_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Review    ReviewConfig    `yaml:"review"`
	Batch     BatchConfig     `yaml:"batch"`
	Report    ReportConfig    `yaml:"report"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Path is the SQLite file; ":memory:" for an in-memory database.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// EngineConfig carries the engine thresholds. Amounts are strings so they
// reach decimal.Decimal without passing through float64.
type EngineConfig struct {
	AutoAccept            string            `yaml:"auto_accept"`
	UnderpaymentThreshold string            `yaml:"underpayment_threshold"`
	Tolerance             string            `yaml:"tolerance"`
	PrecisionTolerance    string            `yaml:"precision_tolerance"`
	ConfidenceCeiling     string            `yaml:"confidence_ceiling"`
	ReviewOverpayments    bool              `yaml:"review_overpayments"`
	OverpaymentConfidence string            `yaml:"overpayment_confidence"`
	Penalties             map[string]string `yaml:"penalties"`
}

type ReviewConfig struct {
	HighLiability   string `yaml:"high_liability"`
	MediumLiability string `yaml:"medium_liability"`
	ImminentDays    int    `yaml:"imminent_days"`
	SLADaysHigh     int    `yaml:"sla_days_high"`
	SLADaysMedium   int    `yaml:"sla_days_medium"`
	SLADaysLow      int    `yaml:"sla_days_low"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
}

type ReportConfig struct {
	Mode string `yaml:"mode"`
}

type SchedulerConfig struct {
	// SLAMonitor is the cron spec of the overdue-case sweep. Empty disables it.
	SLAMonitor string `yaml:"sla_monitor"`
	Timezone   string `yaml:"timezone"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"}},
		Database: DatabaseConfig{Path: "wagecheck.db"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Engine: EngineConfig{
			AutoAccept:            "0.70",
			UnderpaymentThreshold: "1.00",
			Tolerance:             "0.01",
			PrecisionTolerance:    "0.001",
			ConfidenceCeiling:     "0.95",
			OverpaymentConfidence: "0.85",
		},
		Review: ReviewConfig{
			HighLiability:   "500",
			MediumLiability: "100",
			ImminentDays:    5,
			SLADaysHigh:     1,
			SLADaysMedium:   3,
			SLADaysLow:      5,
		},
		Batch:     BatchConfig{Workers: 8},
		Report:    ReportConfig{Mode: string(export.AllEmployees)},
		Scheduler: SchedulerConfig{SLAMonitor: "*/15 * * * *", Timezone: "UTC"},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates. A missing file is not an error when path is
// empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envOverride(&c.Database.Path, "DB_PATH")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.Format, "LOG_FORMAT")
	envOverride(&c.Engine.AutoAccept, "AUTO_ACCEPT")
	envOverride(&c.Engine.UnderpaymentThreshold, "UNDERPAYMENT_THRESHOLD")
	envOverride(&c.Report.Mode, "REPORT_MODE")
	envOverrideAllowEmpty(&c.Scheduler.SLAMonitor, "SLA_MONITOR")
	envOverride(&c.Scheduler.Timezone, "TIMEZONE")
	if origins := os.Getenv(envPrefix + "ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	if err := envOverrideInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := envOverrideInt(&c.Batch.Workers, "WORKERS"); err != nil {
		return err
	}
	return envOverrideBool(&c.Engine.ReviewOverpayments, "REVIEW_OVERPAYMENTS")
}

func envOverride(field *string, key string) {
	if val := os.Getenv(envPrefix + key); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, key string) {
	if val, ok := os.LookupEnv(envPrefix + key); ok {
		*field = val
	}
}

func envOverrideInt(field *int, key string) error {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s%s '%s': %w", envPrefix, key, val, err)
	}
	*field = parsed
	return nil
}

func envOverrideBool(field *bool, key string) error {
	val := os.Getenv(envPrefix + key)
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s%s '%s': %w", envPrefix, key, val, err)
	}
	*field = parsed
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate rejects inconsistent values.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port '%d'", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console', got '%s'", c.Log.Format)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("invalid batch.workers '%d': must be >= 1", c.Batch.Workers)
	}
	if _, err := export.ParseReportMode(c.Report.Mode); err != nil {
		return fmt.Errorf("report.mode: %w", err)
	}
	if _, err := c.EngineSettings(); err != nil {
		return err
	}
	if _, err := c.ReviewSettings(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Scheduler.SLAMonitor != "" {
		if _, err := cron.ParseStandard(c.Scheduler.SLAMonitor); err != nil {
			return fmt.Errorf("invalid scheduler.sla_monitor '%s': %w", c.Scheduler.SLAMonitor, err)
		}
	}
	return nil
}

// EngineSettings converts the engine section.
func (c Config) EngineSettings() (compliance.EngineConfig, error) {
	cfg := compliance.DefaultEngineConfig()
	e := c.Engine

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"engine.auto_accept", e.AutoAccept, &cfg.Router.AutoAccept},
		{"engine.underpayment_threshold", e.UnderpaymentThreshold, &cfg.Router.UnderpaymentThreshold},
		{"engine.tolerance", e.Tolerance, &cfg.Router.Tolerance},
		{"engine.precision_tolerance", e.PrecisionTolerance, &cfg.PrecisionTolerance},
		{"engine.confidence_ceiling", e.ConfidenceCeiling, &cfg.Scoring.Ceiling},
		{"engine.overpayment_confidence", e.OverpaymentConfidence, &cfg.Router.OverpaymentConfidence},
	}
	for _, f := range fields {
		if err := parseAmount(f.name, f.raw, f.dst); err != nil {
			return cfg, err
		}
	}
	cfg.Scoring.Tolerance = cfg.Router.Tolerance
	cfg.Router.ReviewOverpayments = e.ReviewOverpayments

	for _, p := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"engine.auto_accept", cfg.Router.AutoAccept},
		{"engine.confidence_ceiling", cfg.Scoring.Ceiling},
		{"engine.overpayment_confidence", cfg.Router.OverpaymentConfidence},
	} {
		if p.v.IsNegative() || p.v.GreaterThan(decimal.NewFromInt(1)) {
			return cfg, fmt.Errorf("invalid %s '%s': must be between 0 and 1", p.name, p.v)
		}
	}
	if cfg.Router.UnderpaymentThreshold.IsNegative() || cfg.Router.Tolerance.IsNegative() || cfg.PrecisionTolerance.IsNegative() {
		return cfg, fmt.Errorf("engine thresholds must not be negative")
	}

	for kind, raw := range e.Penalties {
		var d decimal.Decimal
		if err := parseAmount("engine.penalties."+kind, raw, &d); err != nil {
			return cfg, err
		}
		if d.IsNegative() {
			return cfg, fmt.Errorf("invalid engine.penalties.%s '%s': must not be negative", kind, raw)
		}
		cfg.Scoring.Penalties[compliance.FlagKind(kind)] = d
	}
	return cfg, nil
}

// ReviewSettings converts the review section.
func (c Config) ReviewSettings() (compliance.ReviewConfig, error) {
	cfg := compliance.DefaultReviewConfig()
	r := c.Review
	if err := parseAmount("review.high_liability", r.HighLiability, &cfg.HighLiability); err != nil {
		return cfg, err
	}
	if err := parseAmount("review.medium_liability", r.MediumLiability, &cfg.MediumLiability); err != nil {
		return cfg, err
	}
	if cfg.MediumLiability.GreaterThan(cfg.HighLiability) {
		return cfg, fmt.Errorf("review.medium_liability must not exceed review.high_liability")
	}
	if r.ImminentDays < 0 {
		return cfg, fmt.Errorf("invalid review.imminent_days '%d'", r.ImminentDays)
	}
	cfg.ImminentDays = r.ImminentDays
	for p, days := range map[compliance.Priority]int{
		compliance.PriorityHigh:   r.SLADaysHigh,
		compliance.PriorityMedium: r.SLADaysMedium,
		compliance.PriorityLow:    r.SLADaysLow,
	} {
		if days < 1 {
			return cfg, fmt.Errorf("invalid review.sla_days_%s '%d': must be >= 1", p, days)
		}
		cfg.SLADays[p] = days
	}
	return cfg, nil
}

// ReportMode returns the configured export mode.
func (c Config) ReportMode() export.ReportMode {
	m, _ := export.ParseReportMode(c.Report.Mode)
	return m
}

// Location returns the scheduler timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" || strings.EqualFold(c.Scheduler.Timezone, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone '%s': %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

func parseAmount(name, raw string, dst *decimal.Decimal) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, raw, err)
	}
	*dst = d
	return nil
}
