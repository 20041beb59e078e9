// Package config loads and validates cadence configuration files.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/period"
)

//go:embed config.cue
var schemaCUE string

// Config is the full configuration of a cadence process.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	// User is the stable user id records are scoped by. Empty means
	// signed out.
	User string `yaml:"user" json:"user"`

	// Timezone is the IANA zone period boundaries are placed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Retry   RetryConfig   `yaml:"retry" json:"retry"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// EngineConfig tunes the catch-up walk.
type EngineConfig struct {
	MaxSteps int `yaml:"max_steps" json:"max_steps"`
}

// RetryConfig tunes retries of transient store errors.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
}

// MetricsConfig controls the Prometheus endpoint of "cadence run".
type MetricsConfig struct {
	// Address to serve /metrics on, e.g. ":9464". Empty disables it.
	Address string `yaml:"address" json:"address"`
}

// Engine defaults. The engine carries the same values for callers that
// build it without a configuration file.
const (
	DefaultMaxSteps             = 1000
	DefaultRetryInitialInterval = 100 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
	DefaultRetryMaxAttempts     = 5
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: "cadence.db",
		User:     "local",
		Timezone: "UTC",
		LogLevel: "info",
		Engine: EngineConfig{
			MaxSteps: DefaultMaxSteps,
		},
		Retry: RetryConfig{
			InitialInterval: DefaultRetryInitialInterval,
			MaxInterval:     DefaultRetryMaxInterval,
			MaxAttempts:     DefaultRetryMaxAttempts,
		},
	}
}

// Load reads a YAML configuration file on top of Default and validates
// the result. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of Default and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schema     cue.Value
	schemaErr  error
)

func compiledSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("config.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schema = v.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schema, schemaErr
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks cfg against the embedded schema, the retry interval
// ordering and that the timezone resolves.
func Validate(cfg Config) error {
	ctx, def, err := compiledSchema()
	if err != nil {
		return err
	}

	var problems []string
	unified := def.Unify(ctx.Encode(cfg))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, strings.TrimSpace(cueerrors.Details(e, nil)))
		}
	}
	if cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		problems = append(problems, fmt.Sprintf("retry.max_interval: %s is below initial_interval %s",
			cfg.Retry.MaxInterval, cfg.Retry.InitialInterval))
	}
	if cfg.Timezone != "" {
		if _, err := period.LoadLocation(cfg.Timezone); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return period.LoadLocation(c.Timezone)
}

// Level maps LogLevel to a slog level. Unknown values map to info.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
