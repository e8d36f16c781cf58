// Package config loads universe-server configuration. Values are layered:
// built-in defaults, then an optional YAML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/observability"
	"github.com/signalsfoundry/universe-simulator/internal/sim/registry"
)

// ErrInvalid indicates a configuration value failed validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete server configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Admin    AdminConfig    `koanf:"admin"`
	Tracing  TracingConfig  `koanf:"tracing"`
	Registry RegistryConfig `koanf:"registry"`
	State    StateConfig    `koanf:"state"`
}

// LogConfig selects the log level and the text or JSON handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the HTTP metrics and health server. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// AdminConfig configures the gRPC admin surface. An empty address
// disables it.
type AdminConfig struct {
	GRPCAddr string `koanf:"grpc_addr"`
}

// TracingConfig configures span export. Exporter is stdout or otlp;
// Endpoint is required for otlp.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Exporter    string  `koanf:"exporter"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// RegistryConfig holds the poll intervals of the command cycles.
type RegistryConfig struct {
	AttackInterval       time.Duration `koanf:"attack_interval"`
	MiningInterval       time.Duration `koanf:"mining_interval"`
	ConstructionInterval time.Duration `koanf:"construction_interval"`
}

// StateConfig controls persistence across restarts.
type StateConfig struct {
	Dir            string `koanf:"dir"`
	RestoreOnStart bool   `koanf:"restore_on_start"`
	SaveOnShutdown bool   `koanf:"save_on_shutdown"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Admin:   AdminConfig{GRPCAddr: "127.0.0.1:9000"},
		Tracing: TracingConfig{
			Exporter:    observability.ExporterStdout,
			ServiceName: observability.DefaultServiceName,
			SampleRatio: 1,
		},
		Registry: RegistryConfig{
			AttackInterval:       registry.DefaultAttackInterval,
			MiningInterval:       registry.DefaultMiningInterval,
			ConstructionInterval: registry.DefaultConstructionInterval,
		},
		State: StateConfig{Dir: "state"},
	}
}

// RegisterFlags defines one flag per configuration key on fs, defaulting
// to the built-in values. Flag names are the dotted keys, e.g. --log.level.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log.format", d.Log.Format, "log format (text or json)")
	fs.String("metrics.addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("admin.grpc_addr", d.Admin.GRPCAddr, "admin gRPC address (empty = disabled)")
	fs.Bool("tracing.enabled", d.Tracing.Enabled, "enable OpenTelemetry tracing")
	fs.String("tracing.exporter", d.Tracing.Exporter, "trace exporter (stdout or otlp)")
	fs.String("tracing.endpoint", d.Tracing.Endpoint, "OTLP collector endpoint")
	fs.String("tracing.service_name", d.Tracing.ServiceName, "service name reported in traces")
	fs.Float64("tracing.sample_ratio", d.Tracing.SampleRatio, "trace sampling ratio in [0, 1]")
	fs.Duration("registry.attack_interval", d.Registry.AttackInterval, "attack cycle poll interval")
	fs.Duration("registry.mining_interval", d.Registry.MiningInterval, "mining cycle poll interval")
	fs.Duration("registry.construction_interval", d.Registry.ConstructionInterval, "construction cycle poll interval")
	fs.String("state.dir", d.State.Dir, "directory holding saved state")
	fs.Bool("state.restore_on_start", d.State.RestoreOnStart, "restore saved state before starting")
	fs.Bool("state.save_on_shutdown", d.State.SaveOnShutdown, "save state after stopping")
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the flags in fs (if non-nil). Flags override the
// file only when set explicitly. The result is validated.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every value.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalid, c.Log.Level)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case observability.ExporterStdout:
		case observability.ExporterOTLP:
			if c.Tracing.Endpoint == "" {
				return fmt.Errorf("%w: tracing.endpoint is required for the otlp exporter", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: tracing.exporter must be stdout or otlp, got %q", ErrInvalid, c.Tracing.Exporter)
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0, 1]", ErrInvalid)
	}
	if c.Registry.AttackInterval <= 0 || c.Registry.MiningInterval <= 0 || c.Registry.ConstructionInterval <= 0 {
		return fmt.Errorf("%w: registry intervals must be positive", ErrInvalid)
	}
	if (c.State.RestoreOnStart || c.State.SaveOnShutdown) && c.State.Dir == "" {
		return fmt.Errorf("%w: state.dir is required to restore or save state", ErrInvalid)
	}
	return nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// TracingConfig returns the tracer configuration.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
