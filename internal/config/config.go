package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. INTERLUDE_ENGINE_URL.
const EnvPrefix = "INTERLUDE_"

// DefaultFile is read when present and no explicit file is given.
const DefaultFile = "interlude.yaml"

// Config is the application configuration.
type Config struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	LogLevel  string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string        `mapstructure:"log_format" yaml:"log_format"`
	Engine    EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Store     StoreConfig   `mapstructure:"store" yaml:"store"`
	Redis     RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Session   SessionConfig `mapstructure:"session" yaml:"session"`
	Metrics   MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// EngineConfig selects and configures the workflow engine.
type EngineConfig struct {
	Kind        string        `mapstructure:"kind" yaml:"kind"`         // script | langgraph
	Workflow    string        `mapstructure:"workflow" yaml:"workflow"` // script workflow file; empty = built-in
	StepDelay   time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	URL         string        `mapstructure:"url" yaml:"url"`
	AssistantID string        `mapstructure:"assistant_id" yaml:"assistant_id"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	ReportKey   string        `mapstructure:"report_key" yaml:"report_key"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig selects the session store and its middlewares.
type StoreConfig struct {
	Kind          string   `mapstructure:"kind" yaml:"kind"` // memory | file | redis
	Path          string   `mapstructure:"path" yaml:"path"`
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
	Redact        []string `mapstructure:"redact" yaml:"redact"`
}

// RedisConfig is shared by the redis store and the distributed lock.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// SessionConfig tunes the orchestrator and the registry.
type SessionConfig struct {
	DriveTimeout    time.Duration `mapstructure:"drive_timeout" yaml:"drive_timeout"`
	Queue           bool          `mapstructure:"queue" yaml:"queue"`
	AckPolicy       string        `mapstructure:"ack_policy" yaml:"ack_policy"` // surface | discard
	LockTTL         time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	DistributedLock bool          `mapstructure:"distributed_lock" yaml:"distributed_lock"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the built-in configuration: scripted engine, memory store.
func Default() Config {
	return Config{
		Addr:      ":8000",
		LogLevel:  "info",
		LogFormat: "text",
		Engine: EngineConfig{
			Kind:        "script",
			AssistantID: "agent",
			ReportKey:   "final_report",
		},
		Store: StoreConfig{
			Kind: "memory",
			Path: ".interlude/sessions",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "interlude:session:",
		},
		Session: SessionConfig{
			AckPolicy: "surface",
			LockTTL:   5 * time.Minute,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration from defaults, then the YAML file at path, then
// the environment. An empty path reads DefaultFile if it exists.
func Load(path string, environ []string) (*Config, error) {
	raw := map[string]any{}

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	merge(raw, fromEnv(environ))

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// sections are the nested keys; INTERLUDE_ENGINE_URL sets engine.url while
// INTERLUDE_LOG_LEVEL sets the top-level log_level.
var sections = []string{"engine", "store", "redis", "session", "metrics"}

func fromEnv(environ []string) map[string]any {
	out := map[string]any{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))

		nested := false
		for _, s := range sections {
			if rest, found := strings.CutPrefix(key, s+"_"); found && rest != "" {
				sub, _ := out[s].(map[string]any)
				if sub == nil {
					sub = map[string]any{}
					out[s] = sub
				}
				sub[rest] = v
				nested = true
				break
			}
		}
		if !nested {
			out[key] = v
		}
	}
	return out
}

// merge overlays src onto dst recursively.
func merge(dst, src map[string]any) {
	for k, v := range src {
		sv, srcIsMap := v.(map[string]any)
		dv, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			merge(dv, sv)
			continue
		}
		dst[k] = v
	}
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}

	switch c.Engine.Kind {
	case "script":
	case "langgraph":
		if c.Engine.URL == "" {
			errs = append(errs, errors.New("engine.url is required for the langgraph engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine.kind %q (want script or langgraph)", c.Engine.Kind))
	}

	switch c.Store.Kind {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q (want memory, file or redis)", c.Store.Kind))
	}

	switch c.Session.AckPolicy {
	case "surface", "discard":
	default:
		errs = append(errs, fmt.Errorf("unknown session.ack_policy %q (want surface or discard)", c.Session.AckPolicy))
	}

	if c.Session.DistributedLock && c.Redis.Addr == "" {
		errs = append(errs, errors.New("session.distributed_lock requires redis.addr"))
	}
	if c.Session.DriveTimeout < 0 {
		errs = append(errs, errors.New("session.drive_timeout must not be negative"))
	}

	return errors.Join(errs...)
}
