package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/aretw0/interlude"
	"github.com/aretw0/interlude/internal/adapters/file"
	"github.com/aretw0/interlude/internal/config"
	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/adapters/langgraph"
	"github.com/aretw0/interlude/pkg/adapters/memory"
	"github.com/aretw0/interlude/pkg/adapters/redis"
	"github.com/aretw0/interlude/pkg/adapters/script"
	"github.com/aretw0/interlude/pkg/observability"
	"github.com/aretw0/interlude/pkg/persistence/middleware"
	"github.com/aretw0/interlude/pkg/ports"
	goredis "github.com/redis/go-redis/v9"
)

// App bundles the components wired from a configuration.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Engine   *interlude.Engine
	Workflow ports.WorkflowEngine
	Store    ports.SessionStore

	// Metrics is nil when metrics are disabled.
	Metrics *observability.Metrics

	closers []io.Closer
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewLogger builds the application logger described by cfg, writing to w.
func NewLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(w, level, format), nil
}

// Build wires the workflow engine, the session store with its middlewares,
// the optional distributed lock and the observability hooks into an Engine.
func Build(cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	workflow, err := newWorkflow(cfg.Engine, logger)
	if err != nil {
		return nil, err
	}
	app.Workflow = workflow

	store, client, err := openStore(cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	opts := []interlude.Option{
		interlude.WithStore(store),
		interlude.WithLogger(logger),
		interlude.WithDriveTimeout(cfg.Session.DriveTimeout),
		interlude.WithQueueing(cfg.Session.Queue),
		interlude.WithLockTTL(cfg.Session.LockTTL),
		interlude.WithAckPolicy(ackPolicy(cfg.Session.AckPolicy)),
	}

	if cfg.Session.DistributedLock {
		if client == nil {
			client = newRedisClient(cfg.Redis)
			app.closers = append(app.closers, client)
		}
		opts = append(opts, interlude.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
	}

	hooks := observability.AuditHooks(logger)
	if cfg.Metrics.Enabled {
		app.Metrics = observability.NewMetrics()
		hooks = observability.Combine(hooks, app.Metrics.Hooks())
	}
	opts = append(opts, interlude.WithLifecycleHooks(hooks))

	eng, err := interlude.New(workflow, opts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = eng

	logger.Debug("Engine ready",
		"engine", cfg.Engine.Kind,
		"store", cfg.Store.Kind,
		"distributed_lock", cfg.Session.DistributedLock,
		"metrics", cfg.Metrics.Enabled,
	)
	return app, nil
}

// OpenStore opens only the session store, for maintenance commands.
func OpenStore(cfg config.Config) (ports.SessionStore, io.Closer, error) {
	app := &App{Config: cfg}
	store, _, err := openStore(cfg, app)
	if err != nil {
		app.Close()
		return nil, nil, err
	}
	return store, app, nil
}

func newWorkflow(cfg config.EngineConfig, logger *slog.Logger) (ports.WorkflowEngine, error) {
	switch cfg.Kind {
	case "langgraph":
		opts := []langgraph.Option{
			langgraph.WithLogger(logger),
			langgraph.WithTimeout(cfg.Timeout),
		}
		if cfg.AssistantID != "" {
			opts = append(opts, langgraph.WithAssistantID(cfg.AssistantID))
		}
		if cfg.APIKey != "" {
			opts = append(opts, langgraph.WithAPIKey(cfg.APIKey))
		}
		if cfg.ReportKey != "" {
			opts = append(opts, langgraph.WithReportKey(cfg.ReportKey))
		}
		return langgraph.New(cfg.URL, opts...), nil

	case "script", "":
		wf, err := LoadWorkflow(cfg)
		if err != nil {
			return nil, err
		}
		return script.New(wf, script.WithStepDelay(cfg.StepDelay), script.WithLogger(logger)), nil
	}
	return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
}

// LoadWorkflow returns the configured script workflow, or the built-in one.
func LoadWorkflow(cfg config.EngineConfig) (*script.Workflow, error) {
	if cfg.Workflow == "" {
		return script.DefaultWorkflow(), nil
	}
	return script.LoadWorkflow(cfg.Workflow)
}

// openStore returns the wrapped store and, for redis, its client.
func openStore(cfg config.Config, app *App) (ports.SessionStore, *goredis.Client, error) {
	mws, err := storeMiddlewares(cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	var base ports.SessionStore
	var client *goredis.Client
	switch cfg.Store.Kind {
	case "memory", "":
		base = memory.NewStore()
	case "file":
		base = file.New(cfg.Store.Path)
	case "redis":
		client = newRedisClient(cfg.Redis)
		app.closers = append(app.closers, client)
		base = redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	return middleware.Chain(base, mws...), client, nil
}

// storeMiddlewares builds the persistence chain: redaction runs before
// encryption so masked values are what gets sealed.
func storeMiddlewares(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware

	if len(cfg.Redact) > 0 {
		for _, p := range cfg.Redact {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid store.redact pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewRedactMiddleware(cfg.Redact))
	}

	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return mws, nil
}

func newRedisClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func ackPolicy(s string) interlude.AckPolicy {
	if s == "discard" {
		return interlude.AckDiscard
	}
	return interlude.AckSurface
}
