// Package cli assembles the teller components from a configuration and
// hosts the interactive chat loop used by the teller command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/teller/internal/config"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/internal/metrics"
	"github.com/aretw0/teller/pkg/adapters/file"
	"github.com/aretw0/teller/pkg/adapters/mcp"
	"github.com/aretw0/teller/pkg/adapters/memory"
	"github.com/aretw0/teller/pkg/adapters/openai"
	"github.com/aretw0/teller/pkg/adapters/postgres"
	"github.com/aretw0/teller/pkg/adapters/process"
	"github.com/aretw0/teller/pkg/adapters/redis"
	"github.com/aretw0/teller/pkg/dispatch"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/orchestrator"
	"github.com/aretw0/teller/pkg/persistence/middleware"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/aretw0/teller/pkg/postprocess"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/aretw0/teller/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// App is a fully wired mediation layer.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Catalog      *schema.Registry
	Sessions     *session.Manager
	Dispatcher   *dispatch.Dispatcher
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Collector

	checks  []func(context.Context) error
	closers []func() error
	cancel  context.CancelFunc
}

// BuildOption adjusts how Build assembles an App.
type BuildOption func(*buildOptions)

type buildOptions struct {
	model     ports.Model
	connector ports.Connector
}

// WithModel replaces the OpenAI-compatible model built from the configuration.
func WithModel(m ports.Model) BuildOption {
	return func(o *buildOptions) { o.model = m }
}

// WithConnector replaces the connector selected by dispatch.transport.
func WithConnector(c ports.Connector) BuildOption {
	return func(o *buildOptions) { o.connector = c }
}

// Build wires every component described by cfg. The returned App must be
// closed; background work such as the slot sweeper stops with it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logging.MaskKeys(cfg.Log.Mask...)

	ctx, cancel := context.WithCancel(ctx)
	app := &App{Config: cfg, Logger: logger, cancel: cancel}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	catalog, err := loadCatalog(ctx, cfg.Conversation.Catalog)
	if err != nil {
		return nil, err
	}
	app.Catalog = catalog
	app.Metrics = metrics.New(true)

	sessions, err := app.buildSessions(ctx)
	if err != nil {
		return nil, err
	}
	app.Sessions = sessions

	connector := bo.connector
	if connector == nil {
		if connector, err = buildConnector(cfg, catalog, logger); err != nil {
			return nil, err
		}
	}
	app.Dispatcher = dispatch.New(connector,
		dispatch.WithTimeout(cfg.Dispatch.Timeout),
		dispatch.WithLogger(logger),
		dispatch.WithHooks(app.Metrics.Hooks()),
		dispatch.WithBreaker(breakerSettings(cfg.Dispatch)),
	)
	app.checks = append(app.checks, func(context.Context) error {
		if app.Dispatcher.BreakerState() == gobreaker.StateOpen {
			return errors.New("tool service circuit is open")
		}
		return nil
	})

	model := bo.model
	if model == nil {
		model = openai.New(openai.Config{
			APIKey:      cfg.Model.APIKey,
			BaseURL:     cfg.Model.BaseURL,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		}, openai.WithLogger(logger))
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithToolCalling(cfg.Model.ToolCalling),
		orchestrator.WithHistoryTurns(cfg.Conversation.HistoryTurns),
		orchestrator.WithMaxInputSize(cfg.Conversation.MaxInputBytes),
		orchestrator.WithModelTimeout(cfg.Model.Timeout),
		orchestrator.WithDefaultLanguage(domain.ParseLanguage(cfg.Conversation.DefaultLanguage, domain.Kyrgyz)),
		orchestrator.WithIdentityKey(cfg.Conversation.IdentityKey),
		orchestrator.WithHooks(app.Metrics.Hooks()),
		orchestrator.WithLogger(logger),
	}
	if cfg.Conversation.Reformat {
		orchOpts = append(orchOpts, orchestrator.WithReformatter(postprocess.New(model,
			postprocess.WithTimeout(cfg.Conversation.ReformatTimeout),
			postprocess.WithLogger(logger),
		)))
	}
	app.Orchestrator = orchestrator.New(model, catalog, sessions, app.Dispatcher, orchOpts...)

	logger.Info("Teller assembled",
		"operations", catalog.Len(),
		"transport", cfg.Dispatch.Transport,
		"slots", cfg.Slots.Backend,
		"reformat", cfg.Conversation.Reformat,
	)
	ok = true
	return app, nil
}

// Health runs the readiness checks of the wired backends.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	for _, check := range a.checks {
		errs = append(errs, check(ctx))
	}
	return errors.Join(errs...)
}

// Close stops background work and releases backend connections.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func loadCatalog(ctx context.Context, path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	catalog, err := schema.LoadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return catalog, nil
}

func (a *App) buildSessions(ctx context.Context) (*session.Manager, error) {
	cfg := a.Config
	opts := []session.Option{
		session.WithTTL(cfg.Slots.TTL),
		session.WithLogger(a.Logger),
	}

	var store ports.SlotStore
	switch cfg.Slots.Backend {
	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		store = redis.NewFromClient(client, redis.WithTTL(cfg.Slots.TTL), redis.WithPrefix(cfg.Redis.Prefix))
		opts = append(opts,
			session.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)),
			session.WithLockTTL(cfg.Redis.LockTTL),
		)
	case config.BackendFile:
		fs := file.New(cfg.Slots.Dir)
		if cfg.Slots.SweepInterval > 0 {
			go fs.Run(ctx, cfg.Slots.SweepInterval)
		}
		store = fs
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.checks = append(a.checks, db.PingContext)
		pg := postgres.New(db, postgres.WithTable(cfg.Postgres.Table))
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		if cfg.Slots.SweepInterval > 0 {
			go pg.Run(ctx, cfg.Slots.SweepInterval)
		}
		store = pg
	default:
		mem := memory.NewStore()
		if cfg.Slots.SweepInterval > 0 {
			go mem.Run(ctx, cfg.Slots.SweepInterval)
		}
		store = mem
	}

	if len(cfg.Slots.EncryptionKeys) > 0 {
		enc, err := middleware.ParseKeys(cfg.Slots.EncryptionKeys...)
		if err != nil {
			return nil, fmt.Errorf("slot encryption: %w", err)
		}
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(enc))
	}
	return session.NewManager(store, opts...), nil
}

func buildConnector(cfg *config.Config, catalog *schema.Registry, logger *slog.Logger) (ports.Connector, error) {
	d := cfg.Dispatch
	switch d.Transport {
	case config.TransportStdio:
		return mcp.NewStdioConnector(d.Command, d.Args, d.Env, mcp.WithLogger(logger)), nil
	case config.TransportHTTP:
		return mcp.NewHTTPConnector(d.URL, mcp.WithLogger(logger)), nil
	case config.TransportProcess:
		tools, err := process.LoadTools(d.ToolsFile)
		if err != nil {
			return nil, err
		}
		return process.NewRunner(
			process.WithRegistry(tools),
			process.WithBaseDir(filepath.Dir(d.ToolsFile)),
			process.WithLogger(logger),
		), nil
	case config.TransportInProcess:
		srv, err := NewToolServer(cfg, catalog, logger)
		if err != nil {
			return nil, err
		}
		return mcp.NewInProcessConnector(srv.MCPServer(), mcp.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown dispatch transport %q", d.Transport)
	}
}

func breakerSettings(d config.DispatchConfig) gobreaker.Settings {
	st := dispatch.DefaultBreakerSettings()
	if d.BreakerReset > 0 {
		st.Timeout = d.BreakerReset
	}
	if d.MaxFailures > 0 {
		limit := d.MaxFailures
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		}
	}
	return st
}
