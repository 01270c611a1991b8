// Package app wires every intervue subsystem into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until its context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithPublisher, WithRecognizerFactory). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/intervue/internal/api"
	"github.com/MrWong99/intervue/internal/assess"
	"github.com/MrWong99/intervue/internal/config"
	"github.com/MrWong99/intervue/internal/events"
	"github.com/MrWong99/intervue/internal/health"
	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/internal/observe"
	"github.com/MrWong99/intervue/internal/store"
	"github.com/MrWong99/intervue/internal/store/postgres"
	"github.com/MrWong99/intervue/internal/store/sqlite"
	"github.com/MrWong99/intervue/internal/transport"
	"github.com/MrWong99/intervue/internal/vocab"
)

// readHeaderTimeout bounds how long a client may take to send request
// headers.
const readHeaderTimeout = 10 * time.Second

// errDraining is reported by /readyz once shutdown has begun.
var errDraining = errors.New("shutting down")

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	metrics   *observe.Metrics
	scrape    http.Handler
	store     store.Store
	guard     *store.Guard
	pub       events.Publisher
	prompts   *assess.PromptManager
	newRec    interview.RecognizerFactory
	registry  *interview.Registry
	service   *api.Service
	router    chi.Router
	server    *http.Server
	draining  atomic.Bool
	ownsStore bool
	ownsPub   bool

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a bookkeeping store instead of opening one from config.
// The caller keeps ownership and closes it.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithPublisher injects an event publisher instead of connecting to NATS.
// The caller keeps ownership and closes it.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.pub = p }
}

// WithMetrics injects the metrics instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the handler mounted at /metrics. The default
// serves the global Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithVersion sets the build version reported by /healthz.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithRecognizerFactory replaces the recognizer factory built over the STT
// provider.
func WithRecognizerFactory(f interview.RecognizerFactory) Option {
	return func(a *App) { a.newRec = f }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from [BuildProviders]. On error every subsystem opened so far is
// closed again.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.scrape == nil {
		a.scrape = promhttp.Handler()
	}

	if err := a.init(ctx); err != nil {
		a.runClosers()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Events ────────────────────────────────────────────────────────
	if err := a.initEvents(ctx); err != nil {
		return fmt.Errorf("app: init events: %w", err)
	}

	// ── 3. Assessment collaborators ──────────────────────────────────────
	prompts, err := assess.NewPromptManager(a.cfg.Prompts.File)
	if err != nil {
		return fmt.Errorf("app: load prompts: %w", err)
	}
	a.prompts = prompts

	// ── 4. Session registry ──────────────────────────────────────────────
	if err := a.initRegistry(); err != nil {
		return fmt.Errorf("app: init registry: %w", err)
	}

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	a.initRouter()
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		st, err := openStore(ctx, a.cfg.Storage)
		if err != nil {
			return err
		}
		a.store = st
		a.ownsStore = true
		a.closers = append(a.closers, st.Close)
	}
	a.guard = store.NewGuard(a.store)
	return nil
}

// openStore opens the backend selected by cfg.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		st, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorageSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorageMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (a *App) initEvents(ctx context.Context) error {
	if a.pub != nil {
		return nil
	}
	if a.cfg.Events.NATSURL == "" {
		a.pub = events.Nop{}
		return nil
	}
	p, err := events.NewNATSPublisher(ctx, a.cfg.Events.NATSURL, a.cfg.Events.SubjectPrefix)
	if err != nil {
		return err
	}
	a.pub = p
	a.ownsPub = true
	a.closers = append(a.closers, p.Close)
	return nil
}

func (a *App) initRegistry() error {
	if a.newRec == nil {
		if a.providers.STT == nil {
			return errors.New("no STT provider configured")
		}
		var recOpts []interview.StreamOption
		if terms := a.cfg.Interview.Vocabulary; len(terms) > 0 {
			recOpts = append(recOpts, interview.WithCorrection(vocab.New(terms).Apply))
			slog.Info("vocabulary correction enabled", "terms", len(terms))
		}
		a.newRec = interview.ProviderRecognizerFactory(a.providers.STT, a.cfg.StreamConfig(), recOpts...)
	}

	regOpts := []interview.Option{
		interview.WithSessionConfig(a.cfg.SessionConfig()),
		interview.WithFollowUpPolicy(a.cfg.FollowUpPolicy()),
		interview.WithObserver(interview.MultiObserver(
			observe.NewSessionObserver(a.metrics),
			events.NewObserver(a.pub),
		)),
	}
	svcOpts := []api.ServiceOption{api.WithPublisher(a.pub)}

	if a.providers.LLM != nil {
		opts := assess.Options{
			Temperature: a.cfg.LLM.Temperature,
			MaxTokens:   a.cfg.LLM.MaxTokens,
			Timeout:     a.cfg.LLM.Timeout,
			Metrics:     a.metrics,
		}
		regOpts = append(regOpts,
			interview.WithEvaluator(assess.NewLLMEvaluator(a.providers.LLM, a.prompts, opts)),
			interview.WithQuestioner(assess.NewLLMQuestioner(a.providers.LLM, a.prompts, opts)),
		)
		svcOpts = append(svcOpts, api.WithReporter(assess.NewReporter(a.providers.LLM, a.prompts, opts)))
	} else {
		slog.Warn("no LLM provider; answers will be recorded without evaluation or follow-ups")
	}

	a.registry = interview.NewRegistry(a.newRec, regOpts...)
	a.service = api.NewService(a.guard, a.registry, svcOpts...)
	return nil
}

func (a *App) initRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(a.metrics))

	checkers := []health.Checker{
		{Name: "draining", Check: func(context.Context) error {
			if a.draining.Load() {
				return errDraining
			}
			return nil
		}},
		health.Ping("store", a.guard),
		health.NotDegraded("store_writes", a.guard),
	}
	if h, ok := a.providers.LLM.(health.BackendGroup); ok {
		checkers = append(checkers, health.Backends("llm", h))
	}
	if h, ok := a.providers.STT.(health.BackendGroup); ok {
		checkers = append(checkers, health.Backends("stt", h))
	}
	health.New(health.WithVersion(a.version), health.WithCheckers(checkers...)).Routes(r)

	r.Handle("/metrics", a.scrape)
	api.NewHandler(a.service).Routes(r)
	transport.NewHandler(a.registry, transport.Options{
		OriginPatterns:     a.cfg.Transport.OriginPatterns,
		InsecureSkipVerify: a.cfg.Transport.InsecureSkipVerify,
	}).Routes(r)

	a.router = r
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.router }

// Registry returns the live session registry.
func (a *App) Registry() *interview.Registry { return a.registry }

// Reload applies the hot-reloadable parts of a config change. The log level
// is owned by the caller.
func (a *App) Reload(cfg *config.Config, d config.ConfigDiff) {
	if d.FollowUpChanged {
		a.registry.SetFollowUpPolicy(cfg.FollowUpPolicy())
		slog.Info("follow-up policy reloaded",
			"min_answer_runes", cfg.Interview.FollowUp.MinAnswerRunes,
			"hedge_markers", len(cfg.Interview.FollowUp.HedgeMarkers),
		)
	}
	if d.PromptsChanged {
		if err := a.prompts.SetPath(d.NewPromptsFile); err != nil {
			slog.Warn("failed to reload prompts, keeping previous templates", "file", d.NewPromptsFile, "err", err)
		} else {
			slog.Info("prompts reloaded", "file", d.NewPromptsFile)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
}

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// When ctx is done, Run returns its error.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		slog.Info("http server listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	}
}

// Shutdown stops the HTTP server and cleans up every live session
// concurrently, then closes the owned subsystems in reverse order. It is
// idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.draining.Store(true)
		slog.Info("shutting down", "sessions", a.registry.Len(), "closers", len(a.closers))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := a.server.Shutdown(gctx); err != nil {
				return fmt.Errorf("app: stop http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if err := a.registry.Shutdown(gctx); err != nil {
				return fmt.Errorf("app: stop sessions: %w", err)
			}
			return nil
		})
		err := g.Wait()

		a.stopErr = errors.Join(err, a.runClosers())
		slog.Info("shutdown complete")
	})
	return a.stopErr
}

// runClosers calls the closers in reverse order of registration.
func (a *App) runClosers() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
