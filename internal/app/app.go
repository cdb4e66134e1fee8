// Package app wires the medshadow subsystems into a running HTTP server.
//
// The App struct owns the full lifecycle: New connects the store, seeds the
// scenario catalog, and builds the handler chain; Run serves until its
// context is cancelled; Shutdown releases everything in order.
//
// For testing, inject a store and listener via functional options
// (WithStore, WithListener). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/medshadow/internal/api"
	"github.com/MrWong99/medshadow/internal/auth"
	"github.com/MrWong99/medshadow/internal/catalog"
	"github.com/MrWong99/medshadow/internal/config"
	"github.com/MrWong99/medshadow/internal/evaluation"
	"github.com/MrWong99/medshadow/internal/feedback"
	"github.com/MrWong99/medshadow/internal/health"
	"github.com/MrWong99/medshadow/internal/observe"
	"github.com/MrWong99/medshadow/internal/ratelimit"
	"github.com/MrWong99/medshadow/internal/resilience"
	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/internal/transcript/phonetic"
	"github.com/MrWong99/medshadow/pkg/provider/stt"
	"github.com/MrWong99/medshadow/pkg/provider/tts"
	"github.com/MrWong99/medshadow/pkg/store"
	"github.com/MrWong99/medshadow/pkg/store/memstore"
	"github.com/MrWong99/medshadow/pkg/store/postgres"
)

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per speech slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT     stt.Provider
	STTName string
	TTS     tts.Provider
	TTSName string
}

// breakerReporter is implemented by the resilience fallback wrappers.
type breakerReporter interface {
	States() []resilience.ProviderState
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store    store.Store
	registry *prometheus.Registry
	metrics  *observe.Metrics
	handler  http.Handler
	server   *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config. The App
// takes ownership and closes it on Shutdown.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithListener makes Run serve on l instead of listening on
// server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App by wiring all subsystems together. providers may be nil.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initTelemetry(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initCatalog(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}
	if err := a.initHandler(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init handler: %w", err)
	}

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

// Handler returns the root HTTP handler with every middleware applied.
func (a *App) Handler() http.Handler { return a.handler }

// initTelemetry installs the OpenTelemetry providers with a Prometheus
// exporter on a registry owned by this App.
func (a *App) initTelemetry(ctx context.Context) error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: health.APIVersion,
		Registerer:     a.registry,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initStore connects PostgreSQL, or falls back to the in-memory store when
// no DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		dsn := a.cfg.Database.PostgresDSN
		if dsn == "" {
			slog.Warn("database.postgres_dsn not set, using in-memory store; data is lost on restart")
			a.store = memstore.New()
		} else {
			var opts []postgres.Option
			if n := a.cfg.Database.MaxConns; n > 0 {
				opts = append(opts, postgres.WithMaxConns(n))
			}
			st, err := postgres.NewStore(ctx, dsn, opts...)
			if err != nil {
				return err
			}
			a.store = st
			slog.Info("connected to postgres")
		}
	}
	st := a.store
	a.closers = append(a.closers, func() error {
		st.Close()
		return nil
	})
	return nil
}

// initCatalog imports the seed catalog, if one is configured.
func (a *App) initCatalog(ctx context.Context) error {
	path := a.cfg.Catalog.SeedFile
	if path == "" {
		return nil
	}
	f, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	n, err := catalog.Import(ctx, a.store, f)
	if err != nil {
		return fmt.Errorf("import %q: %w", path, err)
	}
	slog.Info("imported scenario catalog", "path", path, "scenarios", n)
	return nil
}

func (a *App) initHandler() error {
	cfg := a.cfg

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return err
	}

	eval := evaluation.New(a.store, a.store, a.evaluationOptions()...)

	mux := http.NewServeMux()
	a.healthHandler().Register(mux)
	mux.Handle("GET "+cfg.Telemetry.MetricsPath, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	api.New(a.store, issuer, eval,
		api.WithMetrics(a.metrics),
		api.WithMaxUploadBytes(cfg.Speech.MaxUploadBytes),
	).Register(mux)

	var h http.Handler = mux
	if cfg.RateLimit.IsEnabled() {
		rl := cfg.RateLimit
		general := ratelimit.New(rl.MaxRequests, rl.Window)
		strict := ratelimit.New(rl.AuthMaxRequests, rl.Window,
			ratelimit.WithError(respond.CodeAuthRateLimit, "too many authentication attempts, please try again later"))
		a.closers = append(a.closers, general.Close, strict.Close)
		h = general.Scope("/api/")(strict.Scope("/api/auth")(h))
	}
	h = a.corsHandler().Handler(h)
	a.handler = observe.Middleware(a.metrics)(h)
	return nil
}

func (a *App) evaluationOptions() []evaluation.Option {
	cfg := a.cfg
	opts := []evaluation.Option{
		evaluation.WithMetrics(a.metrics),
		evaluation.WithLanguage(cfg.Speech.Language),
		evaluation.WithSampleRate(cfg.Speech.SampleRate),
		evaluation.WithVoice(tts.VoiceProfile{
			ID:          cfg.Speech.VoiceID,
			Provider:    a.providers.TTSName,
			SpeedFactor: cfg.Speech.SpeedFactor,
		}),
	}
	if cfg.Scoring.HintsEnabled() {
		opts = append(opts, evaluation.WithMatcher(phonetic.New(
			phonetic.WithPhoneticThreshold(cfg.Scoring.PhoneticThreshold),
			phonetic.WithFuzzyThreshold(cfg.Scoring.FuzzyThreshold),
		)))
	} else {
		opts = append(opts, evaluation.WithMatcher(nil))
	}
	if path := cfg.Attempts.LogFile; path != "" {
		opts = append(opts, evaluation.WithJournal(feedback.NewFileStore(path)))
		slog.Info("attempt journal enabled", "path", path)
	}
	if p := a.providers.STT; p != nil {
		opts = append(opts, evaluation.WithSTT(a.providers.STTName, p))
	}
	if p := a.providers.TTS; p != nil {
		opts = append(opts, evaluation.WithTTS(a.providers.TTSName, p))
	}
	return opts
}

func (a *App) healthHandler() *health.Handler {
	opts := []health.Option{
		health.WithEnvironment(string(a.cfg.Server.Environment)),
		health.WithChecker("database", a.store.Ping),
	}
	if r, ok := a.providers.STT.(breakerReporter); ok {
		opts = append(opts, health.WithChecker("stt", breakerCheck(r)))
	}
	if r, ok := a.providers.TTS.(breakerReporter); ok {
		opts = append(opts, health.WithChecker("tts", breakerCheck(r)))
	}
	return health.New(opts...)
}

// breakerCheck fails once every provider in a fallback chain has an open
// circuit.
func breakerCheck(r breakerReporter) func(context.Context) error {
	return func(context.Context) error {
		states := r.States()
		if len(states) == 0 {
			return nil
		}
		for _, s := range states {
			if s.State != resilience.StateOpen.String() {
				return nil
			}
		}
		return errors.New("all circuits open")
	}
}

// corsHandler allows the configured origins with credentials. An empty
// allow-list rejects every cross-origin request.
func (a *App) corsHandler() *cors.Cors {
	opts := cors.Options{
		AllowedOrigins:   slices.Clone(a.cfg.Server.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Correlation-ID", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
	}
	if len(opts.AllowedOrigins) == 0 {
		// rs/cors treats an empty list as "*".
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(opts)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within server.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tlsCfg := a.cfg.Server.TLS; tlsCfg != nil {
			err = a.server.ServeTLS(ln, tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("app: drain http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Shutdown stops the HTTP server if it is still running and tears down all
// subsystems in init order. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases what a failed New already acquired.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}
