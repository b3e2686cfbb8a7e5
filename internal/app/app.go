// Package app wires the narrator server together: the API routes, health
// probes, metrics and live configuration.
//
// New builds every component from the initial config, Run serves HTTP until
// the context ends, Reload applies a changed config without a restart, and
// Shutdown drains connections and runs the registered closers in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/chronicles/internal/config"
	"github.com/MrWong99/chronicles/internal/health"
	"github.com/MrWong99/chronicles/internal/narrator"
	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/server"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// readHeaderTimeout bounds how long a client may take to send its headers.
// Turn streams are long-lived, so no write timeout is set.
const readHeaderTimeout = 10 * time.Second

// App owns the narrator server and its lifetime.
type App struct {
	cfg     atomic.Pointer[config.Config]
	build   narrator.BuildFunc
	level   *slog.LevelVar
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	speech   tts.Provider

	listener net.Listener
	srv      *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithLevel lets Reload change the log level of the handler built on lv.
func WithLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithSpeech offers p to clients through the speech routes.
func WithSpeech(p tts.Provider) Option {
	return func(a *App) { a.speech = p }
}

// WithListener serves on l instead of listening on the configured address.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithCloser registers fn to run during Shutdown, after the HTTP server has
// stopped.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New validates cfg and builds the server. build constructs narrator
// backends for every request.
func New(cfg *config.Config, build narrator.BuildFunc, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if build == nil {
		return nil, errors.New("app: narrator build func is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{build: build}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level != nil {
		a.level.Set(cfg.Server.LogLevel.Slog())
	}
	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Handler returns the full route tree: the narrator API, health probes and
// /metrics, behind the metrics middleware and CORS.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	opts := []server.Option{server.WithMetrics(a.metrics)}
	if a.speech != nil {
		opts = append(opts, server.WithSpeech(a.speech))
	}
	server.New(a.Config, a.build, opts...).Register(mux)
	health.New(health.ConfigLoaded(a.Config), health.DefaultProvider(a.Config)).Register(mux)
	if a.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	api := observe.Middleware(a.metrics)(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.CORS(a.Config().Server.AllowedOrigin, api).ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled or the server fails. A cancelled ctx
// does not stop in-flight requests; call Shutdown for that.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	l := a.listener
	if l == nil {
		var err error
		l, err = net.Listen("tcp", cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", cfg.Server.ListenAddr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = a.srv.ServeTLS(l, tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.Serve(l)
		}
		errCh <- err
	}()
	slog.Info("server listening", "addr", l.Addr().String(), "tls", cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Reload swaps in next and applies what can change live. It matches the
// [config.NewWatcher] callback signature.
func (a *App) Reload(old, next *config.Config) {
	if old == nil {
		old = a.Config()
	}
	d := config.Diff(old, next)
	a.cfg.Store(next)
	if d.IsEmpty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.StreamChanged {
		slog.Info("stream timing changed", "turn_timeout", d.NewTurnTimeout, "chunk_delay", d.NewChunkDelay)
	}
	if d.DefaultProviderChanged {
		slog.Info("default provider changed", "provider", d.NewDefaultProvider)
	}
	if d.OriginChanged {
		slog.Info("allowed origin changed", "origin", d.NewAllowedOrigin)
	}
	if len(d.CredentialsChanged) > 0 {
		slog.Info("provider credentials changed", "providers", d.CredentialsChanged)
	}
	if d.RestartRequired {
		slog.Warn("config change needs a restart to take effect")
	}
}

// Shutdown stops accepting connections, waits for in-flight requests and
// then runs the closers. It respects the context deadline: if ctx expires,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
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
