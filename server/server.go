// Package server exposes the gateway over HTTP: RPC forwarding, per-thread
// SSE streams, interaction responses and the workspace browser, split across
// a browser listener and an ops listener.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/viant/darkhold/appserver"
	"github.com/viant/darkhold/config"
	"github.com/viant/darkhold/eventlog"
	"github.com/viant/darkhold/fsbrowser"
	"github.com/viant/darkhold/hub"
	"github.com/viant/darkhold/interaction"
	"github.com/viant/darkhold/metrics"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/sync/errgroup"
)

// Server owns the two HTTP listeners and the component graph behind them.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	store   *eventlog.Store
	hub     *hub.Hub
	broker  *interaction.Broker
	manager *appserver.Manager
	browser *fsbrowser.Browser

	appOptions []appserver.Option

	primary *http.Server
	ops     *http.Server
}

// Option represents a server option.
type Option func(s *Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore sets a pre-built event store. The caller keeps ownership of its
// cleanup.
func WithStore(store *eventlog.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithAppServerOptions appends child transport options, applied after the
// gateway wiring; tests use this to script the child.
func WithAppServerOptions(options ...appserver.Option) Option {
	return func(s *Server) {
		s.appOptions = append(s.appOptions, options...)
	}
}

// New builds the component graph: event store, hub, interaction broker,
// child session manager and the routing of both listeners.
func New(cfg *config.Config, options ...Option) (*Server, error) {
	s := &Server{config: cfg, logger: slog.Default()}
	for _, option := range options {
		option(s)
	}
	if s.store == nil {
		store, err := eventlog.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create event store: %w", err)
		}
		s.store = store
	}
	s.hub = hub.New(s.store, hub.WithLogger(s.logger.With("component", "hub")), hub.WithKeepalive(cfg.Keepalive))
	s.broker = interaction.NewBroker()
	browser, err := fsbrowser.New(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	s.browser = browser

	gw := &gateway{hub: s.hub, broker: s.broker, logger: s.logger.With("component", "gateway")}
	appOptions := []appserver.Option{
		appserver.WithLogger(s.logger.With("component", "appserver")),
		appserver.WithHandler(gw),
		appserver.WithInterceptor(appserver.InterceptorFunc(s.interceptThreadResponse)),
		appserver.WithCommand(cfg.CodexCommand, cfg.CodexArgs...),
		appserver.WithCallTimeout(cfg.RPCTimeout),
		appserver.WithChildGrace(cfg.ChildGrace),
	}
	if cfg.Remote() {
		appOptions = append(appOptions, appserver.WithRemote(cfg.RemoteHost, secret.Resource(cfg.RemoteSecret)))
	}
	appOptions = append(appOptions, s.appOptions...)
	s.manager = appserver.NewManager(appOptions...)
	gw.manager = s.manager

	s.primary = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler: s.withClientFilter(s.withOriginGuard(s.browserMux())),
	}
	s.ops = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Bind, cfg.RPCPort),
		Handler: s.withClientFilter(s.opsMux()),
	}
	return s, nil
}

// browserMux routes the full browser surface.
func (s *Server) browserMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/fs/list", s.handleFSList)
	mux.HandleFunc("/api/thread/events", s.handleThreadEvents)
	mux.HandleFunc("/api/thread/events/stream", s.handleThreadEventsStream)
	mux.HandleFunc("/api/rpc", s.handleRPC)
	mux.HandleFunc("/api/thread/interaction/respond", s.handleInteractionRespond)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// opsMux routes the programmatic surface.
func (s *Server) opsMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/rpc", s.handleRPC)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// Start runs both listeners until ctx is canceled, then shuts down: HTTP
// first so no new work arrives, the children after.
func (s *Server) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serveListener(s.primary)
	})
	group.Go(func() error {
		return serveListener(s.ops)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return s.shutdown()
	})
	s.logger.Info("darkhold listening",
		"addr", s.primary.Addr, "ops", s.ops.Addr, "basePath", s.browser.Base())
	return group.Wait()
}

func serveListener(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
	defer cancel()
	_ = s.primary.Shutdown(ctx)
	_ = s.ops.Shutdown(ctx)
	// Shutdown leaves open SSE streams in place; Close drops them.
	_ = s.primary.Close()
	_ = s.ops.Close()
	return s.manager.Shutdown(ctx)
}
