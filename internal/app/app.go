// Package app wires configuration, storage and HTTP into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/internal/security/password"
	"github.com/fastygo/taskboard/internal/security/token"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/internal/storage"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	profileUC "github.com/fastygo/taskboard/usecase/profile"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

// App owns every long-lived component of the server.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	server  *fasthttp.Server
	monitor *monitor.Monitor
	manager *lifecycle.Manager
}

// New connects to storage and builds the HTTP stack. Startup failures release
// whatever was opened before returning.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	manager := lifecycle.New(cfg.Context.ShutdownTimeout, logger)

	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	manager.Register("storage", backend.Close)

	tokens, err := token.NewManager(token.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
	})
	if err != nil {
		_ = manager.Shutdown(context.Background())
		return nil, err
	}
	hasher := password.NewHasher(cfg.Password.Cost, cfg.Password.MaxConcurrency)

	mon := monitor.New(cfg.Monitor.Interval, logger)
	for name, probe := range backend.Probes {
		mon.Register(name, probe.Ping)
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUC.New(backend.Users, hasher, tokens, logger), ctxAdapter, logger),
		Profile: apiHandler.NewProfileHandler(profileUC.New(backend.Users, logger), ctxAdapter, logger),
		Task:    apiHandler.NewTaskHandler(taskUC.New(backend.Tasks, logger), ctxAdapter, logger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, logger),
	}
	r := router.New(handlers, middleware.JWTAuth(tokens, logger), logger)

	server := &fasthttp.Server{
		Handler: middleware.Chain(r.Handler,
			middleware.AccessLog(logger),
			middleware.CORS(cfg.CORS.AllowedOrigins),
		),
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxBodyBytes,
		Name:               cfg.AppName,
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		server:  server,
		monitor: mon,
		manager: manager,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() fasthttp.RequestHandler {
	return a.server.Handler
}

// Run serves until ctx is cancelled or the listener fails, then shuts every
// component down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp4", a.cfg.Address())
	if err != nil {
		_ = a.manager.Shutdown(context.Background())
		return fmt.Errorf("listen on %s: %w", a.cfg.Address(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.monitor.Start()
	a.manager.Register("monitor", func(ctx context.Context) error {
		a.monitor.Stop(ctx)
		return nil
	})
	a.manager.Register("http_server", func(ctx context.Context) error {
		return a.server.ShutdownWithContext(ctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server started", zap.String("address", ln.Addr().String()))
		serveErr <- a.server.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	if err := a.manager.Shutdown(context.Background()); err != nil {
		a.logger.Error("graceful shutdown error", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// Close releases resources without serving; used when startup is aborted.
func (a *App) Close() error {
	return a.manager.Shutdown(context.Background())
}
