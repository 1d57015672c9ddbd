package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shopdemo/api/config"
	"shopdemo/api/database"
	"shopdemo/api/handlers"
	"shopdemo/api/logging"
	"shopdemo/api/metrics"
	"shopdemo/api/middleware"
	"shopdemo/api/store"
)

const (
	serviceAnalytics = "analytics"
	serviceGames     = "games"
	serviceOrders    = "orders"
	serviceAll       = "all"
)

var services = []string{serviceAnalytics, serviceGames, serviceOrders, serviceAll}

const (
	bootstrapTimeout = 30 * time.Second
	shutdownTimeout  = 5 * time.Second
)

func newServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:       "serve [analytics|games|orders|all]",
		Short:     "Run one of the HTTP services, or all of them on one port.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: services,
		RunE: func(cmd *cobra.Command, args []string) error {
			service := serviceAll
			if len(args) == 1 {
				service = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, service)
		},
	}
}

func runServe(ctx context.Context, service string) error {
	envErr := config.LoadDotEnv()

	cfg, err := config.Load(service)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, !cfg.Release())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", service))

	if envErr != nil {
		logger.Info("No .env file found or error loading .env", zap.Error(envErr))
	}
	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}

	b, err := bootstrap(ctx, service, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(cfg, logger, b.routes...),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("API server starting", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("API server failed to start: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting.")
	return nil
}

type routeRegistrar interface {
	Register(r gin.IRouter)
}

// backend holds the stores a service needs and the route sets they back.
type backend struct {
	routes  []routeRegistrar
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// bootstrap connects only the stores the chosen service needs and ensures
// their tables exist. Any failure aborts startup.
func bootstrap(ctx context.Context, service string, cfg config.Config, logger *zap.Logger) (*backend, error) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	b := &backend{}
	fail := func(err error) (*backend, error) {
		b.close()
		return nil, err
	}
	wants := func(name string) bool {
		return service == name || service == serviceAll
	}

	if wants(serviceAnalytics) {
		ch, err := database.NewClickHouseDB(cfg.ClickHouse, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize ClickHouse database: %w", err))
		}
		b.closers = append(b.closers, ch.Close)

		analyticsStore := store.NewAnalyticsStore(ch.Conn, logger)
		if err := analyticsStore.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		b.routes = append(b.routes, handlers.NewAnalyticsHandlers(analyticsStore, logger))
	}

	if wants(serviceGames) {
		db, err := database.NewPostgresDB(serviceGames, cfg.GamesDatabaseURL, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize games database: %w", err))
		}
		b.closers = append(b.closers, db.Close)

		gameStore := store.NewGameStore(db.DB, logger)
		if err := gameStore.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		b.routes = append(b.routes, handlers.NewGameHandlers(gameStore, logger))
	}

	if wants(serviceOrders) {
		db, err := database.NewPostgresDB(serviceOrders, cfg.OrdersDatabaseURL, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize orders database: %w", err))
		}
		b.closers = append(b.closers, db.Close)

		orderStore := store.NewOrderStore(db.DB, logger)
		if err := orderStore.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		b.routes = append(b.routes, handlers.NewOrderHandlers(orderStore, logger))
	}

	return b, nil
}

func newRouter(cfg config.Config, logger *zap.Logger, routes ...routeRegistrar) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		middleware.CORSMiddleware(cfg.FrontendOrigins),
		middleware.SecurityHeaders(cfg.Release()),
	)

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	for _, rr := range routes {
		rr.Register(r)
	}
	return r
}
