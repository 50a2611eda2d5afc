// Command server runs the career fair reservation API.
//
//	server            serve HTTP (default)
//	server migrate    apply database migrations and exit
//	server consume    run the notification consumer only
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/careerfair-reservation/internal/app"
	"github.com/iliyamo/careerfair-reservation/internal/config"
	"github.com/iliyamo/careerfair-reservation/internal/database"
	"github.com/iliyamo/careerfair-reservation/internal/handler"
	"github.com/iliyamo/careerfair-reservation/internal/middleware"
	"github.com/iliyamo/careerfair-reservation/internal/queue"
	"github.com/iliyamo/careerfair-reservation/internal/repository"
	"github.com/iliyamo/careerfair-reservation/internal/router"
	"github.com/iliyamo/careerfair-reservation/internal/service"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code once every deferred cleanup has run.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	log := app.NewLogger(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, log)
	case "consume":
		err = consume(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown command %q (want serve, migrate or consume)", cmd)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exit", zap.String("command", cmd), zap.Error(err))
		return 1
	}
	return 0
}

func migrate(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	m, err := database.NewMigrator(db.DB, log)
	if err != nil {
		return err
	}
	return m.Up(ctx)
}

func consume(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	f, err := queue.OpenLog(cfg.AMQP.NotificationLog)
	if err != nil {
		return err
	}
	defer f.Close()
	return queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, f, log.Named("consumer")).Run(ctx)
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if cfg.DB.AutoMigrate {
		if err := migrate(ctx, cfg, log); err != nil {
			return err
		}
	}

	var events service.Publisher = service.NopPublisher{}
	if cfg.AMQP.Enabled {
		p := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, log.Named("publisher"))
		defer p.Close()
		events = p
		if cfg.AMQP.ConsumerEnabled {
			go func() {
				if err := consume(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("notification consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable, running without rate limiting and response cache", zap.String("addr", cfg.Redis.Address()))
	} else {
		defer rdb.Close()
	}

	profiles := repository.NewProfileRepo(db)
	reservations := service.NewReservationService(repository.NewReservationRepo(db), profiles, events, log.Named("reservations"))
	allocation := service.NewAllocationService(
		repository.NewConfigRepo(db),
		repository.NewTableRepo(db),
		profiles,
		events,
		log.Named("tables"),
		service.AllocationOptions{MaxCapacity: cfg.Tables.MaxCapacity, DefaultCapacity: cfg.Tables.DefaultCapacity},
	)

	opts := handler.Options{Log: log, Timeout: cfg.RequestTimeout}
	guard := router.Guard{
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log.Named("ratelimit")),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(middleware.Prometheus())

	router.RegisterRoutes(e, db)
	router.RegisterReservations(e, handler.NewReservationHandler(reservations, opts), guard)
	router.RegisterTables(e, handler.NewTableHandler(allocation, middleware.NewCachePurger(cfg.Cache, rdb, log), opts), guard)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
