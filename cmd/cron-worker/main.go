package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/panierlocal/amap-backend/internal/catalog"
	"github.com/panierlocal/amap-backend/internal/cron"
	"github.com/panierlocal/amap-backend/internal/inventory"
	internalorders "github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/internal/reservations"
	"github.com/panierlocal/amap-backend/pkg/config"
	"github.com/panierlocal/amap-backend/pkg/db"
	"github.com/panierlocal/amap-backend/pkg/logger"
	"github.com/panierlocal/amap-backend/pkg/metrics"
	"github.com/panierlocal/amap-backend/pkg/migrate"
	"github.com/panierlocal/amap-backend/pkg/outbox"
	"github.com/panierlocal/amap-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	reservationsRepo := reservations.NewRepository(dbClient.DB())
	ordersRepo := internalorders.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	reservationsSvc, err := reservations.NewService(reservations.ServiceParams{
		Repository:   reservationsRepo,
		Availability: inventoryRepo,
		Tx:           dbClient,
		Logger:       logg,
		TTL:          cfg.Reservations.TTL,
	})
	exitOnErr(logg, "failed to create reservation service", err)

	ordersSvc, err := internalorders.NewService(internalorders.ServiceParams{
		Repository: ordersRepo,
		Ledger:     inventoryRepo,
		Holds:      reservationsRepo,
		Locations:  catalogRepo,
		Tx:         dbClient,
		Outbox:     outboxService,
	})
	exitOnErr(logg, "failed to create order service", err)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Cron.LockTTL)
	exitOnErr(logg, "failed to create cron lock", err)

	registry := cron.NewRegistry()

	sweepJob, err := cron.NewReservationSweepJob(logg, reservationsSvc)
	exitOnErr(logg, "failed to create reservation sweep job", err)
	registry.Register(sweepJob)

	staleJob, err := cron.NewStaleOrderJob(cron.StaleOrderJobParams{
		Logger: logg,
		Reader: ordersRepo,
		Orders: ordersSvc,
	})
	exitOnErr(logg, "failed to create stale order job", err)
	registry.Register(staleJob)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	exitOnErr(logg, "failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
