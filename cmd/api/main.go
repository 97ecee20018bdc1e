package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/panierlocal/amap-backend/api/routes"
	"github.com/panierlocal/amap-backend/internal/catalog"
	"github.com/panierlocal/amap-backend/internal/inventory"
	internalorders "github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/internal/payments"
	"github.com/panierlocal/amap-backend/internal/reports"
	"github.com/panierlocal/amap-backend/internal/reservations"
	stripewebhook "github.com/panierlocal/amap-backend/internal/webhooks/stripe"
	"github.com/panierlocal/amap-backend/pkg/config"
	"github.com/panierlocal/amap-backend/pkg/db"
	"github.com/panierlocal/amap-backend/pkg/logger"
	"github.com/panierlocal/amap-backend/pkg/migrate"
	"github.com/panierlocal/amap-backend/pkg/outbox"
	"github.com/panierlocal/amap-backend/pkg/redis"
	"github.com/panierlocal/amap-backend/pkg/stripe"
)

const (
	webhookGuardTTL   = 24 * time.Hour
	webhookGuardScope = "stripe-webhook"
	shutdownGrace     = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	reservationsRepo := reservations.NewRepository(dbClient.DB())
	ordersRepo := internalorders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repository:   inventoryRepo,
		Tx:           dbClient,
		Outbox:       outboxService,
		Reservations: reservationsRepo,
	})
	exitOnErr(logg, "failed to create inventory service", err)

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

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repository: paymentsRepo,
		OrdersRepo: ordersRepo,
		Provider:   payments.NewStripeProvider(stripeClient),
		Tx:         dbClient,
		Outbox:     outboxService,
	})
	exitOnErr(logg, "failed to create payment service", err)

	catalogSvc, err := catalog.NewService(catalogRepo)
	exitOnErr(logg, "failed to create catalog service", err)

	reportsSvc, err := reports.NewService(ordersRepo)
	exitOnErr(logg, "failed to create reports service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, webhookGuardScope)
	exitOnErr(logg, "failed to create webhook guard", err)

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentsSvc,
		Guard:    webhookGuard,
		Logger:   logg,
	})
	exitOnErr(logg, "failed to create webhook service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			inventorySvc,
			reservationsSvc,
			ordersSvc,
			paymentsSvc,
			catalogSvc,
			reportsSvc,
			stripeClient,
			webhookSvc,
		),
	}

	go func() {
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		<-sigCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logg.Info(ctx, "shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
