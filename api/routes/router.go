package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/panierlocal/amap-backend/api/controllers"
	webhookcontrollers "github.com/panierlocal/amap-backend/api/controllers/webhooks"
	"github.com/panierlocal/amap-backend/api/middleware"
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
	"github.com/panierlocal/amap-backend/pkg/redis"
	"github.com/panierlocal/amap-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	inventorySvc inventory.Service,
	reservationsSvc reservations.Service,
	ordersSvc internalorders.Service,
	paymentsSvc payments.Service,
	catalogSvc catalog.Service,
	reportsSvc reports.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/availability", func(r chi.Router) {
			r.Get("/", controllers.AvailabilityList(inventorySvc, logg))
			r.Get("/{availabilityId}", controllers.AvailabilityDetail(inventorySvc, logg))
		})

		r.Get("/baskets", controllers.BasketTypeList(catalogSvc, true, logg))
		r.Get("/locations", controllers.LocationList(catalogSvc, true, logg))

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ReservationList(reservationsSvc, logg))
			r.Put("/", controllers.ReservationUpsert(reservationsSvc, logg))
			r.Delete("/{availabilityId}", controllers.ReservationRelease(reservationsSvc, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/", controllers.OrderList(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(ordersSvc, logg))
			r.Post("/{orderId}/payment-intent", controllers.PaymentIntentCreate(paymentsSvc, logg))
			r.Post("/{orderId}/confirm", controllers.PaymentConfirm(paymentsSvc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/availability", controllers.AdminPublishStock(inventorySvc, logg))

		r.Route("/baskets", func(r chi.Router) {
			r.Get("/", controllers.BasketTypeList(catalogSvc, false, logg))
			r.Post("/", controllers.BasketTypeCreate(catalogSvc, logg))
			r.Put("/{basketTypeId}", controllers.BasketTypeUpdate(catalogSvc, logg))
		})
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", controllers.LocationList(catalogSvc, false, logg))
			r.Post("/", controllers.LocationCreate(catalogSvc, logg))
			r.Put("/{locationId}", controllers.LocationUpdate(catalogSvc, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(ordersSvc, logg))
			r.Get("/export.csv", controllers.AdminOrderExport(reportsSvc, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderStatusUpdate(ordersSvc, logg))
		})
	})

	return r
}
