package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/vendorpay-backend/api/controllers"
	"github.com/angelmondragon/vendorpay-backend/api/middleware"
	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/db"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	redisclient "github.com/angelmondragon/vendorpay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache redisclient.Pinger,
	webhooksController *controllers.Webhooks,
	operatorController *controllers.Operator,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, cache, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paypal", webhooksController.Provider(enums.ProviderPayPal))
		r.Post("/square", webhooksController.Provider(enums.ProviderSquare))
		r.Post("/mercadopago", webhooksController.Provider(enums.ProviderMercadoPago))
		r.Post("/paystack", webhooksController.Provider(enums.ProviderPaystack))

		// Offline confirmations come from operator tooling, not a provider.
		r.With(middleware.OperatorAuth(cfg.Operator, logg)).
			Post("/offline", webhooksController.Offline(cfg.Offline.Enabled))
	})

	r.Route("/api/v1/operator", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.Operator, logg))
		r.Post("/orders/{id}/approve", operatorController.ApproveOrder())
		r.Post("/orders/{id}/payout-retry", operatorController.RetryPayout())
	})

	return r
}
