package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendorpay-backend/api/controllers"
	"github.com/angelmondragon/vendorpay-backend/api/routes"
	"github.com/angelmondragon/vendorpay-backend/internal/fees"
	"github.com/angelmondragon/vendorpay-backend/internal/ledger"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/payouts"
	"github.com/angelmondragon/vendorpay-backend/internal/vendors"
	"github.com/angelmondragon/vendorpay-backend/internal/webhooks"
	"github.com/angelmondragon/vendorpay-backend/internal/webhooks/normalize"
	"github.com/angelmondragon/vendorpay-backend/internal/webhooks/signature"
	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/db"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/mercadopago"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
	"github.com/angelmondragon/vendorpay-backend/pkg/migrate"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
	"github.com/angelmondragon/vendorpay-backend/pkg/paypal"
	"github.com/angelmondragon/vendorpay-backend/pkg/paystack"
	"github.com/angelmondragon/vendorpay-backend/pkg/redis"
	"github.com/angelmondragon/vendorpay-backend/pkg/square"
)

const shutdownGrace = 15 * time.Second

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

	feePolicy, err := fees.PolicyFromConfig(cfg.Fees)
	if err != nil {
		logg.Error(context.Background(), "invalid fee policy", err)
		os.Exit(1)
	}

	paystackBearer, err := fees.BearerFromConfig(cfg.Fees)
	if err != nil {
		logg.Error(context.Background(), "invalid paystack fee bearer", err)
		os.Exit(1)
	}

	registry, mpClient, sqClient := buildProviderClients(context.Background(), cfg, logg)

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	payoutMetrics := metrics.NewPayoutMetrics(prometheus.DefaultRegisterer)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		DB:       dbClient.DB(),
		Logger:   logg,
		Registry: registry,
		Vendors:  vendors.NewRepository(dbClient.DB()),
		Outbox:   outboxService,
		Metrics:  payoutMetrics,
		Timeout:  cfg.Payouts.DispatchTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		DB:             dbClient.DB(),
		Logger:         logg,
		FeePolicy:      feePolicy,
		Orders:         cfg.Orders,
		Payouts:        cfg.Payouts,
		Dispatcher:     payoutService,
		PaystackBearer: paystackBearer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DB:          dbClient.DB(),
		Idempotency: redisClient,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	normalizer := normalize.New(mpClient, sqClient)

	pipeline, err := webhooks.NewPipeline(webhooks.PipelineParams{
		DB:         dbClient.DB(),
		Normalizer: normalizer,
		Ledger:     ledgerService,
		Orders:     orderService,
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook pipeline", err)
		os.Exit(1)
	}

	webhooksController, err := controllers.NewWebhooks(controllers.WebhooksParams{
		Pipeline:  pipeline,
		Verifiers: buildVerifiers(cfg),
		Metrics:   webhookMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhooks controller", err)
		os.Exit(1)
	}

	operatorController, err := controllers.NewOperator(controllers.OperatorParams{
		Orders:  orderService,
		Payouts: payoutService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create operator controller", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, webhooksController, operatorController),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}

// buildProviderClients wires payout transfer clients for every provider with
// credentials configured. Missing credentials disable payouts for that
// provider, not the whole service. The Mercado Pago and Square clients also
// back webhook payment lookups, so they are returned for the normalizer.
func buildProviderClients(ctx context.Context, cfg *config.Config, logg *logger.Logger) (payouts.Registry, *mercadopago.Client, *square.Client) {
	registry := payouts.Registry{
		enums.ProviderSquare:  payouts.SquareTransfer{},
		enums.ProviderOffline: payouts.OfflineTransfer{},
	}

	if cfg.PayPal.ClientID != "" {
		client, err := paypal.NewClient(ctx, cfg.PayPal, logg)
		if err != nil {
			logg.Error(ctx, "failed to create paypal client", err)
			os.Exit(1)
		}
		registry[enums.ProviderPayPal] = &payouts.PayPalTransfer{Client: client}
	} else {
		logg.Warn(ctx, "paypal credentials not configured, payouts disabled for provider")
	}

	if cfg.Paystack.SecretKey != "" {
		client, err := paystack.NewClient(ctx, cfg.Paystack, logg)
		if err != nil {
			logg.Error(ctx, "failed to create paystack client", err)
			os.Exit(1)
		}
		registry[enums.ProviderPaystack] = &payouts.PaystackTransfer{Client: client}
	} else {
		logg.Warn(ctx, "paystack credentials not configured, payouts disabled for provider")
	}

	var mpClient *mercadopago.Client
	if cfg.MercadoPago.AccessToken != "" {
		client, err := mercadopago.NewClient(ctx, cfg.MercadoPago, logg)
		if err != nil {
			logg.Error(ctx, "failed to create mercadopago client", err)
			os.Exit(1)
		}
		registry[enums.ProviderMercadoPago] = &payouts.MercadoPagoTransfer{Client: client}
		mpClient = client
	} else {
		logg.Warn(ctx, "mercadopago credentials not configured, lookups and payouts disabled for provider")
	}

	var sqClient *square.Client
	if cfg.Square.AccessToken != "" {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			logg.Error(ctx, "failed to create square client", err)
			os.Exit(1)
		}
		sqClient = client
	} else {
		logg.Warn(ctx, "square credentials not configured, payment lookups disabled for provider")
	}

	return registry, mpClient, sqClient
}

func buildVerifiers(cfg *config.Config) map[enums.Provider]signature.Verifier {
	return map[enums.Provider]signature.Verifier{
		enums.ProviderPayPal: signature.PayPal{
			Secret:          cfg.PayPal.WebhookSecret,
			AllowUnverified: cfg.PayPal.AllowUnverified,
		},
		enums.ProviderSquare: signature.Square{
			Secret:          cfg.Square.WebhookSecret,
			NotificationURL: cfg.Square.NotificationURL,
			AllowUnverified: cfg.Square.AllowUnverified,
		},
		enums.ProviderMercadoPago: signature.MercadoPago{
			Secret:          cfg.MercadoPago.WebhookSecret,
			AllowUnverified: cfg.MercadoPago.AllowUnverified,
		},
		enums.ProviderPaystack: signature.Paystack{
			Secret:          cfg.Paystack.SecretKey,
			AllowUnverified: cfg.Paystack.AllowUnverified,
		},
		enums.ProviderOffline: signature.Offline{},
	}
}
