package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorpay-backend/api/controllers"
	"github.com/angelmondragon/vendorpay-backend/internal/webhooks/signature"
	pkgauth "github.com/angelmondragon/vendorpay-backend/pkg/auth"
	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
	"github.com/angelmondragon/vendorpay-backend/pkg/metrics"
)

type stubPipeline struct {
	outcome   string
	err       error
	providers []enums.Provider
}

func (s *stubPipeline) Handle(_ context.Context, provider enums.Provider, _ []byte, _ time.Time) (string, error) {
	s.providers = append(s.providers, provider)
	return s.outcome, s.err
}

type stubVerifier struct {
	err error
}

func (s stubVerifier) Verify(*http.Request, []byte) error { return s.err }

type stubApprover struct {
	order *models.Order
	err   error
}

func (s *stubApprover) Approve(context.Context, uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

type stubRetrier struct {
	calls int
	err   error
}

func (s *stubRetrier) Retry(context.Context, uuid.UUID) error {
	s.calls++
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		Operator: config.OperatorConfig{
			JWTSecret: "test-secret",
			JWTIssuer: "vendorpay",
		},
		Offline: config.OfflineConfig{Enabled: true},
	}
}

func routerTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

type routerFixture struct {
	handler  http.Handler
	pipeline *stubPipeline
	retrier  *stubRetrier
	cfg      *config.Config
}

func newRouterFixture(t *testing.T, pipeline *stubPipeline, verifyErr error, approver *stubApprover, retrier *stubRetrier) *routerFixture {
	t.Helper()

	cfg := testConfig()
	logg := routerTestLogger()

	verifiers := map[enums.Provider]signature.Verifier{}
	for _, provider := range []enums.Provider{
		enums.ProviderPayPal,
		enums.ProviderSquare,
		enums.ProviderMercadoPago,
		enums.ProviderPaystack,
	} {
		verifiers[provider] = stubVerifier{err: verifyErr}
	}

	webhooksController, err := controllers.NewWebhooks(controllers.WebhooksParams{
		Pipeline:  pipeline,
		Verifiers: verifiers,
		Metrics:   metrics.NewWebhookMetrics(nil),
		Logger:    logg,
	})
	require.NoError(t, err)

	operatorController, err := controllers.NewOperator(controllers.OperatorParams{
		Orders:  approver,
		Payouts: retrier,
		Logger:  logg,
	})
	require.NoError(t, err)

	return &routerFixture{
		handler:  NewRouter(cfg, logg, nil, nil, webhooksController, operatorController),
		pipeline: pipeline,
		retrier:  retrier,
		cfg:      cfg,
	}
}

func defaultFixture(t *testing.T) *routerFixture {
	t.Helper()
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusCompleted}
	return newRouterFixture(t,
		&stubPipeline{outcome: metrics.OutcomeProcessed},
		nil,
		&stubApprover{order: order},
		&stubRetrier{})
}

func operatorToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgauth.MintOperatorToken(cfg.Operator, time.Now(), "ops@test", time.Hour)
	require.NoError(t, err)
	return token
}

func TestHealthLive(t *testing.T) {
	fixture := defaultFixture(t)

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-VendorPay-Env"))
}

func TestHealthReadyWithoutDependencies(t *testing.T) {
	fixture := defaultFixture(t)

	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookDeliveryProcessed(t *testing.T) {
	fixture := defaultFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewBufferString(`{"event":"charge.success"}`))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []enums.Provider{enums.ProviderPaystack}, fixture.pipeline.providers)

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, metrics.OutcomeProcessed, envelope.Data["status"])
}

func TestWebhookSignatureRejected(t *testing.T) {
	fixture := newRouterFixture(t,
		&stubPipeline{outcome: metrics.OutcomeProcessed},
		pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid paystack signature"),
		&stubApprover{order: &models.Order{ID: uuid.New()}},
		&stubRetrier{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, fixture.pipeline.providers)
}

func TestWebhookRetryableFailureReturnsServerError(t *testing.T) {
	fixture := newRouterFixture(t,
		&stubPipeline{outcome: metrics.OutcomeFailed, err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")},
		nil,
		&stubApprover{order: &models.Order{ID: uuid.New()}},
		&stubRetrier{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	fixture := defaultFixture(t)
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/orders/"+orderID.String()+"/approve", nil)
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperatorApproveOrder(t *testing.T) {
	fixture := defaultFixture(t)
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/orders/"+orderID.String()+"/approve", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, fixture.cfg))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOperatorApproveRejectsBadOrderID(t *testing.T) {
	fixture := defaultFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/orders/not-a-uuid/approve", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, fixture.cfg))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperatorPayoutRetry(t *testing.T) {
	fixture := defaultFixture(t)
	orderID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operator/orders/"+orderID.String()+"/payout-retry", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, fixture.cfg))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, fixture.retrier.calls)
}

func TestOfflineConfirmationRequiresToken(t *testing.T) {
	fixture := defaultFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/offline", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOfflineConfirmationValidatesBody(t *testing.T) {
	fixture := defaultFixture(t)

	body := `{"event_id":"off-1","order_id":"order-9"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/offline", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, fixture.cfg))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOfflineConfirmationAccepted(t *testing.T) {
	fixture := defaultFixture(t)

	body := `{"event_id":"off-1","order_id":"order-9","kind":"payment_completed","amount_minor":5000,"currency":"USD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/offline", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, fixture.cfg))
	rec := httptest.NewRecorder()
	fixture.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []enums.Provider{enums.ProviderOffline}, fixture.pipeline.providers)
}
