package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Orders       OrdersConfig
	Fees         FeesConfig
	Payouts      PayoutsConfig
	Operator     OperatorConfig
	PayPal       PayPalConfig
	Square       SquareConfig
	MercadoPago  MercadoPagoConfig
	Paystack     PaystackConfig
	Offline      OfflineConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validateUnverifiedFlags(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORPAY_DB_DSN"`
	Driver string `envconfig:"VENDORPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORPAY_DB_USER"`
	LegacyPassword string `envconfig:"VENDORPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORPAY_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type OrdersConfig struct {
	// Approval controls whether paid orders complete immediately ("auto")
	// or wait for operator release ("manual").
	Approval string `envconfig:"VENDORPAY_ORDERS_APPROVAL" default:"auto"`
}

func (o OrdersConfig) ManualApproval() bool {
	return strings.EqualFold(strings.TrimSpace(o.Approval), "manual")
}

type FeesConfig struct {
	PolicyKind     string `envconfig:"VENDORPAY_FEES_POLICY" default:"percentage"`
	PercentageRate string `envconfig:"VENDORPAY_FEES_PERCENTAGE_RATE" default:"10"`
	FixedMinor     int64  `envconfig:"VENDORPAY_FEES_FIXED_MINOR" default:"0"`
	PaystackBearer string `envconfig:"VENDORPAY_FEES_PAYSTACK_BEARER" default:"account"`
}

type PayoutsConfig struct {
	AutoPayout      bool          `envconfig:"VENDORPAY_PAYOUTS_AUTO" default:"true"`
	DelayDays       int           `envconfig:"VENDORPAY_PAYOUTS_DELAY_DAYS" default:"0"`
	DispatchTimeout time.Duration `envconfig:"VENDORPAY_PAYOUTS_DISPATCH_TIMEOUT" default:"30s"`
	WorkerInterval  time.Duration `envconfig:"VENDORPAY_PAYOUTS_WORKER_INTERVAL" default:"15m"`
}

type OperatorConfig struct {
	JWTSecret string `envconfig:"VENDORPAY_OPERATOR_JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"VENDORPAY_OPERATOR_JWT_ISSUER" default:"vendorpay"`
}

type PayPalConfig struct {
	ClientID        string `envconfig:"VENDORPAY_PAYPAL_CLIENT_ID"`
	ClientSecret    string `envconfig:"VENDORPAY_PAYPAL_CLIENT_SECRET"`
	WebhookSecret   string `envconfig:"VENDORPAY_PAYPAL_WEBHOOK_SECRET"`
	Env             string `envconfig:"VENDORPAY_PAYPAL_ENV" default:"sandbox"`
	AllowUnverified bool   `envconfig:"VENDORPAY_PAYPAL_ALLOW_UNVERIFIED" default:"false"`
}

type SquareConfig struct {
	AccessToken     string `envconfig:"VENDORPAY_SQUARE_ACCESS_TOKEN"`
	WebhookSecret   string `envconfig:"VENDORPAY_SQUARE_WEBHOOK_SECRET"`
	NotificationURL string `envconfig:"VENDORPAY_SQUARE_NOTIFICATION_URL"`
	Env             string `envconfig:"VENDORPAY_SQUARE_ENV" default:"sandbox"`
	AllowUnverified bool   `envconfig:"VENDORPAY_SQUARE_ALLOW_UNVERIFIED" default:"false"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type MercadoPagoConfig struct {
	AccessToken     string `envconfig:"VENDORPAY_MERCADOPAGO_ACCESS_TOKEN"`
	WebhookSecret   string `envconfig:"VENDORPAY_MERCADOPAGO_WEBHOOK_SECRET"`
	AllowUnverified bool   `envconfig:"VENDORPAY_MERCADOPAGO_ALLOW_UNVERIFIED" default:"false"`
}

type PaystackConfig struct {
	SecretKey       string `envconfig:"VENDORPAY_PAYSTACK_SECRET_KEY"`
	AllowUnverified bool   `envconfig:"VENDORPAY_PAYSTACK_ALLOW_UNVERIFIED" default:"false"`
}

type OfflineConfig struct {
	Enabled bool `envconfig:"VENDORPAY_OFFLINE_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORPAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENDORPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDORPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AlertTopic string `envconfig:"VENDORPAY_PUBSUB_ALERT_TOPIC" default:"vp-operator-alerts"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VENDORPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VENDORPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VENDORPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"VENDORPAY_OUTBOX_RETENTION" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDORPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDORPAY_AUTO_MIGRATE" default:"false"`
}

// validateUnverifiedFlags refuses unverified-webhook mode in prod. The flags
// exist for sandbox onboarding before provider secrets are issued.
func (c *Config) validateUnverifiedFlags() error {
	if !c.App.IsProd() {
		return nil
	}
	flags := map[string]bool{
		"paypal":      c.PayPal.AllowUnverified,
		"square":      c.Square.AllowUnverified,
		"mercadopago": c.MercadoPago.AllowUnverified,
		"paystack":    c.Paystack.AllowUnverified,
	}
	for provider, allowed := range flags {
		if allowed {
			return fmt.Errorf("unverified webhooks for %s cannot be enabled in prod", provider)
		}
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
