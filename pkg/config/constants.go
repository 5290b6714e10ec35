package config

const (
	EnvPrefix = "vendorpay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "VENDORPAY_APP_ENV"
	EnvPort     = "VENDORPAY_APP_PORT"
	EnvDBDSN    = "VENDORPAY_DB_DSN"
	EnvDBHost   = "VENDORPAY_DB_HOST"
	EnvDBUser   = "VENDORPAY_DB_USER"
	EnvDBName   = "VENDORPAY_DB_NAME"
	EnvRedisURL = "VENDORPAY_REDIS_URL"

	EnvOperatorJWTSecret = "VENDORPAY_OPERATOR_JWT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
