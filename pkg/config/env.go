package config

// EnvPrefix namespaces every environment variable the app reads.
const EnvPrefix = "MODACART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "MODACART_APP_ENV"
	EnvPort       = "MODACART_APP_PORT"
	EnvRedisURL   = "MODACART_REDIS_URL"
	EnvJWTSecret  = "MODACART_JWT_SECRET"
	EnvJWTIssuer  = "MODACART_JWT_ISSUER"
	EnvJWTExpMins = "MODACART_JWT_EXPIRATION_MINUTES"

	EnvDBDSN  = "MODACART_DB_DSN"
	EnvDBHost = "MODACART_DB_HOST"
	EnvDBUser = "MODACART_DB_USER"
	EnvDBName = "MODACART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
