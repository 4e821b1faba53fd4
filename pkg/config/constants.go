package config

const (
	EnvPrefix = "RETAILHIVE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:retailhive.db?cache=shared&_foreign_keys=on"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv       = "RETAILHIVE_APP_ENV"
	EnvPort         = "RETAILHIVE_APP_PORT"
	EnvDBDSN        = "RETAILHIVE_DB_DSN"
	EnvDBHost       = "RETAILHIVE_DB_HOST"
	EnvDBUser       = "RETAILHIVE_DB_USER"
	EnvDBPassword   = "RETAILHIVE_DB_PASSWORD"
	EnvDBName       = "RETAILHIVE_DB_NAME"
	EnvRedisURL     = "RETAILHIVE_REDIS_URL"
	EnvJWTSecret    = "RETAILHIVE_JWT_SECRET"
	EnvJWTIssuer    = "RETAILHIVE_JWT_ISSUER"
	EnvJWTExpMins   = "RETAILHIVE_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite    = "RETAILHIVE_USE_SQLITE"
	EnvOrdersTopic  = "RETAILHIVE_PUBSUB_ORDERS_TOPIC"
	EnvSMTPHost     = "RETAILHIVE_SMTP_HOST"
	EnvCORSOrigins  = "RETAILHIVE_CORS_ALLOWED_ORIGINS"
	EnvOutboxMaxTry = "RETAILHIVE_OUTBOX_MAX_ATTEMPTS"
)

var discreteDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
