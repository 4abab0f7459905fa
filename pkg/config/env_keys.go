package config

// EnvPrefix namespaces every environment variable consumed by the app.
const EnvPrefix = "SHOPLY"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "SHOPLY_APP_ENV"
	EnvPort       = "SHOPLY_APP_PORT"
	EnvDBDSN      = "SHOPLY_DB_DSN"
	EnvDBHost     = "SHOPLY_DB_HOST"
	EnvDBUser     = "SHOPLY_DB_USER"
	EnvDBName     = "SHOPLY_DB_NAME"
	EnvRedisURL   = "SHOPLY_REDIS_URL"
	EnvJWTSecret  = "SHOPLY_JWT_SECRET"
	EnvJWTIssuer  = "SHOPLY_JWT_ISSUER"
	EnvJWTExpMins = "SHOPLY_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
