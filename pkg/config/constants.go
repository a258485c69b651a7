package config

const (
	// EnvPrefix scopes every environment variable read by Load.
	EnvPrefix = "LIBRIS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LIBRIS_DB_DSN"
	EnvDBHost = "LIBRIS_DB_HOST"
	EnvDBUser = "LIBRIS_DB_USER"
	EnvDBName = "LIBRIS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
