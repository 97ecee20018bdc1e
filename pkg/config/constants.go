package config

const (
	EnvPrefix = "AMAP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AMAP_DB_DSN"
	EnvDBHost = "AMAP_DB_HOST"
	EnvDBUser = "AMAP_DB_USER"
	EnvDBName = "AMAP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
