package config

// EnvPrefix is passed to envconfig; individual tags carry the full name.
const EnvPrefix = "POSCORE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv     = "POSCORE_APP_ENV"
	EnvDBDSN      = "POSCORE_DB_DSN"
	EnvDBHost     = "POSCORE_DB_HOST"
	EnvDBUser     = "POSCORE_DB_USER"
	EnvDBName     = "POSCORE_DB_NAME"
	EnvUploadRows = "POSCORE_UPLOAD_MAX_ROWS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
