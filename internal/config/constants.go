package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "contentflow"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379

	defaultClientTag     = "contentflow-core"
	defaultSource        = "contentflow-core"
	defaultTimeout       = 60 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBase     = 800 * time.Millisecond
	defaultRetryMax      = 8 * time.Second
	MaxRetryAttempts     = 10

	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)
