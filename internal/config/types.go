package config

import (
	"strings"
	"time"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production"
	JWTSecret      string
	Timezone       string
	AllowedOrigins []string
	// Admins lists the user ids allowed to operate the scheduler.
	Admins         []string
	Paths          RuntimePathsConfig
	Database       DatabaseRuntimeConfig
	Redis          RedisRuntimeConfig
	// DSN and RedisURL are derived from Database and Redis.
	DSN        string
	RedisURL   string
	Automation AutomationConfig
	Video      VideoConfig
	Storage    StorageConfig
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// AutomationConfig configures delivery to the external workflow engine.
type AutomationConfig struct {
	BaseOrigin    string
	ClientTag     string
	Source        string
	Timeout       time.Duration
	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
	// Paths overrides the identifier to webhook path table.
	Paths map[string]string
}

// VideoConfig points at the avatar video provider's job status API.
type VideoConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type StorageConfig struct {
	S3 S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	CustomDomain    string
	Prefix          string
	PathStyle       bool
}

// Enabled reports whether uploads can be served.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func (c *AppConfig) IsDev() bool {
	return !strings.EqualFold(c.Env, "production")
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// rawAppConfig mirrors the YAML file. Several keys have legacy aliases; the
// later alias wins when both are present.
type rawAppConfig struct {
	Port               int                `yaml:"port"`
	Env                string             `yaml:"env"`
	NodeEnv            string             `yaml:"node_env"`
	JWTSecret          string             `yaml:"jwt_secret"`
	JWTSecretLegacy    string             `yaml:"jwtsecret"`
	Timezone           string             `yaml:"timezone"`
	TZ                 string             `yaml:"tz"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	Admins             []string           `yaml:"admins"`
	LogDir             string             `yaml:"log_dir"`
	Paths              RuntimePathsConfig `yaml:"paths"`
	DSN                string             `yaml:"dsn"`
	RedisURL           string             `yaml:"redis_url"`
	Database           rawDatabaseConfig  `yaml:"database"`
	Redis              rawRedisConfig     `yaml:"redis"`
	Automation         rawAutomation      `yaml:"automation"`
	WebhookBaseURL     string             `yaml:"webhook_base_url"`
	Video              rawVideo           `yaml:"video"`
	Storage            rawStorage         `yaml:"storage"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawAutomation struct {
	BaseOrigin    string            `yaml:"base_origin"`
	BaseURL       string            `yaml:"base_url"`
	ClientTag     string            `yaml:"client_tag"`
	Source        string            `yaml:"source"`
	Timeout       time.Duration     `yaml:"timeout"`
	RetryAttempts *int              `yaml:"retry_attempts"`
	RetryBase     time.Duration     `yaml:"retry_base"`
	RetryMax      time.Duration     `yaml:"retry_max"`
	Paths         map[string]string `yaml:"paths"`
}

type rawVideo struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

type rawStorage struct {
	S3 rawS3 `yaml:"s3"`
}

type rawS3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CustomDomain    string `yaml:"custom_domain"`
	Prefix          string `yaml:"prefix"`
	PathStyle       *bool  `yaml:"path_style"`
}
