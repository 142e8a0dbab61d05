package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at configPath, applies it over defaults and
// validates the result.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content. Unknown keys are rejected.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.Automation.BaseOrigin == "" {
		return fmt.Errorf("automation.base_origin is required")
	}
	if !strings.HasPrefix(c.Automation.BaseOrigin, "http://") && !strings.HasPrefix(c.Automation.BaseOrigin, "https://") {
		return fmt.Errorf("invalid automation.base_origin %q, expected an http(s) origin", c.Automation.BaseOrigin)
	}
	if n := c.Automation.RetryAttempts; n < 1 || n > MaxRetryAttempts {
		return fmt.Errorf("invalid automation.retry_attempts %d, expected 1-%d", n, MaxRetryAttempts)
	}
	if c.Automation.RetryMax < c.Automation.RetryBase {
		return fmt.Errorf("automation.retry_max %s is below retry_base %s", c.Automation.RetryMax, c.Automation.RetryBase)
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
		},
		Automation: AutomationConfig{
			ClientTag:     defaultClientTag,
			Source:        defaultSource,
			Timeout:       defaultTimeout,
			RetryAttempts: defaultRetryAttempts,
			RetryBase:     defaultRetryBase,
			RetryMax:      defaultRetryMax,
		},
		Video: VideoConfig{
			PollInterval: defaultPollInterval,
			PollTimeout:  defaultPollTimeout,
		},
	}
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Env = normalizeEnv(firstNonEmpty(raw.NodeEnv, raw.Env, cfg.Env))
	cfg.JWTSecret = firstNonEmpty(raw.JWTSecret, raw.JWTSecretLegacy, cfg.JWTSecret)
	cfg.Timezone = firstNonEmpty(raw.Timezone, raw.TZ, cfg.Timezone)
	cfg.AllowedOrigins = normalizeList(append(raw.AllowedOrigins, raw.CORSAllowedOrigins...))
	cfg.Admins = normalizeList(raw.Admins)
	cfg.Paths.Logs = firstNonEmpty(raw.LogDir, raw.Paths.Logs, cfg.Paths.Logs)

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()

	cfg.Automation = applyRawAutomation(cfg.Automation, raw)
	cfg.Video = applyRawVideo(cfg.Video, raw.Video)
	cfg.Storage.S3 = applyRawS3(cfg.Storage.S3, raw.Storage.S3)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	db := raw.Database
	current.DSN = firstNonEmpty(raw.DSN, db.DSN, db.URL)
	current.Host = firstNonEmpty(db.Host, current.Host)
	if db.Port != 0 {
		current.Port = db.Port
	}
	current.User = firstNonEmpty(db.User, db.Username, current.User)
	if db.Password != "" {
		current.Password = db.Password
	}
	current.Name = firstNonEmpty(db.Name, db.DBName, current.Name)
	current.Charset = firstNonEmpty(db.Charset, current.Charset)
	if db.ParseTime != nil {
		current.ParseTime = *db.ParseTime
	}
	current.Loc = firstNonEmpty(db.Loc, current.Loc)
	if len(db.Params) > 0 {
		current.Params = make(map[string]string, len(db.Params))
		for k, v := range db.Params {
			if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
				current.Params[k] = v
			}
		}
	}
	return current
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	r := raw.Redis
	current.URL = firstNonEmpty(raw.RedisURL, r.URL)
	current.Host = firstNonEmpty(r.Host, current.Host)
	if r.Port != 0 {
		current.Port = r.Port
	}
	current.Username = strings.TrimSpace(r.Username)
	current.Password = r.Password
	if r.DB != nil {
		current.DB = *r.DB
	}
	if r.TLS != nil {
		current.TLS = *r.TLS
	}
	return current
}

func applyRawAutomation(current AutomationConfig, raw rawAppConfig) AutomationConfig {
	a := raw.Automation
	current.BaseOrigin = strings.TrimRight(firstNonEmpty(a.BaseOrigin, a.BaseURL, raw.WebhookBaseURL), "/")
	current.ClientTag = firstNonEmpty(a.ClientTag, current.ClientTag)
	current.Source = firstNonEmpty(a.Source, current.Source)
	if a.Timeout > 0 {
		current.Timeout = a.Timeout
	}
	if a.RetryAttempts != nil {
		current.RetryAttempts = *a.RetryAttempts
	}
	if a.RetryBase > 0 {
		current.RetryBase = a.RetryBase
	}
	if a.RetryMax > 0 {
		current.RetryMax = a.RetryMax
	}
	if len(a.Paths) > 0 {
		current.Paths = make(map[string]string, len(a.Paths))
		for id, path := range a.Paths {
			current.Paths[strings.TrimSpace(id)] = strings.Trim(strings.TrimSpace(path), "/")
		}
	}
	return current
}

func applyRawVideo(current VideoConfig, v rawVideo) VideoConfig {
	current.BaseURL = strings.TrimRight(strings.TrimSpace(v.BaseURL), "/")
	current.APIKey = strings.TrimSpace(v.APIKey)
	if v.PollInterval > 0 {
		current.PollInterval = v.PollInterval
	}
	if v.PollTimeout > 0 {
		current.PollTimeout = v.PollTimeout
	}
	return current
}

func applyRawS3(current S3Config, s rawS3) S3Config {
	current.Bucket = strings.TrimSpace(s.Bucket)
	current.Region = firstNonEmpty(s.Region, "auto")
	current.Endpoint = strings.TrimRight(strings.TrimSpace(s.Endpoint), "/")
	current.AccessKeyID = strings.TrimSpace(s.AccessKeyID)
	current.SecretAccessKey = strings.TrimSpace(s.SecretAccessKey)
	current.CustomDomain = strings.TrimRight(strings.TrimSpace(s.CustomDomain), "/")
	current.Prefix = strings.Trim(strings.TrimSpace(s.Prefix), "/")
	if s.PathStyle != nil {
		current.PathStyle = *s.PathStyle
	}
	return current
}

// normalizeList trims every entry and drops the empty ones.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
