package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the file.
const (
	EnvAPIURL        = "USERSYNC_API_URL"
	EnvTimeout       = "USERSYNC_TIMEOUT"
	EnvLogLevel      = "USERSYNC_LOG_LEVEL"
	EnvLogFormat     = "USERSYNC_LOG_FORMAT"
	EnvTLSCA         = "USERSYNC_TLS_CA"
	EnvTLSCert       = "USERSYNC_TLS_CERT"
	EnvTLSKey        = "USERSYNC_TLS_KEY"
	EnvTLSInsecure   = "USERSYNC_TLS_INSECURE"
	EnvServerAddr    = "USERSYNC_SERVER_ADDR"
	EnvServerBackend = "USERSYNC_SERVER_BACKEND"
	EnvRedisAddr     = "USERSYNC_REDIS_ADDR"
	EnvRedisPassword = "USERSYNC_REDIS_PASSWORD"
	EnvSQLitePath    = "USERSYNC_SQLITE_PATH"
	EnvPostgresDSN   = "USERSYNC_POSTGRES_DSN"
	EnvServerTLSCert = "USERSYNC_SERVER_TLS_CERT"
	EnvServerTLSKey  = "USERSYNC_SERVER_TLS_KEY"
	EnvServerTLSCA   = "USERSYNC_SERVER_TLS_CA"
)

// Storage backends of the users API.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	APIURL    string
	Timeout   time.Duration
	LogLevel  string
	LogFormat string
	TLS       ClientTLS
	Server    Server
}

// ClientTLS is the client side of an https API url.
type ClientTLS struct {
	CAFile   string
	CertFile string
	KeyFile  string
	Insecure bool
}

type Server struct {
	Addr          string
	Backend       string
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	PostgresDSN   string
	TLSCertFile   string
	TLSKeyFile    string
	TLSCAFile     string
}

func Default() Config {
	return Config{
		APIURL:    "http://127.0.0.1:8080",
		Timeout:   30 * time.Second,
		LogLevel:  "info",
		LogFormat: "console",
		Server: Server{
			Addr:       "0.0.0.0:8080",
			Backend:    BackendMemory,
			RedisAddr:  "127.0.0.1:6379",
			SQLitePath: "usersync.db",
		},
	}
}

type fileConfig struct {
	APIURL    string         `toml:"api_url"`
	Timeout   string         `toml:"timeout"`
	LogLevel  string         `toml:"log_level"`
	LogFormat string         `toml:"log_format"`
	TLS       fileClientTLS  `toml:"tls"`
	Server    fileServerConf `toml:"server"`
}

type fileClientTLS struct {
	CA       string `toml:"ca"`
	Cert     string `toml:"cert"`
	Key      string `toml:"key"`
	Insecure bool   `toml:"insecure"`
}

type fileServerConf struct {
	Addr          string `toml:"addr"`
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	SQLitePath    string `toml:"sqlite_path"`
	PostgresDSN   string `toml:"postgres_dsn"`
	TLSCert       string `toml:"tls_cert"`
	TLSKey        string `toml:"tls_key"`
	TLSCA         string `toml:"tls_ca"`
}

// Load returns the defaults overlaid with the TOML file at path (skipped
// when path is empty) and then the USERSYNC_* environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	setString := func(dst *string, v string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(v)
		}
	}

	setString(&cfg.APIURL, raw.APIURL, "api_url")
	setString(&cfg.LogLevel, raw.LogLevel, "log_level")
	setString(&cfg.LogFormat, raw.LogFormat, "log_format")
	if meta.IsDefined("timeout") {
		d, err := parseTimeout(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	setString(&cfg.TLS.CAFile, raw.TLS.CA, "tls", "ca")
	setString(&cfg.TLS.CertFile, raw.TLS.Cert, "tls", "cert")
	setString(&cfg.TLS.KeyFile, raw.TLS.Key, "tls", "key")
	if meta.IsDefined("tls", "insecure") {
		cfg.TLS.Insecure = raw.TLS.Insecure
	}

	setString(&cfg.Server.Addr, raw.Server.Addr, "server", "addr")
	setString(&cfg.Server.Backend, raw.Server.Backend, "server", "backend")
	setString(&cfg.Server.RedisAddr, raw.Server.RedisAddr, "server", "redis_addr")
	// Passwords are taken verbatim.
	if meta.IsDefined("server", "redis_password") {
		cfg.Server.RedisPassword = raw.Server.RedisPassword
	}
	setString(&cfg.Server.SQLitePath, raw.Server.SQLitePath, "server", "sqlite_path")
	setString(&cfg.Server.PostgresDSN, raw.Server.PostgresDSN, "server", "postgres_dsn")
	setString(&cfg.Server.TLSCertFile, raw.Server.TLSCert, "server", "tls_cert")
	setString(&cfg.Server.TLSKeyFile, raw.Server.TLSKey, "server", "tls_key")
	setString(&cfg.Server.TLSCAFile, raw.Server.TLSCA, "server", "tls_ca")
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.APIURL = getEnvOrDefault(EnvAPIURL, cfg.APIURL)
	cfg.LogLevel = getEnvOrDefault(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault(EnvLogFormat, cfg.LogFormat)
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}

	cfg.TLS.CAFile = getEnvOrDefault(EnvTLSCA, cfg.TLS.CAFile)
	cfg.TLS.CertFile = getEnvOrDefault(EnvTLSCert, cfg.TLS.CertFile)
	cfg.TLS.KeyFile = getEnvOrDefault(EnvTLSKey, cfg.TLS.KeyFile)
	if v := os.Getenv(EnvTLSInsecure); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTLSInsecure, err)
		}
		cfg.TLS.Insecure = b
	}

	cfg.Server.Addr = getEnvOrDefault(EnvServerAddr, cfg.Server.Addr)
	cfg.Server.Backend = getEnvOrDefault(EnvServerBackend, cfg.Server.Backend)
	cfg.Server.RedisAddr = getEnvOrDefault(EnvRedisAddr, cfg.Server.RedisAddr)
	cfg.Server.RedisPassword = getEnvOrDefault(EnvRedisPassword, cfg.Server.RedisPassword)
	cfg.Server.SQLitePath = getEnvOrDefault(EnvSQLitePath, cfg.Server.SQLitePath)
	cfg.Server.PostgresDSN = getEnvOrDefault(EnvPostgresDSN, cfg.Server.PostgresDSN)
	cfg.Server.TLSCertFile = getEnvOrDefault(EnvServerTLSCert, cfg.Server.TLSCertFile)
	cfg.Server.TLSKeyFile = getEnvOrDefault(EnvServerTLSKey, cfg.Server.TLSKeyFile)
	cfg.Server.TLSCAFile = getEnvOrDefault(EnvServerTLSCA, cfg.Server.TLSCAFile)
	return nil
}

// Validate checks the values that cannot be caught while parsing.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIURL) == "" {
		errs = append(errs, errors.New("api_url must not be empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	switch c.Server.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	case BackendPostgres:
		if c.Server.PostgresDSN == "" {
			errs = append(errs, errors.New("server.postgres_dsn is required by the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("server.backend must be memory, redis, sqlite or postgres, got %q", c.Server.Backend))
	}
	return errors.Join(errs...)
}

// parseTimeout accepts a Go duration; "0" disables the timeout.
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "0" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(raw string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(raw))
}
