package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DefaultConnectionName is the logical name the sync worker resolves its database from.
	DefaultConnectionName = "DefaultConnection"

	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
)

type Config struct {
	Env string

	Sync     SyncConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Ops      OpsConfig

	ConnectionStrings map[string]string
}

// SyncConfig drives the polling loop and its outbound call.
type SyncConfig struct {
	APIURL      string
	Interval    time.Duration
	HTTPTimeout time.Duration
	DBTimeout   time.Duration
	UserAgent   string
	Procedure   string
	Lock        LockConfig
}

// LockConfig enables the Redis backed single-worker lock.
type LockConfig struct {
	Enabled bool
	Key     string
	TTL     time.Duration
}

type DatabaseConfig struct {
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// OpsConfig controls the health/metrics listener.
type OpsConfig struct {
	Enabled bool
	Port    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Sync = SyncConfig{
		APIURL:      strings.TrimSpace(v.GetString("SYNC_API_URL")),
		Interval:    parseDuration(v.GetString("SYNC_INTERVAL"), 6*time.Second),
		HTTPTimeout: parseDuration(v.GetString("SYNC_HTTP_TIMEOUT"), 2*time.Minute),
		DBTimeout:   parseDuration(v.GetString("SYNC_DB_TIMEOUT"), 30*time.Second),
		UserAgent:   v.GetString("SYNC_USER_AGENT"),
		Procedure:   v.GetString("SYNC_PROCEDURE"),
		Lock: LockConfig{
			Enabled: v.GetBool("SYNC_LOCK_ENABLED"),
			Key:     v.GetString("SYNC_LOCK_KEY"),
			TTL:     parseDuration(v.GetString("SYNC_LOCK_TTL"), 5*time.Minute),
		},
	}

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ops = OpsConfig{
		Enabled: v.GetBool("OPS_ENABLED"),
		Port:    v.GetInt("OPS_PORT"),
	}

	cfg.ConnectionStrings = map[string]string{
		DefaultConnectionName: v.GetString("DB_CONNECTION_STRING"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("SYNC_API_URL", "")
	v.SetDefault("SYNC_INTERVAL", "6s")
	v.SetDefault("SYNC_HTTP_TIMEOUT", "2m")
	v.SetDefault("SYNC_DB_TIMEOUT", "30s")
	v.SetDefault("SYNC_USER_AGENT", "sma-card-sync/1.0")
	v.SetDefault("SYNC_PROCEDURE", "sp_VerifyStudentCard")
	v.SetDefault("SYNC_LOCK_ENABLED", false)
	v.SetDefault("SYNC_LOCK_KEY", "sma-card-sync:cycle")
	v.SetDefault("SYNC_LOCK_TTL", "5m")

	v.SetDefault("DB_DRIVER", DriverSQLServer)
	v.SetDefault("DB_CONNECTION_STRING", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OPS_ENABLED", true)
	v.SetDefault("OPS_PORT", 9090)
}

// ConnectionString resolves a connection string by its logical name.
func (c *Config) ConnectionString(name string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("connection string %q: no configuration loaded", name)
	}
	value := strings.TrimSpace(c.ConnectionStrings[name])
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("connection string %q is not configured", name))
	}
	return value, nil
}

// Validate reports settings the worker cannot start without.
func (c *Config) Validate() error {
	if c.Sync.APIURL == "" {
		return appErrors.Clone(appErrors.ErrConfiguration, "SYNC_API_URL is required")
	}
	if c.Sync.Interval <= 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "SYNC_INTERVAL must be positive")
	}
	switch c.Database.Driver {
	case DriverSQLServer, DriverPostgres:
	default:
		return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Sync.Lock.Enabled && c.Sync.Lock.Key == "" {
		return appErrors.Clone(appErrors.ErrConfiguration, "SYNC_LOCK_KEY is required when the lock is enabled")
	}
	if _, err := c.ConnectionString(DefaultConnectionName); err != nil {
		return err
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
