package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 6*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Sync.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.Sync.DBTimeout)
	assert.Equal(t, "sp_VerifyStudentCard", cfg.Sync.Procedure)
	assert.Equal(t, DriverSQLServer, cfg.Database.Driver)
	assert.False(t, cfg.Sync.Lock.Enabled)
	assert.True(t, cfg.Ops.Enabled)
	assert.Equal(t, 9090, cfg.Ops.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SYNC_API_URL", " https://api.example.test/students ")
	t.Setenv("SYNC_INTERVAL", "30s")
	t.Setenv("SYNC_HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("SYNC_DB_TIMEOUT", "45s")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_CONNECTION_STRING", "postgres://sync@localhost/cards")
	t.Setenv("SYNC_LOCK_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test/students", cfg.Sync.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Sync.HTTPTimeout)
	assert.Equal(t, 45*time.Second, cfg.Sync.DBTimeout)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Sync.Lock.Enabled)

	dsn, err := cfg.ConnectionString(DefaultConnectionName)
	require.NoError(t, err)
	assert.Equal(t, "postgres://sync@localhost/cards", dsn)
	assert.NoError(t, cfg.Validate())
}

func TestConnectionStringMissing(t *testing.T) {
	cfg := &Config{ConnectionStrings: map[string]string{DefaultConnectionName: "  "}}

	_, err := cfg.ConnectionString(DefaultConnectionName)
	assert.Error(t, err)

	_, err = cfg.ConnectionString("Reporting")
	assert.Error(t, err)

	var nilCfg *Config
	_, err = nilCfg.ConnectionString(DefaultConnectionName)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Sync:              SyncConfig{APIURL: "https://api.example.test", Interval: time.Second},
		Database:          DatabaseConfig{Driver: DriverSQLServer},
		ConnectionStrings: map[string]string{DefaultConnectionName: "sqlserver://sa@localhost"},
	}
	require.NoError(t, valid.Validate())

	noURL := valid
	noURL.Sync.APIURL = ""
	assert.ErrorIs(t, noURL.Validate(), appErrors.ErrConfiguration)

	badDriver := valid
	badDriver.Database.Driver = "oracle"
	assert.ErrorIs(t, badDriver.Validate(), appErrors.ErrConfiguration)

	noDSN := valid
	noDSN.ConnectionStrings = nil
	assert.ErrorIs(t, noDSN.Validate(), appErrors.ErrConfiguration)

	lockNoKey := valid
	lockNoKey.Sync.Lock = LockConfig{Enabled: true}
	assert.ErrorIs(t, lockNoKey.Validate(), appErrors.ErrConfiguration)
}
