package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"BACKEND", "SUPABASE_URL", "SUPABASE_KEY", "SUPABASE_TIMEOUT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"SQLITE_PATH", "JOURNAL_PATH",
	"REDIS_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_STREAM", "REDIS_STREAM_MAXLEN",
	"MQTT_ENABLED", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_TOPIC", "MQTT_QOS", "MQTT_RETAINED",
	"SERIAL_BAUD_RATE", "RETRY_SETTINGS", "RETRY_OPEN", "RETRY_ERROR", "RETRY_CLOSE", "ALERT_THRESHOLD",
	"LOG_LEVEL", "LOG_FORMAT",
}

// unsetEnv removes every config key for the duration of the test.
func unsetEnv(t *testing.T) {
	for _, key := range keys {
		key := key
		old, ok := os.LookupEnv(key)
		os.Unsetenv(key)
		if ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BACKEND", "sqlite")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "ecotrack.db", cfg.SQLitePath)
	assert.Equal(t, "", cfg.JournalPath)
	assert.Equal(t, 30*time.Second, cfg.Supabase.Timeout)

	assert.Equal(t, 9600, cfg.Bridge.BaudRate)
	assert.Equal(t, 10*time.Second, cfg.Bridge.SettingsRetry)
	assert.Equal(t, 10*time.Second, cfg.Bridge.OpenRetry)
	assert.Equal(t, 5*time.Second, cfg.Bridge.ErrorRetry)
	assert.Equal(t, 5*time.Second, cfg.Bridge.CloseRetry)
	assert.Equal(t, 90, cfg.Bridge.Threshold)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "ecotrack/devices/%s/fill", cfg.MQTT.Topic)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_SupabaseRequiresCredentials(t *testing.T) {
	unsetEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")

	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSupabase, cfg.Backend)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BACKEND", "Postgres")
	t.Setenv("DB_HOST", "db.example.com")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "eco")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("RETRY_SETTINGS", "30s")
	t.Setenv("RETRY_CLOSE", "2")
	t.Setenv("ALERT_THRESHOLD", "80")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "eco", cfg.Database.Name)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, 30*time.Second, cfg.Bridge.SettingsRetry)
	assert.Equal(t, 2*time.Second, cfg.Bridge.CloseRetry)
	assert.Equal(t, 80, cfg.Bridge.Threshold)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BACKEND", "sqlite")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("RETRY_ERROR", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Bridge.ErrorRetry)
}

func TestLoad_MQTTQoSOutOfRange(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BACKEND", "sqlite")

	for _, qos := range []string{"3", "256", "258", "-1"} {
		t.Setenv("MQTT_QOS", qos)

		_, err := Load("")
		assert.Error(t, err, "MQTT_QOS=%s", qos)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	unsetEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BACKEND=sqlite\nSQLITE_PATH=/var/lib/ecotrack/bench.db\nJOURNAL_PATH=journal.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/var/lib/ecotrack/bench.db", cfg.SQLitePath)
	assert.Equal(t, "journal.db", cfg.JournalPath)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BACKEND", "sqlite")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	unsetEnv(t)
	t.Setenv("BACKEND", "sqlite")

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Backend = "mongodb"
	assert.Error(t, cfg.Validate())

	cfg.Backend = BackendSQLite
	cfg.Bridge.Threshold = 101
	assert.Error(t, cfg.Validate())

	cfg.Bridge.Threshold = 90
	cfg.Bridge.BaudRate = 0
	assert.Error(t, cfg.Validate())

	cfg.Bridge.BaudRate = 9600
	cfg.MQTT.QoS = 3
	assert.Error(t, cfg.Validate())
}
