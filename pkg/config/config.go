// Package config loads the bridge configuration from the environment.
//
// Which port to read and which device to update are not configured here;
// the bridge fetches them from the backend settings row on every connect.
// The environment only says how to reach the backend and the optional
// mirrors.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// backends
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// DatabaseConfig holds direct Postgres connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// SupabaseConfig holds the hosted REST endpoint.
type SupabaseConfig struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// RedisConfig for the reading stream mirror.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// MQTTConfig for the reading topic mirror.
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
}

// Config is the bridge configuration.
type Config struct {
	Backend     string
	Supabase    SupabaseConfig
	Database    DatabaseConfig
	SQLitePath  string
	JournalPath string

	Redis RedisConfig
	MQTT  MQTTConfig

	Bridge struct {
		BaudRate      int
		SettingsRetry time.Duration
		OpenRetry     time.Duration
		ErrorRetry    time.Duration
		CloseRetry    time.Duration
		Threshold     int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the optional .env file at path and then the environment.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("unable to load %s: %w", path, err)
		} else if err != nil {
			slog.Debug("no env file, using environment", "path", path)
		}
	}

	cfg := &Config{}

	cfg.Backend = strings.ToLower(getEnv("BACKEND", BackendSupabase))

	cfg.Supabase.URL = getEnv("SUPABASE_URL", "")
	cfg.Supabase.Key = getEnv("SUPABASE_KEY", "")
	cfg.Supabase.Timeout = getEnvDuration("SUPABASE_TIMEOUT", 30*time.Second)

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "postgres")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "require")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_OPEN_CONNS", 4)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE_CONNS", 2)

	cfg.SQLitePath = getEnv("SQLITE_PATH", "ecotrack.db")
	cfg.JournalPath = getEnv("JOURNAL_PATH", "")

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "ecotrack:readings")
	cfg.Redis.MaxLen = int64(getEnvInt("REDIS_STREAM_MAXLEN", 10000))

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "ecotrack/devices/%s/fill")
	qos := getEnvInt("MQTT_QOS", 0)
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("invalid MQTT_QOS %d, must be 0, 1 or 2", qos)
	}
	cfg.MQTT.QoS = byte(qos)
	cfg.MQTT.Retained = getEnvBool("MQTT_RETAINED", true)

	cfg.Bridge.BaudRate = getEnvInt("SERIAL_BAUD_RATE", 9600)
	cfg.Bridge.SettingsRetry = getEnvDuration("RETRY_SETTINGS", 10*time.Second)
	cfg.Bridge.OpenRetry = getEnvDuration("RETRY_OPEN", 10*time.Second)
	cfg.Bridge.ErrorRetry = getEnvDuration("RETRY_ERROR", 5*time.Second)
	cfg.Bridge.CloseRetry = getEnvDuration("RETRY_CLOSE", 5*time.Second)
	cfg.Bridge.Threshold = getEnvInt("ALERT_THRESHOLD", 90)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "text")

	return cfg, cfg.Validate()
}

// Validate checks that the selected backend can be reached.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.Bridge.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Bridge.BaudRate)
	}
	if c.Bridge.Threshold <= 0 || c.Bridge.Threshold > 100 {
		return fmt.Errorf("alert threshold %d out of range 1-100", c.Bridge.Threshold)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid MQTT QoS %d", c.MQTT.QoS)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations ("10s") and plain seconds ("10").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	slog.Warn("invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue)
	return defaultValue
}
