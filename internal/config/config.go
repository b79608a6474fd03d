package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Vacío = repos in-memory.
	DatabaseDSN string

	// Vacío = store de dispositivo in-memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Vacío = sin bridge MQTT.
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	// Vacío = modo dev (X-Debug-User-ID).
	AuthBaseURL string
	AuthAPIKey  string

	SyncStrategy string
	MidnightWrap string
	TickInterval time.Duration

	LogLevel  string
	LogFormat string
	AppName   string
}

// Load lee .env (si existe) y luego el entorno.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Port: getEnvOrDefault("PORT", "8080"),

		DatabaseDSN: os.Getenv("DB_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    getEnvOrDefault("MQTT_CLIENT_ID", "dose-mate-api"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: getEnvOrDefault("MQTT_TOPIC_PREFIX", "dosemate"),

		AuthBaseURL: os.Getenv("AUTH_BASE_URL"),
		AuthAPIKey:  os.Getenv("AUTH_API_KEY"),

		SyncStrategy: getEnvOrDefault("SYNC_STRATEGY", "arbitrated"),
		MidnightWrap: os.Getenv("MIDNIGHT_WRAP"),
		TickInterval: getEnvDuration("TICK_INTERVAL", time.Minute),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		AppName:   getEnvOrDefault("APP_NAME", "dose-mate"),
	}, nil
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvDuration acepta "30s", "1m" o segundos sueltos ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
