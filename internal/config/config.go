package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Dispatch backend selection. Chosen once at process start, never
// re-evaluated at runtime.
const (
	DispatchInline     = "inline"
	DispatchCloudTasks = "cloudtasks"
	DispatchCapture    = "capture"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Dispatch DispatchConfig
	SMTP     SMTPConfig

	CommerceAPIEndpoint string
	CommerceAPIToken    string
}

// DispatchConfig configures the job dispatch backend.
type DispatchConfig struct {
	Backend string

	// Cloud Tasks addressing. Queues are named {QueuePrefix}-{queue}.
	ProjectID           string
	LocationID          string
	QueuePrefix         string
	ExecuteURL          string
	ServiceAccountEmail string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "recurra"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "recurra"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Dispatch: DispatchConfig{
			Backend:             normalizeBackend(getenv("DISPATCH_BACKEND", DispatchInline)),
			ProjectID:           getenv("CLOUD_TASKS_PROJECT", ""),
			LocationID:          getenv("CLOUD_TASKS_LOCATION", ""),
			QueuePrefix:         getenv("CLOUD_TASKS_QUEUE_PREFIX", "recurra"),
			ExecuteURL:          getenv("JOB_EXECUTE_URL", ""),
			ServiceAccountEmail: getenv("CLOUD_TASKS_SERVICE_ACCOUNT", ""),
		},

		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "noreply@recurra.dev"),
		},

		CommerceAPIEndpoint: getenv("COMMERCE_API_ENDPOINT", ""),
		CommerceAPIToken:    getenv("COMMERCE_API_TOKEN", ""),
	}
}

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DispatchCloudTasks:
		return DispatchCloudTasks
	case DispatchCapture:
		return DispatchCapture
	default:
		return DispatchInline
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
