package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Events   EventsConfig
	Tracing  TracingConfig
	History  HistoryConfig
	Upload   UploadConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	JWTSecret string
}

// StorageConfig points at the S3-compatible bucket holding attachments.
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	ForcePathStyle    bool
	PublicBaseURL     string
	PresignTTLSeconds int
}

// EventsConfig selects where domain events are relayed.
type EventsConfig struct {
	Broker       string
	RedisChannel string
	NATSURL      string
	NATSSubject  string
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	OTLPEndpoint string
}

// HistoryConfig bounds history queries.
type HistoryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// UploadConfig bounds multipart uploads.
type UploadConfig struct {
	MaxFiles     int
	MaxFileBytes int64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-tracker"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Storage: StorageConfig{
			Endpoint:          os.Getenv("S3_ENDPOINT"),
			Region:            getEnv("S3_REGION", "us-east-1"),
			Bucket:            getEnv("S3_BUCKET", "ticket-photos"),
			AccessKey:         os.Getenv("S3_ACCESS_KEY"),
			SecretKey:         os.Getenv("S3_SECRET_KEY"),
			ForcePathStyle:    getEnvAsBool("S3_FORCE_PATH_STYLE", true),
			PublicBaseURL:     strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
			PresignTTLSeconds: getEnvAsInt("S3_PRESIGN_TTL_SECONDS", 3600),
		},
		Events: EventsConfig{
			Broker:       strings.ToLower(getEnv("EVENTS_BROKER", "none")),
			RedisChannel: getEnv("EVENTS_REDIS_CHANNEL", "ticket-events"),
			NATSURL:      getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			NATSSubject:  getEnv("EVENTS_NATS_SUBJECT", "tickets.events"),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		History: HistoryConfig{
			DefaultLimit: getEnvAsInt("HISTORY_DEFAULT_LIMIT", 200),
			MaxLimit:     getEnvAsInt("HISTORY_MAX_LIMIT", 1000),
		},
		Upload: UploadConfig{
			MaxFiles:     getEnvAsInt("UPLOAD_MAX_FILES", 10),
			MaxFileBytes: int64(getEnvAsInt("UPLOAD_MAX_FILE_BYTES", 10<<20)),
		},
	}

	switch cfg.Events.Broker {
	case "none", "redis", "nats":
	default:
		return nil, fmt.Errorf("invalid EVENTS_BROKER %q", cfg.Events.Broker)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PresignTTL returns how long generated download URLs stay valid.
func (s StorageConfig) PresignTTL() time.Duration {
	if s.PresignTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.PresignTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
