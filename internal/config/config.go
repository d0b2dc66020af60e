package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Queue     QueueConfig
	WS        WSConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
}

// DSN renders the connection URL for pgxpool.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string
}

type QueueConfig struct {
	// Location is where a service day starts; daily stats reset at its
	// local midnight.
	Location         *time.Location
	MaxExtendMinutes int
	JoinRateLimit    int
	JoinRateWindow   time.Duration
	SalonListTTL     time.Duration
	IdempotencyTTL   time.Duration
}

type WSConfig struct {
	SendBuffer   int
	PingInterval time.Duration
}

type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

type LogConfig struct {
	Level  string
	Format string
}

// New reads the configuration from the environment after loading
// envFiles (".env" when none are given). Missing files are ignored.
func New(envFiles ...string) (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load(envFiles...)

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: envString("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	postgresPort, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresMaxConns, err := envInt("POSTGRES_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     envString("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(postgresMaxConns),
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     envString("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	queueCfg, err := queueConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sendBuffer, err := envInt("WS_SEND_BUFFER", 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pingInterval, err := envDuration("WS_PING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	otelInsecure, err := envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Auth:     AuthConfig{JWTSecret: jwtSecret},
		Queue:    queueCfg,
		WS: WSConfig{
			SendBuffer:   sendBuffer,
			PingInterval: pingInterval,
		},
		Telemetry: TelemetryConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: otelInsecure,
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}, nil
}

func queueConfig() (QueueConfig, error) {
	loc, err := time.LoadLocation(envString("QUEUE_TIMEZONE", "UTC"))
	if err != nil {
		return QueueConfig{}, fmt.Errorf("invalid QUEUE_TIMEZONE: %w", err)
	}

	maxExtend, err := envInt("QUEUE_MAX_EXTEND_MINUTES", 120)
	if err != nil {
		return QueueConfig{}, err
	}

	joinLimit, err := envInt("JOIN_RATE_LIMIT", 5)
	if err != nil {
		return QueueConfig{}, err
	}

	joinWindow, err := envDuration("JOIN_RATE_WINDOW", time.Minute)
	if err != nil {
		return QueueConfig{}, err
	}

	listTTL, err := envDuration("SALON_LIST_TTL", 10*time.Second)
	if err != nil {
		return QueueConfig{}, err
	}

	idemTTL, err := envDuration("IDEMPOTENCY_TTL", 2*time.Hour)
	if err != nil {
		return QueueConfig{}, err
	}

	return QueueConfig{
		Location:         loc,
		MaxExtendMinutes: maxExtend,
		JoinRateLimit:    joinLimit,
		JoinRateWindow:   joinWindow,
		SalonListTTL:     listTTL,
		IdempotencyTTL:   idemTTL,
	}, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
