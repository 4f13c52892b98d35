package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Database     DatabaseConfig
	JWT          JWTConfig
	App          AppConfig
	Scheduler    SchedulerConfig
	Overtime     OvertimeConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Notification NotificationConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Name            string
	Port            int
	Env             string
	LogLevel        string
	StorageDriver   string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// SchedulerConfig tunes attendance reconciliation.
type SchedulerConfig struct {
	Enabled          bool
	Interval         time.Duration
	JobTimeout       time.Duration
	StaffTimeout     time.Duration
	SafetyMarginDays int
	MaxBackfillDays  int
	AutoCloseAfter   time.Duration
	Concurrency      int
}

type OvertimeConfig struct {
	EarlyStopThresholdMinutes int
	EarlyStopPenaltyMinutes   int
	PayrollMultiplier         decimal.Decimal
}

// RedisConfig enables payment idempotency keys when Addr is set.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// KafkaConfig enables notification fan-out when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
}

type NotificationConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	WorkerCount   int
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	p := &parser{}
	config := &Config{}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            p.int("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "attendance_engine"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(p.int("DB_MAX_CONNS", 25)),
		MinConns:        int32(p.int("DB_MIN_CONNS", 5)),
		MaxConnLifetime: p.duration("DB_MAX_CONN_LIFETIME", time.Hour),
		ConnectTimeout:  p.duration("DB_CONNECT_TIMEOUT", 5*time.Second),
	}

	config.App = AppConfig{
		Name:            getEnv("APP_NAME", "attendance-engine"),
		Port:            p.int("APP_PORT", 8080),
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StorageDriver:   getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		ShutdownTimeout: p.duration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: p.duration("JWT_ACCESS_EXPIRATION_TIME", time.Hour),
	}

	config.Scheduler = SchedulerConfig{
		Enabled:          p.bool("SCHEDULER_ENABLED", true),
		Interval:         p.duration("SCHEDULER_INTERVAL", 15*time.Minute),
		JobTimeout:       p.duration("SCHEDULER_JOB_TIMEOUT", 10*time.Minute),
		StaffTimeout:     p.duration("SCHEDULER_STAFF_TIMEOUT", 30*time.Second),
		SafetyMarginDays: p.int("SCHEDULER_SAFETY_MARGIN_DAYS", 2),
		MaxBackfillDays:  p.int("SCHEDULER_MAX_BACKFILL_DAYS", 62),
		AutoCloseAfter:   p.duration("SCHEDULER_AUTO_CLOSE_AFTER", 4*time.Hour),
		Concurrency:      p.int("SCHEDULER_CONCURRENCY", 4),
	}

	config.Overtime = OvertimeConfig{
		EarlyStopThresholdMinutes: p.int("OVERTIME_EARLY_STOP_THRESHOLD_MINUTES", 0),
		EarlyStopPenaltyMinutes:   p.int("OVERTIME_EARLY_STOP_PENALTY_MINUTES", 0),
		PayrollMultiplier:         p.decimal("PAYROLL_OVERTIME_MULTIPLIER", decimal.NewFromFloat(1.5)),
	}

	config.Redis = RedisConfig{
		Addr:           getEnv("REDIS_ADDR", ""),
		Password:       getEnv("REDIS_PASSWORD", ""),
		DB:             p.int("REDIS_DB", 0),
		IdempotencyTTL: p.duration("IDEMPOTENCY_TTL", 24*time.Hour),
	}

	config.Kafka = KafkaConfig{
		Brokers:           getEnvSlice("KAFKA_BROKERS", nil),
		NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "attendance.notifications"),
	}

	config.Notification = NotificationConfig{
		QueueSize:     p.int("NOTIFICATION_QUEUE_SIZE", 1000),
		BatchSize:     p.int("NOTIFICATION_BATCH_SIZE", 100),
		FlushInterval: p.duration("NOTIFICATION_FLUSH_INTERVAL", 5*time.Second),
		WorkerCount:   p.int("NOTIFICATION_WORKERS", 2),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.App.StorageDriver {
	case StorageDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.JWT.AccessExpiration <= 0 {
		return fmt.Errorf("JWT_ACCESS_EXPIRATION_TIME must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.Interval <= 0 {
			return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
		}
		if c.Scheduler.StaffTimeout <= 0 || c.Scheduler.StaffTimeout > c.Scheduler.JobTimeout {
			return fmt.Errorf("SCHEDULER_STAFF_TIMEOUT must be positive and within SCHEDULER_JOB_TIMEOUT")
		}
		if c.Scheduler.SafetyMarginDays < 0 || c.Scheduler.MaxBackfillDays < 1 {
			return fmt.Errorf("SCHEDULER_SAFETY_MARGIN_DAYS must be >= 0 and SCHEDULER_MAX_BACKFILL_DAYS >= 1")
		}
		if c.Scheduler.SafetyMarginDays > c.Scheduler.MaxBackfillDays {
			return fmt.Errorf("SCHEDULER_SAFETY_MARGIN_DAYS must not exceed SCHEDULER_MAX_BACKFILL_DAYS")
		}
		if c.Scheduler.Concurrency < 1 {
			return fmt.Errorf("SCHEDULER_CONCURRENCY must be at least 1")
		}
	}

	if c.Overtime.EarlyStopThresholdMinutes < 0 || c.Overtime.EarlyStopPenaltyMinutes < 0 {
		return fmt.Errorf("OVERTIME_EARLY_STOP_* must not be negative")
	}
	if !c.Overtime.PayrollMultiplier.IsPositive() {
		return fmt.Errorf("PAYROLL_OVERTIME_MULTIPLIER must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.NotificationTopic == "" {
		return fmt.Errorf("KAFKA_NOTIFICATION_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.Notification.BatchSize < 1 || c.Notification.WorkerCount < 1 || c.Notification.QueueSize < 1 {
		return fmt.Errorf("NOTIFICATION_* sizes must be at least 1")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", c.App.LogLevel)
	}
	return level, nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string, fallback []string) []string {
	value := getEnv(env, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}
